// Command agentctl is a debug/introspection CLI for a running agent: peer
// listing, a manual network-check, and an ad-hoc send, plus an optional
// chi-based HTTP surface for /healthz and /peers.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gossipradio/agent-sdk/agent"
	"github.com/gossipradio/agent-sdk/identity"
	"github.com/gossipradio/agent-sdk/payload/attestation"
	"github.com/gossipradio/agent-sdk/pkg/config"
	"github.com/gossipradio/agent-sdk/transport/libp2p"
)

func main() {
	rootCmd := &cobra.Command{Use: "agentctl"}
	rootCmd.AddCommand(peersCmd(), networkCheckCmd(), sendCmd(), serveCmd(), initConfigCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildAgent(ctx context.Context, env string) (*agent.Agent[attestation.Message], *config.Config, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	policy, err := identity.ParsePolicy(cfg.Agent.IDValidation)
	if err != nil {
		return nil, nil, err
	}
	tr, err := libp2p.New(libp2p.Config{
		ListenAddr:        listenAddrFromConfig(cfg),
		BootNodeAddresses: cfg.Agent.BootNodeAddresses,
		NodeKey:           cfg.Transport.WakuNodeKey,
	})
	if err != nil {
		return nil, nil, err
	}
	a, err := agent.New[attestation.Message](ctx, agent.Config{
		WalletKey:             cfg.Agent.WalletKey,
		GraphAccount:          cfg.Agent.GraphAccount,
		RegistrySubgraph:      cfg.Agent.RegistrySubgraph,
		NetworkSubgraph:       cfg.Agent.NetworkSubgraph,
		GraphNodeEndpoint:     cfg.Agent.GraphNodeEndpoint,
		IDValidation:          policy,
		RadioName:             cfg.Agent.RadioName,
		GraphcastNamespace:    cfg.Agent.GraphcastNamespace,
		Subtopics:             cfg.Agent.Subtopics,
		FilterProtocol:        cfg.Agent.FilterProtocol,
		AllowAllContentTopics: cfg.Agent.AllowAllContentTopics,
	}, attestation.Domain, attestation.Unmarshal, tr, nil, nil)
	return a, cfg, err
}

func envFlag(cmd *cobra.Command) *string {
	return cmd.Flags().String("env", "", "config environment name")
}

// listenAddrFromConfig returns waku_addr when it is set directly;
// otherwise it builds a libp2p listen multiaddr from the
// waku_host/waku_port config fields, or returns "" (the libp2p default
// listen addresses) when no port is configured.
func listenAddrFromConfig(cfg *config.Config) string {
	if cfg.Transport.WakuAddr != "" {
		return cfg.Transport.WakuAddr
	}
	if cfg.Transport.WakuPort == 0 {
		return ""
	}
	host := cfg.Transport.WakuHost
	if host == "" {
		host = "0.0.0.0"
	}
	return fmt.Sprintf("/ip4/%s/tcp/%d", host, cfg.Transport.WakuPort)
}

func peersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "list known peers",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, _ := cmd.Flags().GetString("env")
			a, _, err := buildAgent(cmd.Context(), env)
			if err != nil {
				return err
			}
			defer a.Stop()
			for _, p := range a.PeersData() {
				fmt.Printf("%s connected=%t relay=%t\n", p.ID, p.Connected, p.SupportsRelay)
			}
			return nil
		},
	}
	envFlag(cmd)
	return cmd
}

func networkCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "network-check",
		Short: "reconnect relay-capable peers and drop the rest",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, _ := cmd.Flags().GetString("env")
			a, _, err := buildAgent(cmd.Context(), env)
			if err != nil {
				return err
			}
			defer a.Stop()
			return a.NetworkCheck(cmd.Context())
		},
	}
	envFlag(cmd)
	return cmd
}

func sendCmd() *cobra.Command {
	var identifier, npoi, network, blockHash string
	var blockNumber uint64

	cmd := &cobra.Command{
		Use:   "send",
		Short: "publish a single attestation message",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, _ := cmd.Flags().GetString("env")
			a, _, err := buildAgent(cmd.Context(), env)
			if err != nil {
				return err
			}
			defer a.Stop()

			id, err := a.Send(cmd.Context(), identifier, attestation.Message{NPOI: npoi}, time.Now().Unix(), network, blockNumber, blockHash)
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	envFlag(cmd)
	cmd.Flags().StringVar(&identifier, "identifier", "", "subgraph deployment identifier (content topic)")
	cmd.Flags().StringVar(&npoi, "npoi", "", "proof-of-indexing commitment hex")
	cmd.Flags().StringVar(&network, "network", "mainnet", "referenced chain network")
	cmd.Flags().Uint64Var(&blockNumber, "block-number", 0, "referenced block height")
	cmd.Flags().StringVar(&blockHash, "block-hash", "", "referenced block hash")
	return cmd
}

// initConfigCmd writes a template config/default.yaml an operator fills in
// with a real wallet key and subgraph endpoints.
func initConfigCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "init-config",
		Short: "write a template agent configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			var tmpl config.Config
			tmpl.Agent.RadioName = "my-radio"
			tmpl.Agent.IDValidation = "no_check"
			tmpl.Agent.Subtopics = []string{"example-content-topic"}
			tmpl.Transport.WakuPort = 60000
			tmpl.Logging.Level = "info"

			data, err := yaml.Marshal(tmpl)
			if err != nil {
				return fmt.Errorf("marshal template config: %w", err)
			}
			return os.WriteFile(out, data, 0o644)
		},
	}
	cmd.Flags().StringVar(&out, "out", "config/default.yaml", "output path")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve /healthz and /peers over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, _ := cmd.Flags().GetString("env")
			a, _, err := buildAgent(cmd.Context(), env)
			if err != nil {
				return err
			}
			defer a.Stop()

			r := chi.NewRouter()
			r.Use(middleware.Logger)
			r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(map[string]any{"state": a.State().String()})
			})
			r.Get("/peers", func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(a.PeersData())
			})

			logrus.WithField("addr", addr).Info("agentctl serving debug HTTP")
			return http.ListenAndServe(addr, r)
		},
	}
	envFlag(cmd)
	cmd.Flags().StringVar(&addr, "addr", ":8090", "listen address")
	return cmd
}
