// Command pingpong-radio is an example radio implementing a liveness
// check: even block numbers emit a Ping; odd block numbers consume Pings
// received since the last odd tick and emit a Pong for each. It uses a
// single cobra root command with one long-running subcommand.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gossipradio/agent-sdk/agent"
	"github.com/gossipradio/agent-sdk/identity"
	"github.com/gossipradio/agent-sdk/payload/pingpong"
	"github.com/gossipradio/agent-sdk/pkg/config"
	"github.com/gossipradio/agent-sdk/transport/libp2p"
	"github.com/gossipradio/agent-sdk/validation"
)

const contentTopic = "ping-pong-content-topic"

func main() {
	rootCmd := &cobra.Command{Use: "pingpong-radio"}
	rootCmd.AddCommand(runCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var env string
	var blockInterval time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the ping-pong liveness radio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(env)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return run(cmd.Context(), cfg, blockInterval)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "config environment name (config/<env>.yaml)")
	cmd.Flags().DurationVar(&blockInterval, "block-interval", 6*time.Second, "simulated block tick interval")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, blockInterval time.Duration) error {
	policy, err := identity.ParsePolicy(cfg.Agent.IDValidation)
	if err != nil {
		return err
	}

	tr, err := libp2p.New(libp2p.Config{
		ListenAddr:        listenAddrFromConfig(cfg),
		BootNodeAddresses: cfg.Agent.BootNodeAddresses,
		NodeKey:           cfg.Transport.WakuNodeKey,
	})
	if err != nil {
		return err
	}

	agentCfg := agent.Config{
		WalletKey:             cfg.Agent.WalletKey,
		GraphAccount:          cfg.Agent.GraphAccount,
		RegistrySubgraph:      cfg.Agent.RegistrySubgraph,
		NetworkSubgraph:       cfg.Agent.NetworkSubgraph,
		GraphNodeEndpoint:     cfg.Agent.GraphNodeEndpoint,
		IDValidation:          policy,
		RadioName:             orDefault(cfg.Agent.RadioName, "pingpong-radio"),
		GraphcastNamespace:    cfg.Agent.GraphcastNamespace,
		Subtopics:             []string{contentTopic},
		FilterProtocol:        cfg.Agent.FilterProtocol,
		AllowAllContentTopics: cfg.Agent.AllowAllContentTopics,
	}

	a, err := agent.New[pingpong.Message](ctx, agentCfg, pingpong.Domain, pingpong.Unmarshal, tr, nil, nil)
	if err != nil {
		return fmt.Errorf("new agent: %w", err)
	}
	defer a.Stop()

	pipeline := validation.New[pingpong.Message](pingpong.Domain, a.CallBook(), policy, a.NonceStore(), func() int64 { return time.Now().Unix() })

	var mu sync.Mutex
	var pendingPings []string // table identifiers needing a Pong

	go func() {
		for raw := range a.Ingress() {
			env, err := a.Unmarshal(raw.Data)
			if err != nil {
				logrus.WithError(err).Debug("failed to decode inbound envelope")
				continue
			}
			if _, err := pipeline.Validate(ctx, env); err != nil {
				logrus.WithError(err).Debug("message failed validation")
				continue
			}
			if env.Payload.Content == "Ping" {
				mu.Lock()
				pendingPings = append(pendingPings, env.Payload.Identifier)
				mu.Unlock()
				logrus.WithField("identifier", env.Payload.Identifier).Info("received Ping")
			} else if env.Payload.Content == "Pong" {
				logrus.WithField("identifier", env.Payload.Identifier).Info("received Pong")
			}
		}
	}()

	ticker := time.NewTicker(blockInterval)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var blockNumber uint64
	for {
		select {
		case <-ticker.C:
			blockNumber++
			nonce := time.Now().Unix()
			blockHash := blockHashFor(blockNumber)

			if blockNumber%2 == 0 {
				if _, err := a.Send(ctx, contentTopic, pingpong.Message{Identifier: "table", Content: "Ping"}, nonce, "mainnet", blockNumber, blockHash); err != nil {
					logrus.WithError(err).Warn("failed to send Ping")
				}
				continue
			}

			mu.Lock()
			toAck := pendingPings
			pendingPings = nil
			mu.Unlock()
			for _, identifierTable := range toAck {
				if _, err := a.Send(ctx, contentTopic, pingpong.Message{Identifier: identifierTable, Content: "Pong"}, nonce, "mainnet", blockNumber, blockHash); err != nil {
					logrus.WithError(err).Warn("failed to send Pong")
				}
			}

		case <-sigCh:
			logrus.Info("shutting down")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// blockHashFor stands in for a real chain-head query when sending: outbound
// messages carry this deterministic placeholder hash. Inbound messages are
// hash-checked by the validation pipeline through the call book's
// graph-node endpoint, not through this function, so they pass that check
// only where the endpoint reports the same hash.
func blockHashFor(blockNumber uint64) string {
	return fmt.Sprintf("0x%x", blockNumber)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
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
