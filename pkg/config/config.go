// Package config provides a reusable loader for radio configuration files
// and environment variables, used by the cmd/ example radios. The core SDK
// (package agent) never reads files itself; it takes a plain agent.Config.
package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/gossipradio/agent-sdk/pkg/utils"
)

// Config is the unified on-disk/environment configuration for an example
// radio binary. It mirrors the construction-time options table of the
// agent SDK (wallet, transport endpoint, and content-topic selection).
type Config struct {
	Agent struct {
		WalletKey             string   `mapstructure:"wallet_key" json:"wallet_key" yaml:"wallet_key"`
		GraphAccount          string   `mapstructure:"graph_account" json:"graph_account" yaml:"graph_account"`
		RadioName             string   `mapstructure:"radio_name" json:"radio_name" yaml:"radio_name"`
		RegistrySubgraph      string   `mapstructure:"registry_subgraph" json:"registry_subgraph" yaml:"registry_subgraph"`
		NetworkSubgraph       string   `mapstructure:"network_subgraph" json:"network_subgraph" yaml:"network_subgraph"`
		GraphNodeEndpoint     string   `mapstructure:"graph_node_endpoint" json:"graph_node_endpoint" yaml:"graph_node_endpoint"`
		IDValidation          string   `mapstructure:"id_validation" json:"id_validation" yaml:"id_validation"`
		BootNodeAddresses     []string `mapstructure:"boot_node_addresses" json:"boot_node_addresses" yaml:"boot_node_addresses"`
		Discv5ENRs            []string `mapstructure:"discv5_enrs" json:"discv5_enrs" yaml:"discv5_enrs"`
		Subtopics             []string `mapstructure:"subtopics" json:"subtopics" yaml:"subtopics"`
		FilterProtocol        bool     `mapstructure:"filter_protocol" json:"filter_protocol" yaml:"filter_protocol"`
		AllowAllContentTopics bool     `mapstructure:"allow_all_content_topics" json:"allow_all_content_topics" yaml:"allow_all_content_topics"`
		GraphcastNamespace    string   `mapstructure:"graphcast_namespace" json:"graphcast_namespace" yaml:"graphcast_namespace"`
	} `mapstructure:"agent" json:"agent" yaml:"agent"`

	Transport struct {
		WakuHost    string `mapstructure:"waku_host" json:"waku_host" yaml:"waku_host"`
		WakuPort    int    `mapstructure:"waku_port" json:"waku_port" yaml:"waku_port"`
		WakuAddr    string `mapstructure:"waku_addr" json:"waku_addr" yaml:"waku_addr"`
		WakuNodeKey string `mapstructure:"waku_node_key" json:"waku_node_key" yaml:"waku_node_key"`
		Discv5Port  int    `mapstructure:"discv5_port" json:"discv5_port" yaml:"discv5_port"`
	} `mapstructure:"transport" json:"transport" yaml:"transport"`

	Logging struct {
		Level string `mapstructure:"level" json:"level" yaml:"level"`
	} `mapstructure:"logging" json:"logging" yaml:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load loads a .env file if present, reads config/default.yaml, merges
// config/<env>.yaml over it when env is non-empty (a missing env file is an
// error), then layers environment variable overrides on top.
// The resulting configuration is stored in AppConfig and returned.
func Load(env string) (*Config, error) {
	_ = godotenv.Load() // optional; missing .env is not an error

	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("merge %s config: %w", env, err)
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the RADIO_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("RADIO_ENV", ""))
}
