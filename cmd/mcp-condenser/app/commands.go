// SPDX-FileCopyrightText: Copyright 2025 mcp-condenser contributors
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the mcp-condenser command-line
// application.
package app

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teriyakichild/mcp-condenser/pkg/config"
	"github.com/teriyakichild/mcp-condenser/pkg/logger"
	"github.com/teriyakichild/mcp-condenser/pkg/proxy"
	"github.com/teriyakichild/mcp-condenser/pkg/telemetry"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:               "mcp-condenser",
	DisableAutoGenTag: true,
	Short:             "MCP proxy that condenses tool responses into compact TOON text",
	Long: `mcp-condenser is a transparent proxy that sits between a tool-using agent
and one or more upstream MCP servers. It intercepts each tool response,
parses the payload (JSON / YAML / CSV / TSV / XML), and rewrites it into a
compact tabular text encoding that retains the facts an LLM needs while
typically shrinking the token count by 55-85%.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize()
	},
}

// NewRootCmd creates the root command for the mcp-condenser CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to proxy configuration file")
	if err := viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config")); err != nil {
		logger.Errorf("Error binding config flag: %v", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newCondenseCmd())
	rootCmd.AddCommand(newEncodeCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())

	rootCmd.SilenceUsage = true
	return rootCmd
}

// newServeCmd creates the serve command for starting the proxy.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the condensing MCP proxy",
		Long: `Start the proxy. Configuration comes from the file given via --config or
CONDENSER_CONFIG (multi-upstream mode), or from the UPSTREAM_MCP_URL env
surface (single-upstream mode).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			recorder := telemetry.NewRecorder(cfg.MetricsEnabled, cfg.MetricsPort)
			p := proxy.New(cfg, recorder)
			return p.Run(cmd.Context())
		},
	}
}

// newValidateCmd creates the validate command for checking configuration.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the proxy configuration",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("configuration is invalid: %w", err)
			}
			logger.Infof("✓ Configuration is valid")
			for _, name := range cfg.ServerNames() {
				srv := cfg.Servers[name]
				tools := "*"
				if srv.Tools != nil {
					tools = fmt.Sprintf("%v", srv.Tools)
				}
				logger.Infof("  server=%s url=%s tools=%s condense=%v",
					name, srv.URL, tools, srv.CondenseEnabled())
			}
			return nil
		},
	}
}

// newVersionCmd creates the version command.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("mcp-condenser version: %s\n", version)
		},
	}
}

// loadConfig resolves configuration from the --config flag when given,
// falling back to the CONDENSER_CONFIG / env surface.
func loadConfig() (*config.Config, error) {
	if path := viper.GetString("config"); path != "" {
		return config.FromFile(path)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
