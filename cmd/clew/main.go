// Package main is the entry point for the clew CLI.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/clewhq/clew/internal/config"
	"github.com/clewhq/clew/internal/provider"
	"github.com/clewhq/clew/internal/transcript/sqlite"
	"github.com/clewhq/clew/pkg/app"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "clew",
		Short:         "An agent runtime that turns model responses into tool calls",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(versionCmd(), runCmd(), serveCmd(), configCmd(), sessionsCmd(), serviceCmd())
	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and registered providers",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("clew %s (commit: %s, built: %s)\n", version, commit, date)
			names := provider.Names()
			if len(names) == 0 {
				fmt.Println("\nNo registered providers.")
				return
			}
			fmt.Println("\nRegistered providers:")
			for _, name := range names {
				fmt.Printf("  %s\n", name)
			}
		},
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <prompt>",
		Short: "Run one agent session for a prompt and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			sessionID, _ := cmd.Flags().GetString("session")
			accessible, _ := cmd.Flags().GetBool("accessible")

			return app.Run(cmd.Context(), app.RunParams{
				ConfigPath: cfgPath,
				Version:    version,
				Commit:     commit,
				Date:       date,
				Prompt:     args[0],
				SessionID:  sessionID,
				Accessible: accessible,
			})
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	cmd.Flags().StringP("session", "s", "", "Transcript session ID (defaults to a new UUID)")
	cmd.Flags().Bool("accessible", false, "Screen-reader friendly confirmation prompts")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start clew with the gateway and scheduled tool discovery",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			return app.Run(cmd.Context(), app.RunParams{
				ConfigPath: cfgPath,
				Version:    version,
				Commit:     commit,
				Date:       date,
			})
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.LoadAndValidate(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Configuration OK (model: %s/%s)\n", cfg.Model.Provider, cfg.Model.Name)
			for _, srv := range cfg.Servers {
				fmt.Printf("  server %s (%s)\n", srv.Name, srv.Transport)
			}
			return nil
		},
	})
	return cmd
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded transcript sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")
			if cfgPath == "" {
				resolved, err := app.ResolveConfigPath()
				if err != nil {
					return err
				}
				cfgPath = resolved
			}
			cfg, err := config.LoadAndValidate(cfgPath)
			if err != nil {
				return err
			}
			if cfg.Transcript.Path == "" {
				return fmt.Errorf("no transcript store configured")
			}

			store, err := sqlite.Open(cfg.Transcript.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			infos, err := store.Sessions(context.Background())
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Println("No sessions recorded.")
				return nil
			}
			for _, info := range infos {
				fmt.Printf("%s  %4d entries  %s\n", info.SessionID, info.Entries, info.LastAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file")
	return cmd
}
