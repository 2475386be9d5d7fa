package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/doctor-direct/ai-orchestrator/internal/config"
	"github.com/doctor-direct/ai-orchestrator/internal/models"
	"github.com/doctor-direct/ai-orchestrator/internal/services/orchestrator"
	"github.com/doctor-direct/ai-orchestrator/internal/services/providers"
	"github.com/doctor-direct/ai-orchestrator/internal/services/registry"
	"github.com/doctor-direct/ai-orchestrator/pkg/builder"
	"github.com/doctor-direct/ai-orchestrator/pkg/server"

	fiberlog "github.com/gofiber/fiber/v2/log"
	"github.com/spf13/cobra"
)

var envFiles = []string{".env.local", ".env.development", ".env"}

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "doctor-direct-ai",
		Short: "Doctor Direct AI orchestration service",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnvFiles(envFiles)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "YAML config file; the environment is used when it does not exist")

	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(providersCmd(&configPath))
	rootCmd.AddCommand(askCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			fiberlog.Info("Starting Doctor Direct AI server...")
			return server.NewWithBuilder(builder.FromConfig(cfg)).Run()
		},
	}
}

func providersCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Show configured AI providers and how requests resolve",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			reg := registry.New(cfg.AI)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODEL\tROLE\tUSABLE\tREASON")
			for _, st := range reg.Statuses() {
				role := "-"
				switch {
				case st.Default:
					role = "default"
				case st.Fallback:
					role = "fallback"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", st.Name, st.Model, role, st.Usable, st.Reason)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			_, resolutions := reg.Candidates("")
			for _, res := range resolutions {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s", res.Role, res.Provider, res.Status)
				if res.Reason != "" {
					fmt.Fprintf(cmd.OutOrStdout(), " (%s)", res.Reason)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
}

func askCmd(configPath *string) *cobra.Command {
	var (
		provider string
		system   string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send one prompt through the failover chain",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			o := orchestrator.New(registry.New(cfg.AI), providers.NewSet(),
				orchestrator.WithRetryConfig(cfg.AI.Retry))

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			resp := o.Call(ctx, models.AIRequest{
				Prompt:            strings.Join(args, " "),
				SystemInstruction: system,
				Provider:          provider,
				RequestID:         "cli",
			})
			for _, a := range resp.Attempts {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s after %d tries in %s %s\n", a.Provider, a.Outcome, a.Tries, a.Duration.Round(time.Millisecond), a.Error)
			}
			if err := resp.Err(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "served by %s (%s), %d tokens\n", resp.Provider, resp.Model, resp.TokensUsed)
			fmt.Fprintln(cmd.OutOrStdout(), resp.Content)
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "preferred provider")
	cmd.Flags().StringVarP(&system, "system", "s", "", "system instruction")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "overall deadline")
	return cmd
}
