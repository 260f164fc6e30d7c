package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sonagent/internal/config"
	"sonagent/internal/docstore"
	"sonagent/internal/llm"
	"sonagent/internal/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report configuration, data and backend status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, envFile)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Configuration:")
	fmt.Fprintf(out, "  provider:  %s\n", cfg.LLM.Provider)
	fmt.Fprintf(out, "  model:     %s\n", cfg.Model.Path)
	fmt.Fprintf(out, "  address:   %s\n", cfg.Addr())
	fmt.Fprintf(out, "  log level: %s\n", cfg.Logging.Level)

	fmt.Fprintln(out, "Backend:")
	client, err := llm.NewClient(cfg)
	if err != nil {
		fmt.Fprintf(out, "  client: %v\n", err)
	} else if p, ok := client.(llm.Pinger); ok {
		ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			fmt.Fprintf(out, "  %s: not reachable (%v)\n", cfg.LLM.BaseURL, err)
		} else {
			fmt.Fprintf(out, "  %s: up\n", cfg.LLM.BaseURL)
		}
	} else {
		fmt.Fprintf(out, "  %s: configured\n", client.Name())
	}

	fmt.Fprintln(out, "Documents:")
	if st, err := docstore.NewStore(cfg.Paths.DocumentsDir); err != nil {
		fmt.Fprintf(out, "  %v\n", err)
	} else if err := st.Load(); err != nil {
		fmt.Fprintf(out, "  %v\n", err)
	} else {
		fmt.Fprintf(out, "  %d files, %d products in %s\n",
			st.DocumentCount(), st.ProductCount(), cfg.Paths.DocumentsDir)
	}

	fmt.Fprintln(out, "Order lookup:")
	if _, err := os.Stat(cfg.Paths.CredentialsPath); err == nil {
		fmt.Fprintf(out, "  Google Sheets (%s)\n", cfg.Paths.CredentialsPath)
	} else if _, err := os.Stat(cfg.Paths.OrdersFile); err == nil {
		fmt.Fprintf(out, "  local CSV (%s)\n", cfg.Paths.OrdersFile)
	} else {
		fmt.Fprintln(out, "  disabled (no credentials.json, no orders file)")
	}

	if _, err := os.Stat(cfg.Storage.DatabasePath); err == nil {
		db, err := store.NewLocalStore(cfg.Storage.DatabasePath)
		if err != nil {
			return nil
		}
		defer db.Close()
		stats, err := db.GetStats()
		if err != nil {
			return nil
		}
		fmt.Fprintln(out, "Storage:")
		fmt.Fprintf(out, "  %d archived turns across %d sessions\n", stats.Turns, stats.Sessions)
		fmt.Fprintf(out, "  %d indexed chunks from %d documents (schema v%d)\n",
			stats.Chunks, stats.Documents, stats.SchemaVersion)
	}
	return nil
}
