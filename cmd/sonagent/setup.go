package main

import (
	"github.com/spf13/cobra"

	"sonagent/internal/config"
	"sonagent/internal/setup"
)

var (
	setupModelPath string
	setupYes       bool
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Provision the workspace (.env, directories, sample data)",
	Long: `Creates the runtime directories, writes or updates the .env
file, drops sample documents and orders when none exist, and reports the
state of the optional integrations. Safe to run again at any time.`,
	RunE: runSetup,
}

func init() {
	setupCmd.Flags().StringVar(&setupModelPath, "model-path", "", "Model path or name (skips the prompt)")
	setupCmd.Flags().BoolVarP(&setupYes, "yes", "y", false, "Non-interactive, keep current values")
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, envFile)
	if err != nil {
		return err
	}

	_, err = setup.Run(cmd.Context(), cfg, setup.Options{
		EnvFile:   envFile,
		ModelPath: setupModelPath,
		Yes:       setupYes,
		Writer:    cmd.OutOrStdout(),
	})
	return err
}
