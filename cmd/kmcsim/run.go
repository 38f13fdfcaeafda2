package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var configPath string
	var seed int64

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation from a fresh configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			rt, err := newRuntime(cfg, seed)
			if err != nil {
				return err
			}
			code, err := rt.execute(context.Background())
			return withExitCode(code, err)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file (required)")
	cmd.Flags().Int64Var(&seed, "seed", 1, "RNG seed for the run")
	cmd.MarkFlagRequired("config")

	return cmd
}
