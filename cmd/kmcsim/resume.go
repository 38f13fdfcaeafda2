package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"kmcsim/internal/snapshot"
)

func newResumeCmd() *cobra.Command {
	var configPath, runID string
	var seed int64
	var ignoreConfigHash bool

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a previously checkpointed run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			store, err := buildSnapshotStore(cfg)
			if err != nil {
				return err
			}

			ctx := context.Background()
			if runID == "" {
				runID, err = latestRunID(ctx, store)
				if err != nil {
					snapshot.CloseIfSupported(store)
					return err
				}
			}
			snap, ok, err := store.LoadRun(ctx, runID)
			if err != nil {
				snapshot.CloseIfSupported(store)
				return fmt.Errorf("loading run %s: %w", runID, err)
			}
			if !ok {
				snapshot.CloseIfSupported(store)
				return withExitCode(exitConfigError, fmt.Errorf("no checkpoint found for run %s", runID))
			}
			if hash, herr := cfg.Hash(); herr == nil && snap.ConfigHash != "" && hash != snap.ConfigHash {
				if !ignoreConfigHash {
					snapshot.CloseIfSupported(store)
					return withExitCode(exitConfigError, fmt.Errorf("configuration hash differs from checkpoint of run %s (pass --ignore-config-hash to resume anyway)", runID))
				}
				fmt.Println("kmcsim: warning: configuration has changed since this checkpoint was saved")
			}

			rt, err := resumeRuntime(cfg, store, snap, seed)
			if err != nil {
				return err
			}
			code, err := rt.execute(ctx)
			return withExitCode(code, err)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file (required)")
	cmd.Flags().StringVar(&runID, "run-id", "", "run to resume (defaults to the most recently saved run)")
	cmd.Flags().Int64Var(&seed, "seed", 1, "RNG seed for the resumed run")
	cmd.Flags().BoolVar(&ignoreConfigHash, "ignore-config-hash", false, "resume even if the configuration differs from the checkpoint's")
	cmd.MarkFlagRequired("config")

	return cmd
}

func latestRunID(ctx context.Context, store snapshot.Store) (string, error) {
	ids, err := store.ListRuns(ctx)
	if err != nil {
		return "", fmt.Errorf("listing runs: %w", err)
	}
	if len(ids) == 0 {
		return "", withExitCode(exitConfigError, fmt.Errorf("no checkpointed runs available to resume"))
	}
	return ids[len(ids)-1], nil
}
