package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"kmcsim/internal/snapshot"
)

func newInspectCmd() *cobra.Command {
	var configPath, runID string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List saved runs, or describe one without resuming it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			store, err := buildSnapshotStore(cfg)
			if err != nil {
				return err
			}
			defer snapshot.CloseIfSupported(store)

			ctx := context.Background()
			if runID == "" {
				ids, err := store.ListRuns(ctx)
				if err != nil {
					return fmt.Errorf("listing runs: %w", err)
				}
				if len(ids) == 0 {
					fmt.Println("no checkpointed runs found")
					return nil
				}
				for _, id := range ids {
					fmt.Println(id)
				}
				return nil
			}

			snap, ok, err := store.LoadRun(ctx, runID)
			if err != nil {
				return fmt.Errorf("loading run %s: %w", runID, err)
			}
			if !ok {
				return withExitCode(exitConfigError, fmt.Errorf("no checkpoint found for run %s", runID))
			}
			fmt.Printf("run:          %s\n", snap.RunID)
			fmt.Printf("config hash:  %s\n", snap.ConfigHash)
			fmt.Printf("sim time:     %v\n", snap.Time)
			fmt.Printf("agents:       %d\n", snap.Stats.NAgents)
			fmt.Printf("follows:      %d (%d rejected)\n", snap.Stats.NFollows, snap.Stats.FollowRejections)
			fmt.Printf("tweets:       %d\n", snap.Stats.NTweets)
			fmt.Printf("retweets:     %d\n", snap.Stats.NRetweets)
			fmt.Printf("steps:        %d\n", snap.Stats.StepCount)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the YAML configuration file (required)")
	cmd.Flags().StringVar(&runID, "run-id", "", "run to describe (lists every saved run if omitted)")
	cmd.MarkFlagRequired("config")

	return cmd
}
