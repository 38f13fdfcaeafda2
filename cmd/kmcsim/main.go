// Command kmcsim drives the kinetic Monte Carlo social-network simulator:
// load a YAML configuration, run (or resume) the sample/apply/advance loop,
// and write the observation outputs and checkpoints spec.md §6 names.
// Grounded on the teacher's cmd/floop/main.go root-command construction:
// one *cobra.Command per subcommand, persistent flags on the root, errors
// bubbled to Execute rather than each subcommand calling os.Exit itself.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	os.Exit(run())
}

func run() int {
	rootCmd := &cobra.Command{
		Use:   "kmcsim",
		Short: "Kinetic Monte Carlo social-network simulator",
		Long: `kmcsim simulates the growth of a social network and the spread of
tweets across it using a kinetic Monte Carlo event loop: at each step it
draws an event class (agent join, follow, tweet, retweet) proportional to
its aggregate rate, samples the acting agent, applies the event, and
advances simulated time by the corresponding exponential or fixed
increment.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newResumeCmd(),
		newInspectCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "kmcsim:", err)
		var ec *exitCodeError
		if errors.As(err, &ec) {
			return ec.code
		}
		return exitConfigError
	}
	return exitNormal
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kmcsim version %s\n", version)
		},
	}
}
