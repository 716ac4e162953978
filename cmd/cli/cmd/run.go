package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	cliapi "carrier-reports/internal/cli"
	"carrier-reports/internal/database"
)

var (
	runForce        bool
	runWait         bool
	runWaitTimeout  time.Duration
	runPollInterval time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <profile>",
	Short: "Trigger a portal run for a profile",
	Long: `Ask the server to log in to the profile's portal, download the report,
convert it and upload the result. The run happens in the background; use
--wait to follow it until it finishes.

Runs are rate limited per profile. Use --force to bypass the limit.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runForce, "force", false, "Bypass the per-profile rate limit")
	runCmd.Flags().BoolVarP(&runWait, "wait", "w", false, "Wait for the run to finish")
	runCmd.Flags().DurationVar(&runWaitTimeout, "timeout", 15*time.Minute, "Maximum time to wait with --wait")
	runCmd.Flags().DurationVar(&runPollInterval, "poll-interval", 2*time.Second, "Status polling interval with --wait")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, formatter, client, err := initializeClient(cmd)
	if err != nil {
		return err
	}

	run, err := client.TriggerRun(cmd.Context(), args[0], runForce)
	if err != nil {
		var apiErr *cliapi.APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			formatter.PrintInfo("Use --force to run anyway")
		}
		formatter.PrintError(err)
		return err
	}

	if !runWait {
		formatter.PrintSuccess(fmt.Sprintf("Run %s started for %s", run.ID, run.Profile))
		return formatter.PrintRun(run)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), runWaitTimeout)
	defer cancel()

	progress := cliapi.NewProgressSpinner(fmt.Sprintf("Running %s", run.Profile), cfg.NoColor || cfg.Quiet || cfg.Format == "json")
	progress.Start()
	started := time.Now()
	finished, err := client.WaitForRun(ctx, run.ID, runPollInterval, func(r *database.Run) {
		progress.SetMessage(fmt.Sprintf("Running %s (%s)", r.Profile, time.Since(started).Round(time.Second)))
	})
	progress.Stop()
	if err != nil {
		formatter.PrintError(fmt.Errorf("waiting for run %s: %w", run.ID, err))
		return err
	}

	return printFinishedRun(formatter, finished)
}

// printFinishedRun prints a terminal run and returns an error when it failed
func printFinishedRun(formatter *cliapi.OutputFormatter, run *database.Run) error {
	switch run.Status {
	case database.StatusSuccess:
		formatter.PrintSuccess(fmt.Sprintf("Run %s succeeded", run.ID))
	case database.StatusDegraded:
		formatter.PrintWarning(fmt.Sprintf("Run %s finished degraded", run.ID))
	}

	if err := formatter.PrintRun(run); err != nil {
		return err
	}

	if run.Status == database.StatusFailed {
		return fmt.Errorf("run %s failed: %s", run.ID, run.Error)
	}
	return nil
}
