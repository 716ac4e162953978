package cmd

import (
	"github.com/spf13/cobra"

	cliapi "carrier-reports/internal/cli"
)

var (
	runsProfile string
	runsLimit   int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs",
	Long:  `List recent collect, convert and upload runs, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	runsCmd.Flags().StringVarP(&runsProfile, "profile", "p", "", "Only show runs for this profile")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum number of runs")

	runsCmd.AddCommand(runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, args []string) error {
	_, formatter, client, err := initializeClient(cmd)
	if err != nil {
		return err
	}

	runs, err := client.ListRuns(cmd.Context(), cliapi.RunListOptions{Profile: runsProfile, Limit: runsLimit})
	if err != nil {
		formatter.PrintError(err)
		return err
	}

	return formatter.PrintRuns(runs)
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	_, formatter, client, err := initializeClient(cmd)
	if err != nil {
		return err
	}

	run, err := client.GetRun(cmd.Context(), args[0])
	if err != nil {
		formatter.PrintError(err)
		return err
	}

	return formatter.PrintRun(run)
}
