package cmd

import (
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Inspect or control scheduled portal runs",
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether scheduled sync is running or paused",
	Args:  cobra.NoArgs,
	RunE:  runSyncStatus,
}

var syncPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause scheduled runs",
	Long:  `Pause scheduled runs. Manual runs and conversions keep working.`,
	Args:  cobra.NoArgs,
	RunE:  runSyncPause,
}

var syncResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume scheduled runs",
	Args:  cobra.NoArgs,
	RunE:  runSyncResume,
}

func init() {
	syncCmd.AddCommand(syncStatusCmd, syncPauseCmd, syncResumeCmd)
	rootCmd.AddCommand(syncCmd)
}

func runSyncStatus(cmd *cobra.Command, args []string) error {
	_, formatter, client, err := initializeClient(cmd)
	if err != nil {
		return err
	}

	status, err := client.SyncStatus(cmd.Context())
	if err != nil {
		formatter.PrintError(err)
		return err
	}
	return formatter.PrintSyncStatus(status)
}

func runSyncPause(cmd *cobra.Command, args []string) error {
	_, formatter, client, err := initializeClient(cmd)
	if err != nil {
		return err
	}

	if err := client.PauseSync(cmd.Context()); err != nil {
		formatter.PrintError(err)
		return err
	}
	formatter.PrintSuccess("Scheduled sync paused")
	return nil
}

func runSyncResume(cmd *cobra.Command, args []string) error {
	_, formatter, client, err := initializeClient(cmd)
	if err != nil {
		return err
	}

	if err := client.ResumeSync(cmd.Context()); err != nil {
		formatter.PrintError(err)
		return err
	}
	formatter.PrintSuccess("Scheduled sync resumed")
	return nil
}
