package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"carrier-reports/internal/api"
	"carrier-reports/internal/artifact"
	"carrier-reports/internal/pipeline"
	"carrier-reports/internal/profiles"
	"carrier-reports/internal/sheets"
)

var (
	sniffRemote   bool
	convertRemote bool
	convertUpload bool
	convertOutput string
	convertSheet  string
	verbose       bool
)

var sniffCmd = &cobra.Command{
	Use:   "sniff <file>...",
	Short: "Detect the real format of downloaded reports",
	Long: `Detect whether each file is delimited text, an HTML table, or a legacy
or modern spreadsheet, regardless of its extension.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSniff,
}

var convertCmd = &cobra.Command{
	Use:   "convert <profile> <file>",
	Short: "Convert a downloaded report to a profile's columns",
	Long: `Convert a report file into the profile's canonical column layout.

By default the conversion runs locally. Use --output to write the result to
a .csv or .xlsx file. With --remote the file is sent to the server instead,
and --upload also writes it to the profile's destination and records a run.`,
	Args: cobra.ExactArgs(2),
	RunE: runConvert,
}

func init() {
	sniffCmd.Flags().BoolVar(&sniffRemote, "remote", false, "Detect on the server instead of locally")

	convertCmd.Flags().BoolVar(&convertRemote, "remote", false, "Convert on the server instead of locally")
	convertCmd.Flags().BoolVar(&convertUpload, "upload", false, "Upload the result to the profile destination (implies --remote)")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "Write the converted table to a .csv or .xlsx file")
	convertCmd.Flags().StringVar(&convertSheet, "sheet", "", "Sheet name for .xlsx output (default from the profile range)")
	convertCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log conversion details to stderr")

	rootCmd.AddCommand(sniffCmd, convertCmd)
}

func runSniff(cmd *cobra.Command, args []string) error {
	if sniffRemote {
		_, formatter, client, err := initializeClient(cmd)
		if err != nil {
			return err
		}
		for _, path := range args {
			info, err := client.Sniff(cmd.Context(), path)
			if err != nil {
				formatter.PrintError(err)
				return err
			}
			if err := formatter.PrintArtifact(info); err != nil {
				return err
			}
		}
		return nil
	}

	_, formatter, err := initializeFormatter(cmd)
	if err != nil {
		return err
	}
	for _, path := range args {
		a, err := artifact.ReadFile(path)
		if err != nil {
			formatter.PrintError(err)
			return err
		}
		info := artifact.Describe(a)
		if err := formatter.PrintArtifact(&info); err != nil {
			return err
		}
	}
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	name, path := args[0], args[1]

	if convertRemote || convertUpload {
		return runRemoteConvert(cmd, name, path)
	}

	cfg, formatter, err := initializeFormatter(cmd)
	if err != nil {
		return err
	}

	registry, err := profiles.Load(cfg.ProfilesFile)
	if err != nil {
		formatter.PrintError(err)
		return err
	}
	profile, err := registry.Get(name)
	if err != nil {
		formatter.PrintError(err)
		return err
	}

	a, err := artifact.ReadFile(path)
	if err != nil {
		formatter.PrintError(err)
		return err
	}

	logger := newLogger(cmd.ErrOrStderr())
	result := pipeline.NewProcessor(logger).Process(a, profile)

	for _, column := range result.Missing() {
		formatter.PrintWarning(fmt.Sprintf("Column %q not found in %s, filled with empty values", column, a.Name))
	}

	if convertOutput != "" {
		dest := profiles.Destination{File: filepath.Base(convertOutput), Range: profile.Destination.Range}
		if convertSheet != "" {
			dest.Range = convertSheet + "!A1"
		}
		written, err := sheets.NewFileUploader(filepath.Dir(convertOutput), logger).
			Upload(cmd.Context(), dest, result.Table.Records())
		if err != nil {
			formatter.PrintError(err)
			return err
		}
		formatter.PrintSuccess(fmt.Sprintf("Wrote %d rows to %s", len(result.Table.Rows), written))
		return nil
	}

	response := api.NewConvertResponse(profile.Name, result)
	return formatter.PrintConversion(&response)
}

func runRemoteConvert(cmd *cobra.Command, name, path string) error {
	_, formatter, client, err := initializeClient(cmd)
	if err != nil {
		return err
	}

	if convertUpload {
		run, err := client.ConvertAndUpload(cmd.Context(), name, path)
		if err != nil {
			formatter.PrintError(err)
			return err
		}
		return printFinishedRun(formatter, run)
	}

	result, err := client.Convert(cmd.Context(), name, path)
	if err != nil {
		formatter.PrintError(err)
		return err
	}
	for _, column := range result.Missing {
		formatter.PrintWarning(fmt.Sprintf("Column %q not found, filled with empty values", column))
	}
	return formatter.PrintConversion(result)
}

// newLogger logs conversion details to w when --verbose is set
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelError
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
