package cmd

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	cliapi "carrier-reports/internal/cli"
	"carrier-reports/internal/config"
)

var (
	configFile   string
	serverURL    string
	format       string
	quiet        bool
	noColor      bool
	apiKey       string
	profilesFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "carrier-reports",
	Short: "Convert carrier portal exports and manage report runs",
	Long: `Carrier Reports turns the CSV, HTML and spreadsheet exports that
carrier portals hand out into one fixed column layout per profile.

Files can be converted locally with "sniff" and "convert". The remaining
commands talk to a running report server to list profiles, inspect run
history, trigger portal runs and pause scheduled sync.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "CLI config file (default ./cli.yaml or ~/.carrier-reports/cli.yaml)")
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", "", "API server address")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", "", "Output format (table, json)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (minimal output)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable color output")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Admin API key for run and sync commands")
	rootCmd.PersistentFlags().StringVar(&profilesFile, "profiles", "", "Profiles YAML file for local conversion")
}

// loadConfig reads the config file and environment, then applies flags
// that were set explicitly
func loadConfig(cmd *cobra.Command) (*cliapi.Config, error) {
	var (
		cfg *cliapi.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.LoadCLIConfigWithFile(configFile)
	} else {
		cfg, err = config.LoadCLIConfig()
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.ServerURL = serverURL
	}
	if flags.Changed("format") {
		cfg.Format = format
	}
	if flags.Changed("quiet") {
		cfg.Quiet = quiet
	}
	if flags.Changed("no-color") {
		cfg.NoColor = noColor
	}
	if flags.Changed("api-key") {
		cfg.APIKey = apiKey
	}
	if flags.Changed("profiles") {
		cfg.ProfilesFile = profilesFile
	}

	return cfg, cfg.Validate()
}

// initializeFormatter loads configuration and an output formatter bound to
// the command's writers
func initializeFormatter(cmd *cobra.Command) (*cliapi.Config, *cliapi.OutputFormatter, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	formatter := cliapi.NewOutputFormatterWithColor(cfg.Format, cfg.Quiet, cfg.NoColor)
	formatter.SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
	return cfg, formatter, nil
}

// initializeClient sets up configuration, formatter, and API client
func initializeClient(cmd *cobra.Command) (*cliapi.Config, *cliapi.OutputFormatter, *cliapi.Client, error) {
	cfg, formatter, err := initializeFormatter(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	client := cliapi.NewClientFromConfig(cfg)

	// Test connectivity
	if _, err := client.HealthCheck(cmd.Context()); err != nil {
		formatter.PrintError(err)
		return nil, nil, nil, err
	}

	return cfg, formatter, client, nil
}
