package cmd

import (
	"github.com/spf13/cobra"

	"carrier-reports/internal/api"
	"carrier-reports/internal/profiles"
)

var profilesLocal bool

var profilesCmd = &cobra.Command{
	Use:     "profiles [name]",
	Aliases: []string{"profile"},
	Short:   "List profiles or show one",
	Long: `List the report profiles known to the server, or show one profile's
canonical columns and aliases. With --local the built-in profiles and the
--profiles file are read without contacting a server.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runProfiles,
}

func init() {
	profilesCmd.Flags().BoolVar(&profilesLocal, "local", false, "Read profiles locally instead of from the server")
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	if profilesLocal {
		return runLocalProfiles(cmd, args)
	}

	_, formatter, client, err := initializeClient(cmd)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		summary, err := client.GetProfile(cmd.Context(), args[0])
		if err != nil {
			formatter.PrintError(err)
			return err
		}
		return formatter.PrintProfile(summary)
	}

	list, err := client.ListProfiles(cmd.Context())
	if err != nil {
		formatter.PrintError(err)
		return err
	}
	return formatter.PrintProfiles(list)
}

func runLocalProfiles(cmd *cobra.Command, args []string) error {
	cfg, formatter, err := initializeFormatter(cmd)
	if err != nil {
		return err
	}

	registry, err := profiles.Load(cfg.ProfilesFile)
	if err != nil {
		formatter.PrintError(err)
		return err
	}

	if len(args) == 1 {
		p, err := registry.Get(args[0])
		if err != nil {
			formatter.PrintError(err)
			return err
		}
		summary := localSummary(p)
		return formatter.PrintProfile(&summary)
	}

	var list []api.ProfileSummary
	for _, p := range registry.List() {
		list = append(list, localSummary(p))
	}
	return formatter.PrintProfiles(list)
}

func localSummary(p *profiles.Profile) api.ProfileSummary {
	return api.ProfileSummary{
		Profile:   p,
		Enabled:   p.IsEnabled(),
		HasPortal: p.HasPortal(),
	}
}
