package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"carrier-reports/internal/api"
	"carrier-reports/internal/artifact"
	"carrier-reports/internal/database"
	"carrier-reports/internal/reconcile"
)

// OutputFormatter handles different output formats
type OutputFormatter struct {
	format   string
	quiet    bool
	useColor bool
	out      io.Writer
	errOut   io.Writer

	success lipgloss.Style
	failure lipgloss.Style
	warning lipgloss.Style
	muted   lipgloss.Style
}

// NewOutputFormatter creates a new output formatter writing to stdout
func NewOutputFormatter(format string, quiet bool) *OutputFormatter {
	return NewOutputFormatterWithColor(format, quiet, false)
}

// NewOutputFormatterWithColor creates a formatter that colors output when
// stdout is a terminal and neither noColor nor NO_COLOR is set
func NewOutputFormatterWithColor(format string, quiet, noColor bool) *OutputFormatter {
	useColor := !noColor && !termenv.EnvNoColor() && isatty.IsTerminal(os.Stdout.Fd())

	f := &OutputFormatter{
		format:   format,
		quiet:    quiet,
		useColor: useColor,
		out:      os.Stdout,
		errOut:   os.Stderr,
		success:  lipgloss.NewStyle().Foreground(lipgloss.Color("82")),
		failure:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		muted:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
	return f
}

// SetOutput redirects normal and error output
func (f *OutputFormatter) SetOutput(out, errOut io.Writer) {
	f.out = out
	f.errOut = errOut
}

func (f *OutputFormatter) paint(style lipgloss.Style, s string) string {
	if !f.useColor {
		return s
	}
	return style.Render(s)
}

func (f *OutputFormatter) encodeJSON(v interface{}) error {
	enc := json.NewEncoder(f.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (f *OutputFormatter) checkFormat() error {
	switch f.format {
	case "json", "table":
		return nil
	default:
		return fmt.Errorf("unsupported format: %s", f.format)
	}
}

// PrintSuccess prints a success message
func (f *OutputFormatter) PrintSuccess(message string) {
	if !f.quiet {
		fmt.Fprintln(f.out, f.paint(f.success, "✓ "+message))
	}
}

// PrintError prints an error message
func (f *OutputFormatter) PrintError(err error) {
	if !f.quiet {
		fmt.Fprintln(f.errOut, f.paint(f.failure, fmt.Sprintf("✗ Error: %v", err)))
	}
}

// PrintWarning prints a warning message
func (f *OutputFormatter) PrintWarning(message string) {
	if !f.quiet {
		fmt.Fprintln(f.errOut, f.paint(f.warning, "! "+message))
	}
}

// PrintInfo prints an informational message
func (f *OutputFormatter) PrintInfo(message string) {
	if !f.quiet {
		fmt.Fprintln(f.out, f.paint(f.muted, "ℹ "+message))
	}
}

// PrintProfiles prints a list of profiles
func (f *OutputFormatter) PrintProfiles(list []api.ProfileSummary) error {
	if f.quiet {
		for _, p := range list {
			fmt.Fprintln(f.out, p.Name)
		}
		return nil
	}
	if err := f.checkFormat(); err != nil {
		return err
	}
	if f.format == "json" {
		return f.encodeJSON(list)
	}

	if len(list) == 0 {
		fmt.Fprintln(f.out, "No profiles configured.")
		return nil
	}

	w := tabwriter.NewWriter(f.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tENABLED\tPORTAL\tCOLUMNS\tLAST RUN\tSTATUS")
	for _, p := range list {
		lastRun, status := "-", "-"
		if p.LastRun != nil {
			lastRun = p.LastRun.StartedAt.Local().Format("2006-01-02 15:04")
			status = p.LastRun.Status
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			p.Name,
			yesNo(p.Enabled),
			yesNo(p.HasPortal),
			len(p.Schema),
			lastRun,
			status)
	}
	return w.Flush()
}

// PrintProfile prints one profile with its schema
func (f *OutputFormatter) PrintProfile(p *api.ProfileSummary) error {
	if f.quiet {
		fmt.Fprintln(f.out, p.Name)
		return nil
	}
	if err := f.checkFormat(); err != nil {
		return err
	}
	if f.format == "json" {
		return f.encodeJSON(p)
	}

	fmt.Fprintf(f.out, "Profile: %s\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(f.out, "Description: %s\n", p.Description)
	}
	fmt.Fprintf(f.out, "Enabled: %s\n", yesNo(p.Enabled))
	fmt.Fprintf(f.out, "Portal: %s\n", yesNo(p.HasPortal))
	fmt.Fprintf(f.out, "Destination: %s\n", destination(p))
	fmt.Fprintln(f.out, "Schema:")
	for _, column := range p.Schema {
		if aliases := p.Aliases[column]; len(aliases) > 0 {
			fmt.Fprintf(f.out, "  %s %s\n", column, f.paint(f.muted, "("+strings.Join(aliases, ", ")+")"))
			continue
		}
		fmt.Fprintf(f.out, "  %s\n", column)
	}
	if p.LastRun != nil {
		fmt.Fprintf(f.out, "Last run: %s %s\n", p.LastRun.ID, f.status(p.LastRun.Status))
	}
	return nil
}

// PrintRuns prints run history. Table cells are never colored since escape
// codes break tabwriter alignment.
func (f *OutputFormatter) PrintRuns(runs []database.Run) error {
	if f.quiet {
		for _, run := range runs {
			fmt.Fprintln(f.out, run.ID)
		}
		return nil
	}
	if err := f.checkFormat(); err != nil {
		return err
	}
	if f.format == "json" {
		return f.encodeJSON(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(f.out, "No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(f.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROFILE\tTRIGGER\tSTATUS\tSTARTED\tDURATION\tROWS\tMISSING")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			shortID(run.ID),
			run.Profile,
			run.Trigger,
			run.Status,
			run.StartedAt.Local().Format("2006-01-02 15:04"),
			run.Duration().Round(time.Second),
			run.OutputRows,
			truncate(strings.Join(run.MissingColumns, ","), 30))
	}
	return w.Flush()
}

// PrintRun prints a single run
func (f *OutputFormatter) PrintRun(run *database.Run) error {
	if f.quiet {
		fmt.Fprintln(f.out, run.ID)
		return nil
	}
	if err := f.checkFormat(); err != nil {
		return err
	}
	if f.format == "json" {
		return f.encodeJSON(run)
	}

	fmt.Fprintf(f.out, "Run ID: %s\n", run.ID)
	fmt.Fprintf(f.out, "Profile: %s\n", run.Profile)
	fmt.Fprintf(f.out, "Trigger: %s\n", run.Trigger)
	fmt.Fprintf(f.out, "Status: %s\n", f.status(run.Status))
	fmt.Fprintf(f.out, "Started: %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if run.FinishedAt != nil {
		fmt.Fprintf(f.out, "Finished: %s (%s)\n", run.FinishedAt.Local().Format("2006-01-02 15:04:05"), run.Duration().Round(time.Second))
	}
	if run.ArtifactName != "" {
		fmt.Fprintf(f.out, "Artifact: %s (%s, %s)\n", run.ArtifactName, run.Format, run.MIME)
	}
	fmt.Fprintf(f.out, "Rows: %d source, %d output\n", run.SourceRows, run.OutputRows)
	if len(run.MissingColumns) > 0 {
		fmt.Fprintf(f.out, "Missing columns: %s\n", strings.Join(run.MissingColumns, ", "))
	}
	if run.Destination != "" {
		fmt.Fprintf(f.out, "Destination: %s\n", run.Destination)
	}
	if run.Error != "" {
		fmt.Fprintf(f.out, "Error: %s\n", f.paint(f.failure, run.Error))
	}
	return nil
}

// PrintArtifact prints detected format information
func (f *OutputFormatter) PrintArtifact(info *artifact.Info) error {
	if f.quiet {
		fmt.Fprintln(f.out, info.Kind)
		return nil
	}
	if err := f.checkFormat(); err != nil {
		return err
	}
	if f.format == "json" {
		return f.encodeJSON(info)
	}

	fmt.Fprintf(f.out, "File: %s\n", info.Name)
	fmt.Fprintf(f.out, "Format: %s\n", info.Kind)
	fmt.Fprintf(f.out, "MIME: %s\n", info.MIME)
	if info.Extension != "" {
		fmt.Fprintf(f.out, "Extension: %s\n", info.Extension)
	}
	fmt.Fprintf(f.out, "Size: %d bytes\n", info.Size)
	return nil
}

// PrintConversion prints a converted table with its column matches
func (f *OutputFormatter) PrintConversion(result *api.ConvertResponse) error {
	if f.quiet {
		w := tabwriter.NewWriter(f.out, 0, 0, 2, ' ', 0)
		for _, row := range result.Rows {
			fmt.Fprintln(w, strings.Join(row, "\t"))
		}
		return w.Flush()
	}
	if err := f.checkFormat(); err != nil {
		return err
	}
	if f.format == "json" {
		return f.encodeJSON(result)
	}

	fmt.Fprintf(f.out, "%s: %s, %d source rows\n", result.Profile, result.Artifact.Kind, result.SourceRows)
	f.printMatches(result.Matches)
	fmt.Fprintln(f.out)

	if len(result.Rows) == 0 {
		fmt.Fprintln(f.out, "No rows extracted.")
		return nil
	}

	w := tabwriter.NewWriter(f.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(result.Columns, "\t")))
	for _, row := range result.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = truncate(cell, 40)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

func (f *OutputFormatter) printMatches(matches []reconcile.Match) {
	w := tabwriter.NewWriter(f.out, 0, 0, 2, ' ', 0)
	for _, m := range matches {
		if !m.Found {
			fmt.Fprintf(w, "  %s\tmissing\n", m.Canonical)
			continue
		}
		fmt.Fprintf(w, "  %s\t← %s\t%s\n", m.Canonical, m.Source, m.Strategy)
	}
	w.Flush()
}

// PrintSyncStatus prints the scheduler state
func (f *OutputFormatter) PrintSyncStatus(status *api.SyncStatus) error {
	if f.format == "json" {
		return f.encodeJSON(status)
	}

	state := "stopped"
	switch {
	case status.Running && status.Paused:
		state = "paused"
	case status.Running:
		state = "running"
	}
	fmt.Fprintln(f.out, state)
	return nil
}

func (f *OutputFormatter) status(s string) string {
	switch s {
	case database.StatusSuccess:
		return f.paint(f.success, s)
	case database.StatusDegraded:
		return f.paint(f.warning, s)
	case database.StatusFailed:
		return f.paint(f.failure, s)
	default:
		return f.paint(f.muted, s)
	}
}

func destination(p *api.ProfileSummary) string {
	d := p.Destination
	switch {
	case d.File != "":
		return "file " + d.File
	case d.SpreadsheetID != "" || d.Range != "":
		return strings.TrimSpace("sheet " + d.SpreadsheetID + " " + d.Range)
	default:
		return "default"
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// shortID shortens a UUID for table output
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate truncates a string to the specified number of runes
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
