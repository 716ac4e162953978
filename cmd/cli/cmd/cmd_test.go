package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carrier-reports/internal/api"
	"carrier-reports/internal/database"
)

const courierExport = `AWB No,Ref,Consignee Name,Destination,Pickup Date,Status,COD Amount
AWB1001,ORD-1,Jane Doe,Lahore,2024-01-05,Delivered,"1,250.00"
AWB1002,ORD-2,John Roe,Karachi,2024-01-06,In Transit,0
`

// executeCommand runs the root command with fresh flag values and returns
// stdout and stderr
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

func writeExport(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSniffLocal(t *testing.T) {
	path := writeExport(t, "export.xls", courierExport)

	out, _, err := executeCommand(t, "sniff", path)
	require.NoError(t, err)

	assert.Contains(t, out, "File: export.xls")
	assert.Contains(t, out, "Format: delimited-text")
}

func TestConvertLocal(t *testing.T) {
	path := writeExport(t, "export.csv", courierExport)

	out, errOut, err := executeCommand(t, "convert", "courier", path)
	require.NoError(t, err)

	assert.Contains(t, out, "courier: delimited-text, 2 source rows")
	assert.Contains(t, out, "AIRWAY BILL")
	assert.Contains(t, out, "AWB1001")
	assert.Contains(t, out, "AWB1002")
	assert.Empty(t, errOut)
}

func TestConvertLocal_WarnsOnMissingColumns(t *testing.T) {
	path := writeExport(t, "export.csv", "AWB No,Status\nAWB1,Delivered\n")

	out, errOut, err := executeCommand(t, "convert", "courier", path)
	require.NoError(t, err)

	assert.Contains(t, out, "AWB1")
	assert.Contains(t, errOut, `Column "Reference No" not found`)
	assert.Contains(t, errOut, `Column "Cash/Cod Amt" not found`)
}

func TestConvertLocal_WritesCSV(t *testing.T) {
	path := writeExport(t, "export.csv", courierExport)
	output := filepath.Join(t.TempDir(), "out", "courier.csv")

	out, _, err := executeCommand(t, "convert", "courier", path, "--output", output)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 2 rows")

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"Airway Bill", "Reference No", "Consignee", "Destination", "Pickup Date", "Status", "Cash/Cod Amt"}, records[0])
	assert.Equal(t, "AWB1001", records[1][0])
	assert.Equal(t, "ORD-1", records[1][1])
}

func TestConvertLocal_UnknownProfile(t *testing.T) {
	path := writeExport(t, "export.csv", courierExport)

	_, _, err := executeCommand(t, "convert", "nope", path)
	assert.Error(t, err)
}

func TestProfilesLocal(t *testing.T) {
	out, _, err := executeCommand(t, "profiles", "--local", "--format", "json")
	require.NoError(t, err)

	var list []api.ProfileSummary
	require.NoError(t, json.Unmarshal([]byte(out), &list))

	var names []string
	for _, p := range list {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, "courier")
	assert.Contains(t, names, "parcel")
}

func TestProfilesLocal_Show(t *testing.T) {
	out, _, err := executeCommand(t, "profiles", "courier", "--local", "--no-color")
	require.NoError(t, err)

	assert.Contains(t, out, "Profile: courier")
	assert.Contains(t, out, "Airway Bill")
}

func newFakeServer(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"healthy","database":"ok"}`))
	})
	for pattern, handler := range routes {
		mux.HandleFunc(pattern, handler)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestRunsAgainstServer(t *testing.T) {
	server := newFakeServer(t, map[string]http.HandlerFunc{
		"GET /api/runs": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "courier", r.URL.Query().Get("profile"))
			json.NewEncoder(w).Encode([]database.Run{
				{ID: "0f3a9c1e-aaaa-bbbb-cccc-000000000001", Profile: "courier", Trigger: database.TriggerManual, Status: database.StatusSuccess},
			})
		},
	})

	out, _, err := executeCommand(t, "runs", "--server", server.URL, "--profile", "courier", "--quiet")
	require.NoError(t, err)
	assert.Equal(t, "0f3a9c1e-aaaa-bbbb-cccc-000000000001\n", out)
}

func TestRunWaitReportsFailure(t *testing.T) {
	server := newFakeServer(t, map[string]http.HandlerFunc{
		"POST /api/profiles/courier/run": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusAccepted)
			json.NewEncoder(w).Encode(database.Run{ID: "run-1", Profile: "courier", Status: database.StatusRunning})
		},
		"GET /api/runs/run-1": func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(database.Run{ID: "run-1", Profile: "courier", Status: database.StatusFailed, Error: "login rejected"})
		},
	})

	out, _, err := executeCommand(t, "run", "courier", "--server", server.URL, "--api-key", "secret", "--wait", "--poll-interval", "1ms", "--no-color")
	require.Error(t, err)

	assert.Contains(t, err.Error(), "login rejected")
	assert.Contains(t, out, "Status: failed")
}

func TestRunRateLimited(t *testing.T) {
	server := newFakeServer(t, map[string]http.HandlerFunc{
		"POST /api/profiles/courier/run": func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", "300")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"rate limited"}`))
		},
	})

	out, errOut, err := executeCommand(t, "run", "courier", "--server", server.URL, "--no-color")
	require.Error(t, err)

	assert.Contains(t, out, "--force")
	assert.True(t, strings.Contains(errOut, "rate limited"), errOut)
}

func TestSyncPause(t *testing.T) {
	paused := false
	server := newFakeServer(t, map[string]http.HandlerFunc{
		"POST /api/sync/pause": func(w http.ResponseWriter, r *http.Request) {
			paused = true
			w.Write([]byte(`{"status":"paused"}`))
		},
	})

	out, _, err := executeCommand(t, "sync", "pause", "--server", server.URL, "--no-color")
	require.NoError(t, err)

	assert.True(t, paused)
	assert.Contains(t, out, "Scheduled sync paused")
}

func TestInvalidFormatFlag(t *testing.T) {
	_, _, err := executeCommand(t, "profiles", "--local", "--format", "xml")
	assert.Error(t, err)
}
