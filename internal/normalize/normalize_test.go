package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carrier-reports/internal/reconcile"
)

func TestDate(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		dayFirst bool
		want     string
	}{
		{"slash year first with minutes", "2025/05/23 14:30", false, "2025-05-23 14:30:00"},
		{"already normalized", "2025-05-23 14:30:00", false, "2025-05-23 14:30:00"},
		{"date only", "2025-05-23", false, "2025-05-23 00:00:00"},
		{"rfc3339", "2025-05-23T14:30:00Z", false, "2025-05-23 14:30:00"},
		{"month first", "05/06/2025", false, "2025-05-06 00:00:00"},
		{"day first", "05/06/2025", true, "2025-06-05 00:00:00"},
		{"day first with time", "23/05/2025 08:15:30", true, "2025-05-23 08:15:30"},
		{"dotted", "23.05.2025", true, "2025-05-23 00:00:00"},
		{"twelve hour", "5/23/2025 2:30 PM", false, "2025-05-23 14:30:00"},
		{"textual", "May 23, 2025", false, "2025-05-23 00:00:00"},
		{"compact", "20250523", false, "2025-05-23 00:00:00"},
		{"two digit year", "23/05/25", true, "2025-05-23 00:00:00"},
		{"excel serial", "45800", false, "2025-05-23 00:00:00"},
		{"surrounding whitespace", "  2025-05-23   14:30 ", false, "2025-05-23 14:30:00"},
		{"not a date", "not a date", false, ""},
		{"small number is not a serial", "2025", false, ""},
		{"empty", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Date(tt.in, tt.dayFirst))
		})
	}
}

func TestIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12345", "12345"},
		{" 12345.0 ", "12345"},
		{"1.23456789012E+11", "123456789012"},
		{`="00123"`, "00123"},
		{"'0987654321", "0987654321"},
		{"VN12345AB", "VN12345AB"},
		{"1.5", "1.5"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Identifier(tt.in))
		})
	}
}

func TestCurrency(t *testing.T) {
	assert.Equal(t, "1,200.50", Currency(" 1,200.50 "))
	assert.Equal(t, "150.000 ₫", Currency("150.000 ₫"))
}

func newTable() *reconcile.Table {
	return &reconcile.Table{
		Columns: []string{"Airway Bill", "Pickup Date", "Cash/Cod Amt", "Note"},
		Rows: [][]string{
			{"1.23456789012E+11", "2025/05/23 14:30", " 1,200 ", " keep "},
			{`="00991"`, "not a date", "", ""},
		},
	}
}

func TestNormalize(t *testing.T) {
	rules := Rules{Columns: map[string]Kind{
		"Airway Bill":  KindText,
		"Pickup Date":  KindDate,
		"Cash/Cod Amt": KindCurrency,
		"Missing":      KindDate,
	}}
	in := newTable()

	out := Normalize(in, rules)

	require.Len(t, out.Rows, 2)
	assert.Equal(t, []string{"123456789012", "2025-05-23 14:30:00", "1,200", " keep "}, out.Rows[0])
	assert.Equal(t, []string{"00991", "", "", ""}, out.Rows[1])
	assert.Equal(t, "2025/05/23 14:30", in.Rows[0][1], "input must not be modified")
}

func TestNormalize_Idempotent(t *testing.T) {
	rules := Rules{DayFirst: true, Columns: map[string]Kind{
		"Airway Bill":  KindText,
		"Pickup Date":  KindDate,
		"Cash/Cod Amt": KindCurrency,
	}}

	once := Normalize(newTable(), rules)
	twice := Normalize(once, rules)

	assert.Equal(t, once.Rows, twice.Rows)
}

func TestRules_Validate(t *testing.T) {
	assert.NoError(t, Rules{Columns: map[string]Kind{"A": KindDate}}.Validate())
	assert.Error(t, Rules{Columns: map[string]Kind{"A": "integer"}}.Validate())
}
