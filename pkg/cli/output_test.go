package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

type table struct {
	header []string
	rows   [][]string
}

func (t table) Header() []string { return t.header }
func (t table) Rows() [][]string { return t.rows }

var sample = table{
	header: []string{"ID", "RULE", "RISK"},
	rows: [][]string{
		{"V-000001", "sod-payments", "HIGH"},
		{"V-000002", "large-transfer", "CRITICAL"},
	},
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{in: "", want: FormatText},
		{in: "text", want: FormatText},
		{in: "json", want: FormatJSON},
		{in: "csv", want: FormatCSV},
		{in: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseOutputFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var cfgErr *ConfigError
				if !errors.As(err, &cfgErr) {
					t.Errorf("expected ConfigError, got %T", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("ParseOutputFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name string
		data any
		want string
	}{
		{
			name: "plain value",
			data: "3 violations",
			want: "3 violations\n",
		},
		{
			name: "table",
			data: sample,
			want: "ID        RULE            RISK\n" +
				"V-000001  sod-payments    HIGH\n" +
				"V-000002  large-transfer  CRITICAL\n",
		},
		{
			name: "short row",
			data: table{header: []string{"A", "B"}, rows: [][]string{{"x"}}},
			want: "A  B\nx  \n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			if err := (&TextFormatter{}).FormatTo(buf, tt.data); err != nil {
				t.Fatalf("FormatTo() error = %v", err)
			}
			if buf.String() != tt.want {
				t.Errorf("FormatTo() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestJSONFormatter(t *testing.T) {
	data := map[string]any{"checked": 4, "escalated": 1}

	for _, indent := range []bool{false, true} {
		buf := &bytes.Buffer{}
		if err := (&JSONFormatter{Indent: indent}).FormatTo(buf, data); err != nil {
			t.Fatalf("FormatTo() error = %v", err)
		}
		var decoded map[string]float64
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		if decoded["checked"] != 4 || decoded["escalated"] != 1 {
			t.Errorf("decoded = %v", decoded)
		}
		if indent != bytes.Contains(buf.Bytes(), []byte("\n  ")) {
			t.Errorf("indent=%v produced %q", indent, buf.String())
		}
	}
}

func TestCSVFormatter(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := (&CSVFormatter{}).FormatTo(buf, sample); err != nil {
		t.Fatalf("FormatTo() error = %v", err)
	}
	want := "ID,RULE,RISK\nV-000001,sod-payments,HIGH\nV-000002,large-transfer,CRITICAL\n"
	if buf.String() != want {
		t.Errorf("FormatTo() = %q, want %q", buf.String(), want)
	}

	if err := (&CSVFormatter{}).FormatTo(buf, "not a table"); err == nil {
		t.Error("expected error for non-tabular data")
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON).(*JSONFormatter); !ok {
		t.Error("json format should produce a JSONFormatter")
	}
	if _, ok := NewFormatter(FormatCSV).(*CSVFormatter); !ok {
		t.Error("csv format should produce a CSVFormatter")
	}
	if _, ok := NewFormatter(FormatText).(*TextFormatter); !ok {
		t.Error("text format should produce a TextFormatter")
	}
}
