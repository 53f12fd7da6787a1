// Package output renders CLI results as tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Format selects how a Printer renders values.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat accepts table, json, yaml or yml. Empty means table.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table", "":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("invalid output format: %q (valid: table, json, yaml)", s)
	}
}

func (f Format) String() string {
	return string(f)
}

// TableRenderer is implemented by values that know their table layout.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// Printer writes values to out in one format.
type Printer struct {
	out    io.Writer
	format Format
	color  bool
}

// NewPrinter creates a Printer. color enables ANSI status colors.
func NewPrinter(out io.Writer, format Format, color bool) *Printer {
	return &Printer{out: out, format: format, color: color}
}

func (p *Printer) Format() Format {
	return p.format
}

func (p *Printer) Writer() io.Writer {
	return p.out
}

// Print renders data. In table format, values that are not a TableRenderer
// fall back to JSON.
func (p *Printer) Print(data any) error {
	switch p.format {
	case FormatTable:
		if r, ok := data.(TableRenderer); ok {
			return PrintTable(p.out, r)
		}
		return PrintJSON(p.out, data)
	case FormatJSON:
		return PrintJSON(p.out, data)
	case FormatYAML:
		return PrintYAML(p.out, data)
	default:
		return fmt.Errorf("unknown format: %s", p.format)
	}
}

func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.out, format, args...)
}

func (p *Printer) Success(msg string) { p.status("32", msg) }
func (p *Printer) Warning(msg string) { p.status("33", msg) }
func (p *Printer) Error(msg string)   { p.status("31", msg) }

func (p *Printer) status(code, msg string) {
	if p.color {
		_, _ = fmt.Fprintf(p.out, "\033[%sm%s\033[0m\n", code, msg)
		return
	}
	_, _ = fmt.Fprintln(p.out, msg)
}

// PrintJSON writes indented JSON.
func PrintJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// PrintYAML writes YAML with two-space indentation.
func PrintYAML(w io.Writer, data any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

func newTable(w io.Writer, sep string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator(sep)
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	return table
}

// PrintTable writes a borderless table with upper-cased headers.
func PrintTable(w io.Writer, data TableRenderer) error {
	table := newTable(w, "")
	table.SetAutoFormatHeaders(true)
	table.SetHeader(data.Headers())
	table.AppendBulk(data.Rows())
	table.Render()
	return nil
}

// PrintKeyValues writes "key: value" lines aligned in two columns.
func PrintKeyValues(w io.Writer, pairs [][2]string) error {
	table := newTable(w, ":")
	table.SetAutoFormatHeaders(false)
	for _, pair := range pairs {
		table.Append([]string{pair[0], pair[1]})
	}
	table.Render()
	return nil
}

// TableData is an ad-hoc TableRenderer.
type TableData struct {
	headers []string
	rows    [][]string
}

func NewTableData(headers ...string) *TableData {
	return &TableData{headers: headers}
}

func (t *TableData) AddRow(row ...string) {
	t.rows = append(t.rows, row)
}

func (t *TableData) Headers() []string { return t.headers }
func (t *TableData) Rows() [][]string  { return t.rows }
