package loadtest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strconv"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"
)

// ExportResults serializes the last fetched result in format ("json",
// "csv" or "excel").
func (c *Controller) ExportResults(format string) ([]byte, error) {
	return Export(c.Results(), format)
}

// Export serializes res. JSON is compact with no HTML escaping and no
// trailing newline. CSV is a header row plus one value row. Excel is a
// SpreadsheetML 2003 workbook.
func Export(res *domain.LoadTestResult, format string) ([]byte, error) {
	v := domain.NewValidator("export load test results")
	v.Check(format == domain.FormatJSON || format == domain.FormatCSV || format == domain.FormatExcel,
		"format", "must be one of json, csv, excel, got %q", format)
	if err := v.Err(); err != nil {
		return nil, err
	}
	if res == nil {
		return nil, fmt.Errorf("export load test results: %w", domain.ErrNoResults)
	}

	switch format {
	case domain.FormatCSV:
		return exportCSV(res)
	case domain.FormatExcel:
		return exportExcel(res)
	default:
		return exportJSON(res)
	}
}

// FileExtension returns the conventional extension for an export format.
func FileExtension(format string) string {
	switch format {
	case domain.FormatCSV:
		return ".csv"
	case domain.FormatExcel:
		return ".xls"
	default:
		return ".json"
	}
}

type field struct {
	name  string
	value float64
}

func resultFields(res *domain.LoadTestResult) []field {
	return []field{
		{"avg_cps", res.AvgCPS},
		{"max_cps", res.MaxCPS},
		{"max_concurrent", float64(res.MaxConcurrent)},
		{"overall_success_rate", res.OverallSuccessRate},
		{"total_errors", float64(res.TotalErrors)},
		{"duration", res.Duration},
	}
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func exportJSON(res *domain.LoadTestResult) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(res); err != nil {
		return nil, fmt.Errorf("export load test results: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func exportCSV(res *domain.LoadTestResult) ([]byte, error) {
	fields := resultFields(res)
	header := make([]string, len(fields))
	values := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.name
		values[i] = formatNumber(f.value)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll([][]string{header, values}); err != nil {
		return nil, fmt.Errorf("export load test results: %w", err)
	}
	return buf.Bytes(), nil
}

// SpreadsheetML 2003 document structure.
type workbook struct {
	XMLName   xml.Name    `xml:"Workbook"`
	Xmlns     string      `xml:"xmlns,attr"`
	XmlnsSS   string      `xml:"xmlns:ss,attr"`
	Worksheet []worksheet `xml:"Worksheet"`
}

type worksheet struct {
	Name  string `xml:"ss:Name,attr"`
	Table table  `xml:"Table"`
}

type table struct {
	Rows []row `xml:"Row"`
}

type row struct {
	Cells []cell `xml:"Cell"`
}

type cell struct {
	Data cellData `xml:"Data"`
}

type cellData struct {
	Type  string `xml:"ss:Type,attr"`
	Value string `xml:",chardata"`
}

const spreadsheetNS = "urn:schemas-microsoft-com:office:spreadsheet"

func exportExcel(res *domain.LoadTestResult) ([]byte, error) {
	fields := resultFields(res)
	header := row{Cells: make([]cell, len(fields))}
	values := row{Cells: make([]cell, len(fields))}
	for i, f := range fields {
		header.Cells[i] = cell{Data: cellData{Type: "String", Value: f.name}}
		values.Cells[i] = cell{Data: cellData{Type: "Number", Value: formatNumber(f.value)}}
	}

	wb := workbook{
		Xmlns:   spreadsheetNS,
		XmlnsSS: spreadsheetNS,
		Worksheet: []worksheet{{
			Name:  "Load Test Results",
			Table: table{Rows: []row{header, values}},
		}},
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<?mso-application progid="Excel.Sheet"?>` + "\n")
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(wb); err != nil {
		return nil, fmt.Errorf("export load test results: %w", err)
	}
	buf.WriteString("\n")
	return buf.Bytes(), nil
}
