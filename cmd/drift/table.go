package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var headerStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#04B575")).
	BorderStyle(lipgloss.NormalBorder()).
	BorderForeground(lipgloss.Color("#3C3C3C")).
	BorderBottom(true)

// printTable renders rows under a styled header, padding columns to a
// common width.
func printTable(headers []string, rows [][]string) {
	widths := make([]int, len(headers))

	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	cells := make([]string, len(headers))

	for i, h := range headers {
		cells[i] = pad(h, widths[i])
	}

	fmt.Println(headerStyle.Render(strings.Join(cells, "  ")))

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				cells[i] = pad(cell, widths[i])
			}
		}

		fmt.Println(strings.Join(cells[:len(row)], "  "))
	}
}

// printRecords renders a list of loosely-typed provider records, using the
// first record's keys as headers.
func printRecords(records []map[string]any) {
	if len(records) == 0 {
		fmt.Println("[]")

		return
	}

	headers := make([]string, 0, len(records[0]))

	for k := range records[0] {
		headers = append(headers, k)
	}

	sort.Strings(headers)

	rows := make([][]string, len(records))

	for i, record := range records {
		row := make([]string, len(headers))

		for j, h := range headers {
			row[j] = fmt.Sprintf("%v", record[h])
		}

		rows[i] = row
	}

	printTable(headers, rows)
}

// printJSON writes v as indented JSON for --json output.
func printJSON(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")

	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}

	fmt.Println(string(raw))

	return nil
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}

	return s + strings.Repeat(" ", width-len(s))
}
