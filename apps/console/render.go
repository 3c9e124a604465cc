package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/gachaupg/shuletrack/core/apierr"
	"github.com/gachaupg/shuletrack/core/resource"
	exportsvc "github.com/gachaupg/shuletrack/services/export"
)

const (
	maxCellWidth   = 40
	minMatchRatio  = 0.6
	emptyTableText = "(no rows)"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E06C75"))
)

// renderTable draws rows under headers. Cells are looked up like export columns.
func renderTable(headers []string, rows []map[string]interface{}) string {
	if len(rows) == 0 {
		return emptyTableText
	}

	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		line := make([]string, 0, len(headers))
		for _, h := range headers {
			line = append(line, truncate(exportsvc.Value(row, h), maxCellWidth))
		}
		cells = append(cells, line)
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(cells...).
		String()
}

func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if r := []rune(s); len(r) > width {
		return string(r[:width-1]) + "…"
	}
	return s
}

// printError writes err for a human: field errors one per line, bulk failures with their details.
func printError(w io.Writer, err error) {
	var bulkErr *resource.BulkError
	if errors.As(err, &bulkErr) {
		fmt.Fprintln(w, errStyle.Render("error: "+bulkErr.Error()))
		for _, detail := range bulkErr.Details() {
			fmt.Fprintln(w, "  "+detail)
		}
		return
	}

	if fields, ok := apierr.Fields(err); ok && len(fields) > 0 {
		fmt.Fprintln(w, errStyle.Render("error: invalid data"))
		for _, fld := range apierr.SortedFields(fields) {
			fmt.Fprintf(w, "  %s: %s\n", fld, fields[fld])
		}
		return
	}

	fmt.Fprintln(w, errStyle.Render("error: "+err.Error()))
}

// closestMatch returns the candidate most similar to word, or "" when none is close enough.
func closestMatch(word string, candidates []string) string {
	var (
		best      string
		bestRatio float64
	)
	for _, c := range candidates {
		ratio := difflib.NewMatcher(strings.Split(word, ""), strings.Split(c, "")).Ratio()
		if ratio > bestRatio {
			best, bestRatio = c, ratio
		}
	}
	if bestRatio < minMatchRatio {
		return ""
	}
	return best
}
