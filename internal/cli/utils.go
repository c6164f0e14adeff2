// Package cli formats command output for tapeview.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/tapeview/internal/models"
)

// OutputFormat is the format for list output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact prints one entry per line.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates s.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case OutputText, OutputCompact, OutputJSON:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
}

// HistoryPage is one page of saved artifacts.
type HistoryPage struct {
	Artifacts []*models.Artifact `json:"artifacts"`
	Total     int64              `json:"total"`
}

// SearchResults is the result of a catalog search.
type SearchResults struct {
	Query     string              `json:"query"`
	Hits      []models.CatalogHit `json:"hits"`
	AutoFuzzy bool                `json:"auto_fuzzy,omitempty"`
}

// WriteHistory writes a history page to w in the given format.
func WriteHistory(w io.Writer, page *HistoryPage, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, page)
	case OutputCompact:
		for _, a := range page.Artifacts {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.ID, a.CreatedAt.Format("2006-01-02 15:04:05"), a.Mode, a.Path)
		}
		return nil
	}
	fmt.Fprintf(w, "\n%d saved listings (showing %d)\n\n", page.Total, len(page.Artifacts))
	for _, a := range page.Artifacts {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%s  [%s]  %s\n", a.Name, a.Mode, a.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "ID: %s\n", a.ID)
		fmt.Fprintf(w, "Path: %s (%d bytes)\n", a.Path, a.Size)
		if a.Source != "" {
			fmt.Fprintf(w, "Source: %s\n", Truncate(a.Source, 120))
		}
		fmt.Fprintln(w)
	}
	return nil
}

// WriteSearchResults writes catalog hits to w in the given format.
func WriteSearchResults(w io.Writer, res *SearchResults, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, res)
	case OutputCompact:
		for _, h := range res.Hits {
			fmt.Fprintf(w, "%.4f\t%s\t%s\n", h.Score, h.ID, h.Name)
		}
		return nil
	}
	fmt.Fprintf(w, "\nFound %d listings for %q", len(res.Hits), res.Query)
	if res.AutoFuzzy {
		fmt.Fprint(w, " (fuzzy)")
	}
	fmt.Fprint(w, "\n\n")
	for i, h := range res.Hits {
		fmt.Fprintf(w, "%d. %s  Score: %.4f\n   ID: %s\n", i+1, h.Name, h.Score, h.ID)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Truncate truncates s to maxLen and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// TruncateLines returns the first maxLines lines of s, marking the cut.
func TruncateLines(s string, maxLines int) string {
	if maxLines <= 0 {
		return s
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) <= maxLines {
		return s
	}
	return strings.Join(lines[:maxLines], "") + "...\n"
}
