// ABOUTME: Loan reports as CSV, Markdown tables or HTML
// ABOUTME: Pure transforms over loans already fetched by the ledger

package report

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/2389/lendtrack/internal/store"
)

// Columns is the header of every report
var Columns = []string{"loan_id", "asset_tag", "borrower_id", "issuer_id", "issued_at", "due_at", "returned_at"}

// Format selects a report encoding
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
)

// ParseFormat accepts csv, md (or markdown) and html.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want csv, md or html)", s)
	}
}

// Extension returns the usual file extension for f, with the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

func row(l *store.Loan) []string {
	returned := ""
	if l.ReturnedAt != nil {
		returned = l.ReturnedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		strconv.FormatInt(l.ID, 10),
		l.AssetTag,
		l.BorrowerID,
		l.IssuerID,
		l.IssuedAt.UTC().Format(time.RFC3339),
		l.DueAt.UTC().Format(time.RFC3339),
		returned,
	}
}

// WriteCSV writes the header and one row per loan. Open loans have an empty
// returned_at.
func WriteCSV(w io.Writer, loans []*store.Loan) error {
	buf := bufio.NewWriter(w)
	cw := csv.NewWriter(buf)

	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, l := range loans {
		if err := cw.Write(row(l)); err != nil {
			return fmt.Errorf("writing loan %d: %w", l.ID, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return buf.Flush()
}

var mdEscaper = strings.NewReplacer(`\`, `\\`, `|`, `\|`, "\n", " ", "\r", "")

// Markdown renders loans as a GitHub-flavored Markdown table.
func Markdown(loans []*store.Loan) string {
	var b strings.Builder

	b.WriteString("| " + strings.Join(Columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(Columns)) + "\n")
	for _, l := range loans {
		cells := row(l)
		for i, c := range cells {
			cells[i] = mdEscaper.Replace(c)
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return b.String()
}

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// HTML renders the Markdown table to HTML. Raw HTML in cell values is not
// passed through.
func HTML(loans []*store.Loan) (string, error) {
	var out bytes.Buffer
	if err := md.Convert([]byte(Markdown(loans)), &out); err != nil {
		return "", fmt.Errorf("rendering report: %w", err)
	}
	return out.String(), nil
}

// Write encodes loans to w in format f.
func Write(w io.Writer, f Format, loans []*store.Loan) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, loans)
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(loans))
		return err
	case FormatHTML:
		html, err := HTML(loans)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, html)
		return err
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
}
