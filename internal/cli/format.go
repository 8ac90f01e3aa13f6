package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// fatih/color disables these when the output is not a TTY
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
	labelColor   = color.New(color.FgWhite, color.Bold)
	valueColor   = color.New(color.FgHiBlack)
	dimColor     = color.New(color.FgHiBlack)
)

// printer writes decorated output for one command.
type printer struct {
	out io.Writer
	err io.Writer
}

func newPrinter(cmd *cobra.Command) *printer {
	return &printer{out: cmd.OutOrStdout(), err: cmd.ErrOrStderr()}
}

// Section prints a section header
func (p *printer) Section(title string) {
	_, _ = fmt.Fprintln(p.out)
	_, _ = headerColor.Fprintf(p.out, "▸ %s\n", title)
	_, _ = fmt.Fprintln(p.out)
}

func (p *printer) Success(msg string) { p.status(p.out, successColor, "✓", msg) }

func (p *printer) Warning(msg string) { p.status(p.out, warningColor, "⚠", msg) }

// Error prints to stderr.
func (p *printer) Error(msg string) { p.status(p.err, errorColor, "✗", msg) }

func (p *printer) status(w io.Writer, c *color.Color, symbol, msg string) {
	_, _ = c.Fprintf(w, "%s %s\n", symbol, msg)
}

func (p *printer) Info(msg string) {
	_, _ = fmt.Fprintln(p.out, msg)
}

// LabelValue prints an indented "label: value" line.
func (p *printer) LabelValue(label, value string) {
	_, _ = labelColor.Fprintf(p.out, "  %s: ", label)
	_, _ = valueColor.Fprintln(p.out, value)
}

// List prints items as bullets, indented by two spaces per level.
func (p *printer) List(items []string, indent int) {
	prefix := strings.Repeat("  ", indent)
	for _, item := range items {
		_, _ = infoColor.Fprintf(p.out, "%s• %s\n", prefix, item)
	}
}

// Table prints rows under a header and a dashed rule. Cells beyond the
// header count are dropped.
func (p *printer) Table(headers []string, rows [][]string) {
	if len(headers) == 0 || len(rows) == 0 {
		return
	}
	widths := columnWidths(headers, rows)

	rule := make([]string, len(widths))
	for i, w := range widths {
		rule[i] = strings.Repeat("-", w)
	}

	p.row(headerColor, headers, widths)
	p.row(nil, rule, widths)
	for _, r := range rows {
		p.row(valueColor, r, widths)
	}
}

func (p *printer) row(c *color.Color, cells []string, widths []int) {
	var line strings.Builder
	line.WriteString("  ")
	for i, w := range widths {
		if i > 0 {
			line.WriteString("  ")
		}
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		if c == nil {
			fmt.Fprintf(&line, "%-*s", w, cell)
		} else {
			line.WriteString(c.Sprintf("%-*s", w, cell))
		}
	}
	_, _ = fmt.Fprintln(p.out, strings.TrimRight(line.String(), " "))
}

func columnWidths(headers []string, rows [][]string) []int {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, r := range rows {
		for i := 0; i < len(r) && i < len(widths); i++ {
			widths[i] = max(widths[i], len(r[i]))
		}
	}
	return widths
}

// EmptyState prints a dimmed placeholder line.
func (p *printer) EmptyState(msg string) {
	_, _ = dimColor.Fprintf(p.out, "  %s\n", msg)
}

// Count formats n with the matching noun, e.g. "1 module", "3 modules".
func Count(n int, singular, plural string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, singular)
	}
	return fmt.Sprintf("%d %s", n, plural)
}
