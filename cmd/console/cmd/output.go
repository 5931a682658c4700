package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"recruitpipe/console/internal/security"
)

// printer writes command output, colored when enabled.
type printer struct {
	out, err io.Writer
	colors   bool
}

func newPrinter(out, err io.Writer, colors bool) *printer {
	return &printer{out: out, err: err, colors: colors}
}

func (p *printer) paint(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	if p.colors {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}

// Println prints plain text.
func (p *printer) Println(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Success prints a green check line.
func (p *printer) Success(format string, args ...any) {
	p.paint(color.FgGreen).Fprintf(p.out, "✓ "+format+"\n", args...)
}

// Info prints a cyan line.
func (p *printer) Info(format string, args ...any) {
	p.paint(color.FgCyan).Fprintf(p.out, format+"\n", args...)
}

// Warn prints a yellow line to stderr.
func (p *printer) Warn(format string, args ...any) {
	p.paint(color.FgYellow).Fprintf(p.err, "⚠ "+format+"\n", args...)
}

// Prompt writes a prompt without a trailing newline.
func (p *printer) Prompt(label string) {
	p.paint(color.Bold).Fprint(p.out, label)
}

// Policy prints one line per password rule: green when met, red when not.
func (p *printer) Policy(results []security.RuleResult) {
	for _, r := range results {
		if r.Passed {
			p.paint(color.FgGreen).Fprintf(p.out, "  ✓ %s\n", r.Description)
		} else {
			p.paint(color.FgRed).Fprintf(p.out, "  ✗ %s\n", r.Description)
		}
	}
}

// Field prints an aligned "label: value" line with a bold label.
func (p *printer) Field(label, value string) {
	p.paint(color.Bold).Fprintf(p.out, "%-9s", label+":")
	fmt.Fprintf(p.out, " %s\n", value)
}
