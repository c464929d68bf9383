package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
)

// Output format constants.
const (
	outputText = "text"
	outputJSON = "json"
)

func validOutputFormats() []string {
	return []string{outputText, outputJSON}
}

func isValidOutputFormat(format string) bool {
	for _, valid := range validOutputFormats() {
		if format == valid {
			return true
		}
	}
	return false
}

// output provides structured terminal output for commands.
type output interface {
	// Success prints a success message.
	Success(msg string)
	// Error prints an error message.
	Error(err error)
	// Warning prints a warning message.
	Warning(msg string)
	// Info prints an informational message.
	Info(msg string)
	// JSON outputs a value as formatted JSON.
	JSON(v any) error
}

// newOutput creates the appropriate output for the requested format.
func newOutput(w io.Writer, format string) output {
	if format == outputJSON {
		return &jsonOutput{w: w}
	}
	return newTTYOutput(w)
}

// outputStyles holds the lipgloss styles for styled terminal output.
type outputStyles struct {
	success lipgloss.Style
	errs    lipgloss.Style
	warning lipgloss.Style
	info    lipgloss.Style
	dim     lipgloss.Style
}

func newOutputStyles() *outputStyles {
	return &outputStyles{
		success: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#008700", Dark: "#00FF87"}).
			Bold(true),
		errs: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}).
			Bold(true),
		warning: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#AF8700", Dark: "#FFD700"}),
		info: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#0087AF", Dark: "#00D7FF"}),
		dim: lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#585858", Dark: "#6C6C6C"}),
	}
}

// checkNoColor disables styling when NO_COLOR is set (any value, per the
// no-color.org convention) or TERM=dumb.
func checkNoColor() {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	if os.Getenv("TERM") == "dumb" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// ttyOutput renders styled human-readable output.
type ttyOutput struct {
	w      io.Writer
	styles *outputStyles
}

func newTTYOutput(w io.Writer) *ttyOutput {
	checkNoColor()
	return &ttyOutput{w: w, styles: newOutputStyles()}
}

func (o *ttyOutput) Success(msg string) {
	_, _ = fmt.Fprintln(o.w, o.styles.success.Render("✓ "+msg))
}

func (o *ttyOutput) Error(err error) {
	_, _ = fmt.Fprintln(o.w, o.styles.errs.Render("✗ "+err.Error()))
}

func (o *ttyOutput) Warning(msg string) {
	_, _ = fmt.Fprintln(o.w, o.styles.warning.Render("⚠ "+msg))
}

func (o *ttyOutput) Info(msg string) {
	_, _ = fmt.Fprintln(o.w, o.styles.info.Render(msg))
}

func (o *ttyOutput) JSON(v any) error {
	return encodeJSON(o.w, v)
}

// jsonOutput emits machine-readable output only; status messages are
// suppressed so stdout stays parseable.
type jsonOutput struct {
	w io.Writer
}

func (o *jsonOutput) Success(string) {}

func (o *jsonOutput) Error(err error) {
	_, _ = fmt.Fprintf(o.w, "{\"error\": %q}\n", err.Error())
}

func (o *jsonOutput) Warning(string) {}

func (o *jsonOutput) Info(string) {}

func (o *jsonOutput) JSON(v any) error {
	return encodeJSON(o.w, v)
}

func encodeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeTable renders rows under a dim header, padding columns to the width
// of their longest cell. runewidth keeps alignment correct for wide runes.
func writeTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && runewidth.StringWidth(cell) > widths[i] {
				widths[i] = runewidth.StringWidth(cell)
			}
		}
	}

	styles := newOutputStyles()
	_, _ = fmt.Fprintln(w, styles.dim.Render(formatRow(headers, widths)))
	for _, row := range rows {
		_, _ = fmt.Fprintln(w, formatRow(row, widths))
	}
}

func formatRow(cells []string, widths []int) string {
	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(runewidth.FillRight(cell, widths[i]))
	}
	return strings.TrimRight(b.String(), " ")
}
