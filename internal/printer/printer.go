// Package printer renders loft CLI output: coloured status lines on stdout
// and structured, human-oriented errors on stderr.
package printer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

func init() {
	// Force colour even when not attached to a TTY; NO_COLOR disables it
	if os.Getenv("NO_COLOR") == "" {
		color.NoColor = false
	}
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// Printer writes CLI output to a pair of streams.
type Printer struct {
	Out io.Writer
	Err io.Writer
}

// New returns a printer writing to out and errOut.
func New(out, errOut io.Writer) *Printer {
	return &Printer{Out: out, Err: errOut}
}

var std = New(os.Stdout, os.Stderr)

// SetOutput redirects the package-level printer, mainly for tests.
func SetOutput(out, errOut io.Writer) {
	std = New(out, errOut)
}

// Success prints a green line prefixed with a checkmark.
func (p *Printer) Success(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "✓") {
		msg = "✓ " + msg
	}
	green.Fprint(p.Out, msg)
}

// Info prints an uncoloured message.
func (p *Printer) Info(format string, a ...any) {
	fmt.Fprintf(p.Out, format, a...)
}

// Warning prints a yellow line prefixed with a warning sign.
func (p *Printer) Warning(format string, a ...any) {
	msg := fmt.Sprintf(format, a...)
	if !strings.HasPrefix(msg, "⚠️") {
		msg = "⚠️  " + msg
	}
	yellow.Fprint(p.Out, msg)
}

// Step prints a cyan progress line for multi-step operations.
func (p *Printer) Step(format string, a ...any) {
	cyan.Fprintf(p.Out, "→ %s", fmt.Sprintf(format, a...))
}

// Detail prints an indented, dimmed key/value line.
func (p *Printer) Detail(key, value string) {
	faint.Fprintf(p.Out, "  %s: ", key)
	fmt.Fprintln(p.Out, value)
}

// Error prints a titled error with an explanation and suggestions to the
// error stream, and returns an error carrying only the title. Commands
// return it to cobra, which is configured with SilenceErrors.
func (p *Printer) Error(title, explanation string, suggestions []string) error {
	return p.ErrorWithContext(title, explanation, nil, suggestions)
}

// ErrorWithContext is Error with key/value context lines, printed in key order.
func (p *Printer) ErrorWithContext(title, explanation string, context map[string]string, suggestions []string) error {
	red.Fprintf(p.Err, "%s\n\n", title)

	if explanation != "" {
		fmt.Fprintf(p.Err, "%s\n", explanation)
	}

	if len(context) > 0 {
		keys := make([]string, 0, len(context))
		for k := range context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Fprintln(p.Err)
		for _, k := range keys {
			fmt.Fprintf(p.Err, "  %s: %s\n", k, context[k])
		}
	}

	switch len(suggestions) {
	case 0:
	case 1:
		fmt.Fprintf(p.Err, "\n%s\n", suggestions[0])
	default:
		fmt.Fprintf(p.Err, "\nEither:\n")
		for i, s := range suggestions {
			fmt.Fprintf(p.Err, "  %d. %s\n", i+1, s)
		}
	}

	return fmt.Errorf("%s", title)
}

// Success prints to stdout via the package-level printer.
func Success(format string, a ...any) { std.Success(format, a...) }

// Info prints to stdout via the package-level printer.
func Info(format string, a ...any) { std.Info(format, a...) }

// Warning prints to stdout via the package-level printer.
func Warning(format string, a ...any) { std.Warning(format, a...) }

// Step prints to stdout via the package-level printer.
func Step(format string, a ...any) { std.Step(format, a...) }

// Detail prints to stdout via the package-level printer.
func Detail(key, value string) { std.Detail(key, value) }

// Error prints to stderr via the package-level printer.
func Error(title, explanation string, suggestions []string) error {
	return std.Error(title, explanation, suggestions)
}

// ErrorWithContext prints to stderr via the package-level printer.
func ErrorWithContext(title, explanation string, context map[string]string, suggestions []string) error {
	return std.ErrorWithContext(title, explanation, context, suggestions)
}
