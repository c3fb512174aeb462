// internal/cli/errors.go
package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/arc-language/mopack"
	"github.com/arc-language/mopack/pkg/yamltools"
)

const (
	exitOK            = 0
	exitFailure       = 1
	exitConfiguration = 2
)

var (
	locationStyle = lipgloss.NewStyle().Bold(true)
	errorStyle    = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))
	caretStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))
)

// ExitCode maps an error returned by Execute to the process exit status
func ExitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case mopack.IsConfigurationError(err):
		return exitConfiguration
	}
	return exitFailure
}

// Render formats an error for the terminal. Configuration errors within a
// file show the offending line with a caret under the column.
func Render(err error) string {
	var pe *yamltools.ParseError
	if !errors.As(err, &pe) || pe.Line == 0 {
		return errorStyle.Render("error:") + " " + err.Error()
	}

	var b strings.Builder
	loc := fmt.Sprintf("%s:%d:%d:", pe.File, pe.Line, pe.Column)
	b.WriteString(locationStyle.Render(loc) + " " + errorStyle.Render("error:") + " " + pe.Msg + "\n")
	if pe.Snippet != "" {
		b.WriteString("  " + pe.Snippet + "\n")
		col := max(pe.Column, 1)
		b.WriteString("  " + strings.Repeat(" ", col-1) + caretStyle.Render("^"))
	}
	return b.String()
}
