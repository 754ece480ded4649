package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// palette holds the ANSI-256 color values the CLI actually renders with.
var (
	clrRed = lipgloss.Color("203")
	clrDim = lipgloss.Color("245")
)

// styles wraps the lipgloss renderers ocrlocate's output uses: a dim
// style for informational notes, and an error prefix for exitWith. When
// output is not a terminal, all styling is disabled and raw text is
// emitted.
type styles struct {
	enabled bool

	Dim   lipgloss.Style
	Error lipgloss.Style
}

// newStyles creates a styles instance. Colors are enabled only when w
// points to a terminal file descriptor.
func newStyles(w io.Writer) styles {
	enabled := false
	if f, ok := w.(*os.File); ok {
		enabled = term.IsTerminal(int(f.Fd()))
	}

	s := styles{enabled: enabled}
	if !enabled {
		noop := lipgloss.NewStyle()
		s.Dim, s.Error = noop, noop
		return s
	}

	s.Dim = lipgloss.NewStyle().Foreground(clrDim)
	s.Error = lipgloss.NewStyle().Foreground(clrRed).Bold(true)
	return s
}

// dim wraps text in dim/muted styling.
func (s styles) dim(text string) string {
	if !s.enabled {
		return text
	}
	return s.Dim.Render(text)
}

// errPrefix returns a styled "ERROR:" prefix.
func (s styles) errPrefix() string {
	if !s.enabled {
		return "ERROR:"
	}
	return s.Error.Render("ERROR:")
}
