// Package console renders upload sessions in a terminal.
package console

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
	"github.com/takeshy/gitlabuploader/internal/gitlab"
	"github.com/takeshy/gitlabuploader/internal/session"
	"golang.org/x/term"
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5555")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#50fa7b")).Bold(true)
)

// Format styles a log line by its tag
func Format(line gitlab.LogLine) string {
	switch line.Tag {
	case gitlab.TagError:
		return errorStyle.Render(line.Message)
	case gitlab.TagSuccess:
		return successStyle.Render(line.Message)
	default:
		return line.Message
	}
}

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Renderer prints session events. With Plain set, progress is printed as
// "NN%" lines instead of a bar.
type Renderer struct {
	out   io.Writer
	Plain bool
}

// NewRenderer creates a renderer. Plain mode is forced when out is not a terminal.
func NewRenderer(out io.Writer, plain bool) *Renderer {
	if f, ok := out.(*os.File); !ok || !IsTerminal(f) {
		plain = true
	}
	return &Renderer{out: out, Plain: plain}
}

// Render consumes s until it ends and returns its outcome
func (r *Renderer) Render(s *session.Session) (gitlab.Summary, error) {
	var bar *progressbar.ProgressBar
	if !r.Plain {
		bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionSetDescription("Uploading"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100),
			progressbar.OptionOnCompletion(func() {
				fmt.Fprint(r.out, "\n")
			}),
		)
	}

	session.Drain(s, func(ev session.Event) {
		if ev.IsProgress {
			if bar != nil {
				_ = bar.Set(ev.Percent)
			} else {
				fmt.Fprintf(r.out, "%3d%%\n", ev.Percent)
			}
			return
		}

		if bar != nil {
			_ = bar.Clear()
		}
		fmt.Fprintln(r.out, Format(*ev.Log))
		if bar != nil && bar.State().CurrentPercent > 0 && !bar.IsFinished() {
			_ = bar.RenderBlank()
		}
	})

	return s.Wait()
}
