// Package output provides mode-aware rendering for the LeapCI CLI.
//
// The renderer adapts to its destination: styled text on a terminal,
// plain markdown when piped, and machine-readable JSON on request.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/muesli/termenv"
)

// Mode selects the output format.
type Mode string

// Output modes. ModeAuto picks text on a TTY and markdown otherwise.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeJSON     Mode = "json"
)

// Renderer writes CLI output in the selected mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
	styles *Styles
}

// NewRenderer creates a renderer, detecting TTY capability from out.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = termenv.NewOutput(f).ColorProfile() != termenv.Ascii
	}
	return NewRendererWithTTY(out, errOut, isTTY, mode)
}

// NewRendererWithTTY creates a renderer with an explicit TTY state. Tests
// use this to pin down the effective mode.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	r := &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
	}
	r.styles = newStyles(r.EffectiveMode() == ModeText && isTTY)
	return r
}

// EffectiveMode resolves ModeAuto against the TTY state.
func (r *Renderer) EffectiveMode() Mode {
	switch r.mode {
	case ModeText, ModeMarkdown, ModeJSON:
		return r.mode
	default:
		if r.isTTY {
			return ModeText
		}
		return ModeMarkdown
	}
}

// Styles returns the style set for the effective mode.
func (r *Renderer) Styles() *Styles {
	return r.styles
}

// Out returns the destination writer, for table renderers.
func (r *Renderer) Out() io.Writer {
	return r.out
}

// Println writes a line to the output stream.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted output to the output stream.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// JSON writes v as indented JSON to the output stream.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Header writes a section heading at the given level.
func (r *Renderer) Header(level int, text string) {
	if r.EffectiveMode() == ModeMarkdown {
		_, _ = fmt.Fprintf(r.out, "%s %s\n", strings.Repeat("#", level), text)
		return
	}
	style := r.styles.Header2
	if level <= 1 {
		style = r.styles.Header1
	}
	_, _ = fmt.Fprintln(r.out, style.Render(text))
}

// Success writes a success status line.
func (r *Renderer) Success(msg string) {
	_, _ = fmt.Fprintf(r.out, "%s %s\n", r.styles.StatusPassed, msg)
}

// Warning writes a warning line to the error stream.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintf(r.errOut, "%s %s\n", r.styles.Warning.Render("warning:"), msg)
}

// Error writes an error line to the error stream.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintf(r.errOut, "%s %s\n", r.styles.Error.Render("error:"), msg)
}

// StatusLine writes a name with a status marker, e.g. a created file or a
// finished job.
func (r *Renderer) StatusLine(name, status, detail string) {
	marker := r.styles.Muted.Render("-")
	switch status {
	case "success", "passed", "ok":
		marker = r.styles.StatusPassed.String()
	case "failed", "errored", "error":
		marker = r.styles.StatusFailed.String()
	case "warning", "warn":
		marker = r.styles.Warning.Render("!")
	}
	if detail != "" {
		_, _ = fmt.Fprintf(r.out, "  %s %s  %s\n", marker, name, r.styles.Muted.Render(detail))
		return
	}
	_, _ = fmt.Fprintf(r.out, "  %s %s\n", marker, name)
}
