// Package output renders command results as styled text, markdown, CSV
// or JSON depending on where stdout goes.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Mode selects the output format.
type Mode string

// Output modes.
const (
	ModeAuto     Mode = "auto"
	ModeText     Mode = "text"
	ModeMarkdown Mode = "markdown"
	ModeCSV      Mode = "csv"
	ModeJSON     Mode = "json"
)

// Modes lists the values accepted by --output.
var Modes = []string{string(ModeAuto), string(ModeText), string(ModeMarkdown), string(ModeCSV), string(ModeJSON)}

// ParseMode validates an --output value. Empty means auto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(s)); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeText, ModeMarkdown, ModeCSV, ModeJSON:
		return m, nil
	}
	return "", fmt.Errorf("unknown output format %q (want one of %s)", s, strings.Join(Modes, ", "))
}

// Renderer writes command results to out and diagnostics to errOut.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool

	header lipgloss.Style
	muted  lipgloss.Style
	ok     lipgloss.Style
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	tty := false
	if f, ok := out.(*os.File); ok {
		tty = term.IsTerminal(int(f.Fd()))
	}
	return NewRendererWithTTY(out, errOut, tty, mode)
}

// NewRendererWithTTY creates a renderer with an explicit terminal state.
func NewRendererWithTTY(out, errOut io.Writer, isTTY bool, mode Mode) *Renderer {
	var lr *lipgloss.Renderer
	if isTTY {
		lr = lipgloss.NewRenderer(out)
	} else {
		lr = lipgloss.NewRenderer(out, termenv.WithProfile(termenv.Ascii))
	}
	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
		header: lr.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		muted:  lr.NewStyle().Foreground(lipgloss.Color("8")),
		ok:     lr.NewStyle().Foreground(lipgloss.Color("10")),
	}
}

// EffectiveMode resolves auto: text on a terminal, markdown otherwise.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode == ModeAuto || r.mode == "" {
		if r.isTTY {
			return ModeText
		}
		return ModeMarkdown
	}
	return r.mode
}

// Out returns the result writer.
func (r *Renderer) Out() io.Writer { return r.out }

// Println writes a line to the result writer.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted output to the result writer.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header writes a section title.
func (r *Renderer) Header(title string) {
	switch r.EffectiveMode() {
	case ModeMarkdown:
		r.Printf("## %s\n\n", title)
	case ModeText:
		r.Println(r.header.Render(title))
	}
}

// Muted writes secondary information to the diagnostic writer.
func (r *Renderer) Muted(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.muted.Render(msg))
}

// Success reports a completed action.
func (r *Renderer) Success(msg string) {
	switch r.EffectiveMode() {
	case ModeJSON, ModeCSV:
		_, _ = fmt.Fprintln(r.errOut, msg)
	case ModeText:
		r.Println(r.ok.Render("✓ " + msg))
	default:
		r.Println(msg)
	}
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table writes rows under header in the effective mode. In JSON mode
// every row becomes an object keyed by header.
func (r *Renderer) Table(header []string, rows [][]string) error {
	mode := r.EffectiveMode()
	if mode == ModeJSON {
		objs := make([]map[string]string, 0, len(rows))
		for _, row := range rows {
			obj := make(map[string]string, len(header))
			for i, col := range header {
				if i < len(row) {
					obj[col] = row[i]
				}
			}
			objs = append(objs, obj)
		}
		return r.JSON(objs)
	}
	if len(rows) == 0 && mode != ModeCSV {
		r.Println("(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)

	h := make(table.Row, len(header))
	for i, col := range header {
		h[i] = col
	}
	t.AppendHeader(h)
	for _, row := range rows {
		tr := make(table.Row, len(row))
		for i, v := range row {
			tr[i] = v
		}
		t.AppendRow(tr)
	}

	switch mode {
	case ModeCSV:
		t.RenderCSV()
	case ModeMarkdown:
		t.RenderMarkdown()
		r.Println()
	default:
		t.Render()
		r.Printf("(%d rows)\n", len(rows))
	}
	return nil
}
