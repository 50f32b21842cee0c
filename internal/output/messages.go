package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
)

// Messenger prints one-line status messages, colored by severity. Without
// color, warnings and errors carry a textual prefix instead.
type Messenger struct {
	w       io.Writer
	colored bool
}

// NewMessenger creates a messenger writing to w.
func NewMessenger(w io.Writer, colored bool) *Messenger {
	return &Messenger{w: w, colored: colored}
}

func (m *Messenger) Success(format string, args ...any) {
	m.print(color.FgGreen, "", format, args...)
}

func (m *Messenger) Warning(format string, args ...any) {
	m.print(color.FgYellow, "warning: ", format, args...)
}

func (m *Messenger) Error(format string, args ...any) {
	m.print(color.FgRed, "error: ", format, args...)
}

func (m *Messenger) Info(format string, args ...any) {
	m.print(color.FgCyan, "", format, args...)
}

func (m *Messenger) print(attr color.Attribute, prefix, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if m.colored {
		color.New(attr).Fprintln(m.w, msg)
		return
	}
	fmt.Fprintln(m.w, prefix+msg)
}

// CountColor colors a usage count: red for zero, yellow for a single use.
func CountColor(n int) string {
	text := strconv.Itoa(n)
	switch n {
	case 0:
		return color.RedString(text)
	case 1:
		return color.YellowString(text)
	default:
		return color.GreenString(text)
	}
}
