// SPDX-License-Identifier: Apache-2.0

package doctor

import (
	"io"

	"github.com/muesli/termenv"
)

// palette renders diagnostics for one writer. Colours degrade to plain text when the writer is
// not a terminal or NO_COLOR is set.
type palette struct {
	out *termenv.Output
}

func newPalette(w io.Writer, opts ...termenv.OutputOption) palette {
	return palette{out: termenv.NewOutput(w, opts...)}
}

func (p palette) style(s string, c termenv.Color, bold bool) string {
	st := p.out.String(s).Foreground(c)
	if bold {
		st = st.Bold()
	}
	return st.String()
}

func (p palette) red(s string) string        { return p.style(s, termenv.ANSIRed, false) }
func (p palette) boldRed(s string) string    { return p.style(s, termenv.ANSIRed, true) }
func (p palette) yellow(s string) string     { return p.style(s, termenv.ANSIYellow, false) }
func (p palette) boldYellow(s string) string { return p.style(s, termenv.ANSIYellow, true) }
func (p palette) cyan(s string) string       { return p.style(s, termenv.ANSICyan, false) }
func (p palette) gray(s string) string       { return p.style(s, termenv.ANSIBrightBlack, false) }
func (p palette) label(s string) string      { return p.style(s, termenv.ANSIWhite, true) }

