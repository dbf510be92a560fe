package views

import (
	"strings"
	"unicode"

	"github.com/rivo/tview"
)

// unrenderable lists code points that tcell draws with the wrong width:
// skin tone modifiers, the zero width joiner and variation selectors.
var unrenderable = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x200d, Hi: 0x200d, Stride: 1},
		{Lo: 0xfe00, Hi: 0xfe0f, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1f3fb, Hi: 0x1f3ff, Stride: 1},
		{Lo: 0xe0100, Hi: 0xe01ef, Stride: 1},
	},
}

// clean prepares backend text for a single table cell or text line. It
// drops unrenderable code points and control characters, folds newlines
// to spaces and escapes tview color tags.
func clean(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return ' '
		case unicode.Is(unrenderable, r), unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	return tview.Escape(s)
}

// cleanBlock is clean for multi-line bodies; newlines are kept.
func cleanBlock(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = clean(l)
	}
	return strings.Join(lines, "\n")
}
