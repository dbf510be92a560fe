package ui

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Theme holds the colors of every view.
type Theme struct {
	Bg            tcell.Color
	Fg            tcell.Color
	Dim           tcell.Color
	Border        tcell.Color
	Title         tcell.Color
	HeaderFg      tcell.Color
	CursorFg      tcell.Color
	CursorBg      tcell.Color
	Unread        tcell.Color
	Pinned        tcell.Color
	Outgoing      tcell.Color
	Incoming      tcell.Color
	Key           tcell.Color
	FlashInfo     tcell.Color
	FlashErr      tcell.Color
	StatusBg      tcell.Color
	StatusOnline  tcell.Color
	StatusOffline tcell.Color
}

// DefaultTheme returns a dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		Bg:            tcell.ColorBlack,
		Fg:            tcell.ColorCadetBlue,
		Dim:           tcell.ColorGray,
		Border:        tcell.ColorDodgerBlue,
		Title:         tcell.ColorFuchsia,
		HeaderFg:      tcell.ColorWhite,
		CursorFg:      tcell.ColorBlack,
		CursorBg:      tcell.ColorAqua,
		Unread:        tcell.ColorPapayaWhip,
		Pinned:        tcell.ColorOrange,
		Outgoing:      tcell.ColorLightGreen,
		Incoming:      tcell.ColorLightSkyBlue,
		Key:           tcell.ColorDodgerBlue,
		FlashInfo:     tcell.ColorNavajoWhite,
		FlashErr:      tcell.ColorOrangeRed,
		StatusBg:      tcell.ColorDarkSlateGray,
		StatusOnline:  tcell.ColorGreen,
		StatusOffline: tcell.ColorOrange,
	}
}

// Box applies the border, background and title colors to a tview box.
func (t *Theme) Box(b *tview.Box, title string) {
	b.SetBorder(true)
	b.SetBorderColor(t.Border)
	b.SetBackgroundColor(t.Bg)
	b.SetTitle(title)
	b.SetTitleColor(t.Title)
}

// Tag renders c as a tview color tag.
func Tag(c tcell.Color) string {
	return "[" + c.String() + "]"
}
