package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/telesync/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpEntry is one line of the help page.
type HelpEntry struct {
	Key         string
	Description string
}

// HelpSection groups entries under a heading.
type HelpSection struct {
	Title   string
	Entries []HelpEntry
}

// HelpView displays the key and command reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	theme.Box(tv.Box, " Help ")
	tv.SetTextColor(theme.Fg)
	return &HelpView{TextView: tv, theme: theme}
}

// Render replaces the page with sections.
func (hv *HelpView) Render(sections []HelpSection) {
	width := 0
	for _, s := range sections {
		for _, e := range s.Entries {
			width = max(width, len(e.Key))
		}
	}

	var b strings.Builder
	for _, s := range sections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.Title)
		for _, e := range s.Entries {
			pad := strings.Repeat(" ", width-len(e.Key))
			fmt.Fprintf(&b, "  %s%s[-]%s  %s\n", ui.Tag(hv.theme.Key), tview.Escape(e.Key), pad, e.Description)
		}
	}
	hv.SetText(b.String())
	hv.ScrollToBeginning()
}
