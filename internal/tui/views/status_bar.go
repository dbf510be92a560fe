package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/matheus3301/telesync/internal/status"
	"github.com/matheus3301/telesync/internal/tui/ui"
	"github.com/rivo/tview"
)

// StatusBar shows the session, its connection and transient messages.
type StatusBar struct {
	*tview.TextView
	theme      *ui.Theme
	session    string
	connection string
	title      string
	hints      []string
	flash      string
	flashErr   bool
}

// NewStatusBar creates a new status bar.
func NewStatusBar(theme *ui.Theme) *StatusBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.StatusBg)
	return &StatusBar{TextView: tv, theme: theme}
}

// SetSession updates the session name display.
func (sb *StatusBar) SetSession(name string) {
	sb.session = name
	sb.render()
}

// SetConnection updates the connection state and its display title.
func (sb *StatusBar) SetConnection(state, title string) {
	sb.connection = state
	sb.title = title
	sb.render()
}

// SetHints sets the key hints of the current page.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

// SetFlash sets a temporary message; empty clears it.
func (sb *StatusBar) SetFlash(msg string, isErr bool) {
	sb.flash = msg
	sb.flashErr = isErr
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	conn := ui.Tag(sb.theme.StatusOffline) + sb.title + "[-]"
	if sb.connection == string(status.Ready) {
		conn = ui.Tag(sb.theme.StatusOnline) + "online[-]"
	} else if sb.title == "" {
		conn = ui.Tag(sb.theme.StatusOffline) + strings.ToLower(sb.connection) + "[-]"
	}

	line := fmt.Sprintf(" [::b]%s[-:-:-] | %s | %s", clean(sb.session), conn, time.Now().Format("15:04"))
	if sb.flash != "" {
		color := sb.theme.FlashInfo
		if sb.flashErr {
			color = sb.theme.FlashErr
		}
		line += fmt.Sprintf(" | %s%s[-]", ui.Tag(color), clean(sb.flash))
	} else if len(sb.hints) > 0 {
		line += " | " + ui.Tag(sb.theme.Dim) + strings.Join(sb.hints, "  ") + "[-]"
	}
	_, _ = fmt.Fprint(sb, line)
}
