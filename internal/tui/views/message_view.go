package views

import (
	"fmt"
	"time"

	"github.com/matheus3301/telesync/internal/api"
	"github.com/matheus3301/telesync/internal/tui/ui"
	"github.com/rivo/tview"
)

// MessageView displays the loaded messages of the open chat.
type MessageView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewMessageView creates a new message view.
func NewMessageView(theme *ui.Theme) *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	theme.Box(tv.Box, " Messages ")
	tv.SetTextColor(theme.Fg)
	return &MessageView{TextView: tv, theme: theme}
}

// SetChatName updates the title with the chat name.
func (mv *MessageView) SetChatName(name string) {
	mv.SetTitle(fmt.Sprintf(" %s ", clean(name)))
}

// Update renders msgs, which arrive newest first, oldest at the top.
// Outgoing messages at or below readOutbox get a double tick.
func (mv *MessageView) Update(msgs []api.Message, readOutbox int64) {
	mv.Clear()
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		who, color := "them", mv.theme.Incoming
		if m.IsOutgoing {
			who, color = "you", mv.theme.Outgoing
			if m.ID <= readOutbox {
				who += " ✓✓"
			} else {
				who += " ✓"
			}
		}
		body := m.Text
		if body == "" || m.Kind != "text" {
			body = m.Preview
		}
		if m.EditDate != 0 {
			body += " (edited)"
		}
		_, _ = fmt.Fprintf(mv, "%s%s[-] %s%s #%d[-]\n%s\n\n",
			ui.Tag(color), who,
			ui.Tag(mv.theme.Dim), formatTime(m.Date), m.ID,
			cleanBlock(body))
	}
	mv.ScrollToEnd()
}

func formatTime(unix int64) string {
	if unix == 0 {
		return ""
	}
	t := time.Unix(unix, 0)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02 15:04")
}
