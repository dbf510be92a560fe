package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/telesync/internal/chatlist"
	"github.com/matheus3301/telesync/internal/tui/ui"
	"github.com/rivo/tview"
)

// ChatList is a table of chat summaries. It backs both the main list and
// the search results.
type ChatList struct {
	*tview.Table
	theme *ui.Theme
	title string
	chats []chatlist.Summary
}

// NewChatList creates an empty chat table titled title.
func NewChatList(theme *ui.Theme, title string) *ChatList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	theme.Box(table.Box, fmt.Sprintf(" %s ", title))
	table.SetSelectedStyle(tcell.StyleDefault.Foreground(theme.CursorFg).Background(theme.CursorBg))

	return &ChatList{Table: table, theme: theme, title: title}
}

// Update replaces the rows, keeping the cursor on the same chat when it is
// still listed.
func (cl *ChatList) Update(chats []chatlist.Summary) {
	selected := cl.SelectedChat()
	cl.chats = chats
	cl.Clear()

	for col, h := range []string{"", " NAME", " LAST MESSAGE"} {
		cl.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(cl.theme.HeaderFg).
			SetAttributes(tcell.AttrBold))
	}

	row := 1
	for i, c := range chats {
		color := cl.theme.Fg
		if !c.IsRead {
			color = cl.theme.Unread
		}
		cl.SetCell(i+1, 0, tview.NewTableCell(marker(c)).SetTextColor(cl.theme.Pinned))
		cl.SetCell(i+1, 1, tview.NewTableCell(" "+clean(c.Title)).SetMaxWidth(30).SetExpansion(1).SetTextColor(color))
		cl.SetCell(i+1, 2, tview.NewTableCell(" "+clean(c.LastMessagePreview)).SetExpansion(2).SetTextColor(color))
		if c.ID == selected {
			row = i + 1
		}
	}
	if len(chats) > 0 {
		cl.Select(row, 0)
	}
	cl.SetTitle(fmt.Sprintf(" %s [%d] ", cl.title, len(chats)))
}

func marker(c chatlist.Summary) string {
	kind := " "
	switch {
	case c.IsBot:
		kind = "b"
	case c.IsChannel:
		kind = "c"
	case c.IsGroup:
		kind = "g"
	}
	pin := " "
	if c.IsPinned {
		pin = "^"
	}
	return pin + kind
}

// SelectedChat returns the id of the chat under the cursor, or 0.
func (cl *ChatList) SelectedChat() int64 {
	row, _ := cl.GetSelection()
	if idx := row - 1; idx >= 0 && idx < len(cl.chats) {
		return cl.chats[idx].ID
	}
	return 0
}

// Title returns the title of chat id, or "" when it is not listed.
func (cl *ChatList) Title(id int64) string {
	for _, c := range cl.chats {
		if c.ID == id {
			return c.Title
		}
	}
	return ""
}
