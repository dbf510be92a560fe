package views

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/telesync/internal/tui/ui"
	"github.com/rivo/tview"
)

// Composer is the text input of the chat page. Lines starting with "/"
// are handed to the command callback instead of being sent.
type Composer struct {
	*tview.InputField
	onSend    func(text string)
	onCommand func(line string)
}

// NewComposer creates a new message composer.
func NewComposer(theme *ui.Theme) *Composer {
	input := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0).
		SetPlaceholder("message, or /help")
	input.SetBackgroundColor(theme.Bg)
	input.SetFieldBackgroundColor(theme.Bg)
	input.SetFieldTextColor(theme.Fg)
	input.SetLabelColor(theme.Key)
	input.SetPlaceholderTextColor(theme.Dim)

	c := &Composer{InputField: input}
	input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		text := strings.TrimSpace(c.GetText())
		if text == "" {
			return
		}
		c.SetText("")
		if strings.HasPrefix(text, "/") {
			if c.onCommand != nil {
				c.onCommand(text[1:])
			}
			return
		}
		if c.onSend != nil {
			c.onSend(text)
		}
	})
	return c
}

// SetOnSend sets the callback for a message to send.
func (c *Composer) SetOnSend(fn func(text string)) { c.onSend = fn }

// SetOnCommand sets the callback for a slash command, without the slash.
func (c *Composer) SetOnCommand(fn func(line string)) { c.onCommand = fn }
