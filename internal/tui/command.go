package tui

import (
	"strings"

	"github.com/matheus3301/telesync/internal/tui/views"
)

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command line without its leading '/'. Names are
// case-insensitive and aliases resolve to their command.
func ParseCommand(input string) Command {
	name, args, _ := strings.Cut(strings.TrimSpace(input), " ")
	name = strings.ToLower(name)
	if full, ok := aliases[name]; ok {
		name = full
	}
	return Command{Name: name, Args: strings.TrimSpace(args)}
}

var aliases = map[string]string{
	"h": "help",
	"q": "quit",
	"m": "more",
	"r": "read",
	"d": "delete",
}

// commandHelp documents the composer commands in display order.
var commandHelp = []views.HelpEntry{
	{Key: "/more", Description: "load older messages"},
	{Key: "/read", Description: "mark the loaded messages as read"},
	{Key: "/delete <id>", Description: "delete a message for everyone"},
	{Key: "/download <id>", Description: "download the file of a message"},
	{Key: "/close", Description: "close the chat"},
	{Key: "/help", Description: "show this help"},
	{Key: "/quit", Description: "quit"},
}
