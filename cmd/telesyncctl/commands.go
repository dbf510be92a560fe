package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/matheus3301/telesync/internal/api"
	"github.com/matheus3301/telesync/internal/chatlist"
	"github.com/matheus3301/telesync/internal/codec"
	"github.com/spf13/cobra"
)

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, arg)
	}
	return id, nil
}

func newStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.call(cmd, func(ctx context.Context, c *api.Client) error {
				st, err := c.GetStatus(ctx)
				if err != nil {
					return err
				}
				return g.output(cmd, st, func() {
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "Session:       %s\n", st.Session)
					fmt.Fprintf(out, "Authorization: %s\n", st.Authorization)
					fmt.Fprintf(out, "Connection:    %s", st.Connection)
					if st.ConnectionTitle != "" {
						fmt.Fprintf(out, " (%s)", st.ConnectionTitle)
					}
					fmt.Fprintln(out)
					fmt.Fprintf(out, "Chats:         %d\n", st.ChatCount)
					if st.OpenChatID != 0 {
						fmt.Fprintf(out, "Open chat:     %d\n", st.OpenChatID)
					}
					fmt.Fprintf(out, "Uptime:        %s\n", (time.Duration(st.UptimeMs) * time.Millisecond).Round(time.Second))
				})
			})
		},
	}
}

func printChats(cmd *cobra.Command, chats []chatlist.Summary) {
	out := cmd.OutOrStdout()
	for _, s := range chats {
		marker := " "
		if !s.IsRead {
			marker = "*"
		}
		if s.IsPinned {
			marker += "^"
		} else {
			marker += " "
		}
		fmt.Fprintf(out, "%s %-14d %-28s %s\n", marker, s.ID, truncate(s.Title, 28), s.LastMessagePreview)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func newChatsCmd(g *globals) *cobra.Command {
	var limit, offset int32
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "List the main chat list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.call(cmd, func(ctx context.Context, c *api.Client) error {
				resp, err := c.ListChats(ctx, limit, offset)
				if err != nil {
					return err
				}
				return g.output(cmd, resp, func() {
					printChats(cmd, resp.Chats)
					fmt.Fprintf(cmd.OutOrStdout(), "(%d of %d)\n", len(resp.Chats), resp.Total)
				})
			})
		},
	}
	cmd.Flags().Int32Var(&limit, "limit", 50, "maximum chats to print")
	cmd.Flags().Int32Var(&offset, "offset", 0, "chats to skip")
	return cmd
}

func newLoadCmd(g *globals) *cobra.Command {
	var limit int32
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load the next page of the chat list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.call(cmd, func(ctx context.Context, c *api.Client) error {
				done, err := c.LoadChats(ctx, limit)
				if err != nil {
					return err
				}
				return g.output(cmd, api.LoadChatsResponse{Done: done}, func() {
					if done {
						fmt.Fprintln(cmd.OutOrStdout(), "All chats loaded.")
					} else {
						fmt.Fprintln(cmd.OutOrStdout(), "More chats requested.")
					}
				})
			})
		},
	}
	cmd.Flags().Int32Var(&limit, "limit", 0, "page size (0 uses the configured default)")
	return cmd
}

func newOpenCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "open <chat-id>",
		Short: "Open a chat and start loading its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "chat id")
			if err != nil {
				return err
			}
			return g.call(cmd, func(ctx context.Context, c *api.Client) error {
				return c.OpenChat(ctx, id)
			})
		},
	}
}

func newCloseCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "close",
		Short: "Close the open chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.call(cmd, func(ctx context.Context, c *api.Client) error {
				return c.CloseChat(ctx)
			})
		},
	}
}

func newMessagesCmd(g *globals) *cobra.Command {
	var limit int32
	cmd := &cobra.Command{
		Use:   "messages",
		Short: "Print the loaded messages of the open chat, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.call(cmd, func(ctx context.Context, c *api.Client) error {
				resp, err := c.ListMessages(ctx, limit)
				if err != nil {
					return err
				}
				return g.output(cmd, resp, func() {
					out := cmd.OutOrStdout()
					for _, m := range resp.Messages {
						dir := "<"
						if m.IsOutgoing {
							dir = ">"
							if m.ID <= resp.ReadOutbox {
								dir = ">>"
							}
						}
						at := time.Unix(m.Date, 0).Format("2006-01-02 15:04")
						fmt.Fprintf(out, "%-2s %s %-12d %s\n", dir, at, m.ID, m.Preview)
					}
				})
			})
		},
	}
	cmd.Flags().Int32Var(&limit, "limit", 0, "maximum messages to print (0 prints all)")
	return cmd
}

func newMoreCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "more",
		Short: "Load one older page of the open chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.call(cmd, func(ctx context.Context, c *api.Client) error {
				n, err := c.LoadMore(ctx)
				if err != nil {
					return err
				}
				return g.output(cmd, api.LoadMoreResponse{Loaded: n}, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d messages.\n", n)
				})
			})
		},
	}
}

func newSendCmd(g *globals) *cobra.Command {
	var chatID int64
	cmd := &cobra.Command{
		Use:   "send <text>...",
		Short: "Send a text message to the open chat or --chat",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return g.call(cmd, func(ctx context.Context, c *api.Client) error {
				msg, err := c.SendText(ctx, chatID, text)
				if err != nil {
					return err
				}
				return g.output(cmd, msg, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "Sent %d to chat %d.\n", msg.ID, msg.ChatID)
				})
			})
		},
	}
	cmd.Flags().Int64Var(&chatID, "chat", 0, "target chat id")
	return cmd
}

func newReadCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "read [message-id]...",
		Short: "Mark messages of the open chat as read (all loaded when none given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := parseID(a, "message id")
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return g.call(cmd, func(ctx context.Context, c *api.Client) error {
				return c.MarkRead(ctx, ids...)
			})
		},
	}
}

func newDeleteCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <message-id>",
		Short: "Delete a message of the open chat for everyone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "message id")
			if err != nil {
				return err
			}
			return g.call(cmd, func(ctx context.Context, c *api.Client) error {
				return c.DeleteMessage(ctx, id)
			})
		},
	}
}

func newSearchCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search public chats",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.call(cmd, func(ctx context.Context, c *api.Client) error {
				resp, err := c.SearchPublicChats(ctx, args[0])
				if err != nil {
					return err
				}
				return g.output(cmd, resp, func() { printChats(cmd, resp.Chats) })
			})
		},
	}
}

func newJoinCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "join <chat-id>",
		Short: "Join a public chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "chat id")
			if err != nil {
				return err
			}
			return g.call(cmd, func(ctx context.Context, c *api.Client) error {
				return c.JoinChat(ctx, id)
			})
		},
	}
}

func newContactsCmd(g *globals) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "List contacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.call(cmd, func(ctx context.Context, c *api.Client) error {
				resp, err := c.ListContacts(ctx, refresh)
				if err != nil {
					return err
				}
				return g.output(cmd, resp, func() {
					out := cmd.OutOrStdout()
					for _, ct := range resp.Contacts {
						bot := ""
						if ct.IsBot {
							bot = " [bot]"
						}
						fmt.Fprintf(out, "%-14d %s%s", ct.ID, ct.Name, bot)
						if ct.Username != "" {
							fmt.Fprintf(out, " @%s", ct.Username)
						}
						fmt.Fprintln(out)
					}
				})
			})
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch the contact list again")
	return cmd
}

func newMeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.call(cmd, func(ctx context.Context, c *api.Client) error {
				me, err := c.GetMe(ctx)
				if err != nil {
					return err
				}
				return g.output(cmd, me, func() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s (id %d", me.Name, me.ID)
					if me.Username != "" {
						fmt.Fprintf(cmd.OutOrStdout(), ", @%s", me.Username)
					}
					fmt.Fprintln(cmd.OutOrStdout(), ")")
				})
			})
		},
	}
}

func newDownloadCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "download <chat-id> <message-id>",
		Short: "Download the file attached to a message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := parseID(args[0], "chat id")
			if err != nil {
				return err
			}
			msgID, err := parseID(args[1], "message id")
			if err != nil {
				return err
			}
			c, err := g.dial()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			// Downloads may take longer than a regular call.
			ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
			defer cancel()
			resp, err := c.Download(ctx, chatID, msgID)
			if err != nil {
				return err
			}
			return g.output(cmd, resp, func() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", resp.Path, resp.Size)
			})
		},
	}
}

func newLogoutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Unlink this device and close the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.call(cmd, func(ctx context.Context, c *api.Client) error {
				return c.Logout(ctx)
			})
		},
	}
}

func newWatchCmd(g *globals) *cobra.Command {
	var prefix string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream session events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := g.dial()
			if err != nil {
				return err
			}
			defer func() { _ = c.Close() }()

			err = c.Watch(cmd.Context(), prefix, func(e *api.Event) error {
				var payload any
				if len(e.Payload) > 0 {
					if err := codec.Unmarshal(e.Payload, &payload); err != nil {
						return err
					}
				}
				view := struct {
					ID      string `json:"id"`
					Kind    string `json:"kind"`
					At      string `json:"at"`
					Payload any    `json:"payload,omitempty"`
				}{e.ID, e.Kind, time.UnixMilli(e.OccurredAtUnixMs).Format(time.RFC3339Nano), payload}
				if g.json {
					return g.output(cmd, view, nil)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", view.At, view.Kind)
				return nil
			})
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "only events whose kind starts with this prefix")
	return cmd
}
