package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/matheus3301/telesync/internal/api"
	"github.com/matheus3301/telesync/internal/session"
	"github.com/spf13/cobra"
)

const callTimeout = 10 * time.Second

type globals struct {
	session string
	json    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "telesyncctl",
		Short:         "Control a running telesync session daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.session, "session", "", "session name (overrides config default)")
	root.PersistentFlags().BoolVar(&g.json, "json", false, "output in JSON format")

	root.AddCommand(
		newInitCmd(g),
		newAuthCmd(g),
		newStatusCmd(g),
		newChatsCmd(g),
		newLoadCmd(g),
		newOpenCmd(g),
		newCloseCmd(g),
		newMessagesCmd(g),
		newMoreCmd(g),
		newSendCmd(g),
		newReadCmd(g),
		newDeleteCmd(g),
		newSearchCmd(g),
		newJoinCmd(g),
		newContactsCmd(g),
		newMeCmd(g),
		newDownloadCmd(g),
		newLogoutCmd(g),
		newWatchCmd(g),
	)
	return root
}

// sessionName resolves and validates the target session.
func (g *globals) sessionName() (string, error) {
	return session.Resolve(g.session)
}

// dial connects to the session daemon.
func (g *globals) dial() (*api.Client, error) {
	name, err := g.sessionName()
	if err != nil {
		return nil, err
	}
	c, err := api.Dial(session.SocketPath(name))
	if err != nil {
		return nil, fmt.Errorf("cannot connect to daemon for session %q: %w", name, err)
	}
	return c, nil
}

// call runs fn against the daemon with the default call timeout.
func (g *globals) call(cmd *cobra.Command, fn func(ctx context.Context, c *api.Client) error) error {
	c, err := g.dial()
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), callTimeout)
	defer cancel()
	return fn(ctx, c)
}

// output prints v as JSON when --json is set and runs text otherwise.
func (g *globals) output(cmd *cobra.Command, v any, text func()) error {
	if g.json {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}
