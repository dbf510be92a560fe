package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/matheus3301/telesync/internal/api"
	"github.com/matheus3301/telesync/internal/session"
	"github.com/matheus3301/telesync/internal/tui"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	flag.Parse()

	sessionName, err := session.Resolve(*sessionFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	socketPath := session.SocketPath(sessionName)

	c, err := api.Dial(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to daemon: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	// Probe daemon health; auto-start if needed.
	if !probeDaemon(c) {
		fmt.Fprintf(os.Stderr, "daemon not running for session %q, starting...\n", sessionName)
		if err := startDaemon(sessionName); err != nil {
			fmt.Fprintf(os.Stderr, "failed to start daemon: %v\n", err)
			os.Exit(1)
		}
		if !waitForDaemon(c, 30*time.Second) {
			fmt.Fprintf(os.Stderr, "daemon did not become ready; see %s\n", session.LogPath(sessionName))
			fmt.Fprintf(os.Stderr, "a new session must be linked first: telesyncctl --session %s auth login\n", sessionName)
			os.Exit(1)
		}
	}

	app := tui.NewApp(c, sessionName)
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// probeDaemon checks if a daemon is running and responsive on the socket.
func probeDaemon(c *api.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := c.GetStatus(ctx)
	return err == nil
}

func startDaemon(sessionName string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	daemonPath := filepath.Join(filepath.Dir(executable), "telesyncd")
	if _, err := os.Stat(daemonPath); err != nil {
		daemonPath = "telesyncd"
	}

	cmd := exec.Command(daemonPath, "--session", sessionName)
	// The daemon logs to its own file; stderr only matters until it is up.
	cmd.Stderr = nil
	return cmd.Start()
}

// waitForDaemon polls the daemon with a real call, not just a socket connect.
func waitForDaemon(c *api.Client, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if probeDaemon(c) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}
