package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/matheus3301/telesync/internal/config"
	"github.com/matheus3301/telesync/internal/lock"
	"github.com/matheus3301/telesync/internal/logging"
	"github.com/matheus3301/telesync/internal/session"
	"github.com/matheus3301/telesync/internal/wa"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
)

func newInitCmd(g *globals) *cobra.Command {
	var (
		apiID    int32
		apiHash  string
		language string
		force    bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the global configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := session.ConfigPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			cfg := config.Default()
			cfg.DefaultSession = g.session
			cfg.API = config.API{ID: apiID, Hash: apiHash}
			if language != "" {
				cfg.Language = language
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().Int32Var(&apiID, "api-id", 1, "application id sent to the backend")
	cmd.Flags().StringVar(&apiHash, "api-hash", "telesync", "application hash sent to the backend")
	cmd.Flags().StringVar(&language, "language", "", "interface language (BCP 47 tag)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing configuration")
	return cmd
}

func newAuthCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the linked device of a session",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "login",
		Short: "Link this session as a new device by scanning a QR code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, err := g.sessionName()
			if err != nil {
				return err
			}
			return login(cmd.Context(), cmd, name)
		},
	})
	return cmd
}

// login pairs the session's device store. It holds the session lock so it
// cannot race a running daemon.
func login(ctx context.Context, cmd *cobra.Command, name string) error {
	if err := session.EnsureDir(name); err != nil {
		return err
	}
	lk, err := lock.Acquire(session.LockPath(name))
	if err != nil {
		var held *lock.HeldError
		if errors.As(err, &held) {
			return fmt.Errorf("session %q is served by a running daemon (pid %d); stop it first", name, held.PID)
		}
		return err
	}
	defer func() { _ = lk.Release() }()

	logger, err := logging.New(session.LogPath(name), name, zapcore.WarnLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	adapter, err := wa.NewAdapter(ctx, filepath.Join(session.DatabaseDir(name), wa.DeviceFileName), logger.Named("whatsmeow"))
	if err != nil {
		return err
	}
	defer adapter.Disconnect()

	out := cmd.OutOrStdout()
	if adapter.IsLoggedIn() {
		fmt.Fprintf(out, "Session %q is already linked as %s.\n", name, adapter.OwnJID())
		return nil
	}

	events, err := wa.StartQRAuth(ctx, adapter)
	if err != nil {
		return err
	}
	for evt := range events {
		switch evt.Type {
		case wa.AuthEventQRCode:
			qr, err := qrcode.New(evt.QRCode, qrcode.Low)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, qr.ToSmallString(false))
			fmt.Fprintln(out, "Scan with WhatsApp > Linked devices > Link a device.")
		case wa.AuthEventAuthenticated:
			fmt.Fprintf(out, "Session %q linked. Start the daemon with: telesyncd --session %s\n", name, name)
			return nil
		case wa.AuthEventTimeout, wa.AuthEventAuthFailed:
			return fmt.Errorf("pairing failed: %s", evt.Message)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.New("pairing ended without a result")
}
