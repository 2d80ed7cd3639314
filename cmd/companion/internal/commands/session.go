package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/visenty/companion/internal/access"
	"github.com/visenty/companion/internal/session"
)

// ConnectCmd validates a scanned QR code and stores the session.
type ConnectCmd struct {
	Scan string `arg:"" help:"Text of the scanned QR code, e.g. http://192.168.1.20:5000/access/<key>"`
}

func (c *ConnectCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.env(ctx)
	if err != nil {
		return err
	}

	auth := access.NewAuthenticator(e.http, e.sessions, e.accessConfig())

	sess, err := auth.Validate(ctx, c.Scan)
	if err != nil {
		code := access.Code(err)
		fmt.Fprintf(e.out, "Connection failed (%s)\n", code)
		fmt.Fprintln(e.out, access.Guidance(err))
		return fmt.Errorf("%s: %w", code, err)
	}

	fmt.Fprintln(e.out, "Connected.")
	fmt.Fprintln(e.out)
	printSession(e.out, sess)

	if sess.Legacy {
		fmt.Fprintln(e.out)
		fmt.Fprintln(e.out, "This QR code uses the old connect format. Ask your administrator for a new access QR code.")
	}

	return nil
}

// StatusCmd shows the persisted session.
type StatusCmd struct{}

func (s *StatusCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.env(ctx)
	if err != nil {
		return err
	}

	sess, err := e.sessions.Load(ctx)
	if errors.Is(err, session.ErrNoSession) {
		fmt.Fprintln(e.out, "Not connected.")
		fmt.Fprintln(e.out)
		fmt.Fprintln(e.out, "To connect, scan the access QR code and run:")
		fmt.Fprintln(e.out, "  visenty connect <scanned-text>")
		return nil
	}
	if err != nil {
		return err
	}

	printSession(e.out, sess)

	enabled, err := e.notify.Enabled(ctx)
	if err != nil {
		return err
	}
	state := "on"
	if !enabled {
		state = "off"
	}
	fmt.Fprintf(e.out, "Notifications: %s\n", state)

	return nil
}

// RefreshCmd re-reads user and store details without re-validating the key.
type RefreshCmd struct{}

func (r *RefreshCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.env(ctx)
	if err != nil {
		return err
	}

	sess, err := access.NewRefresher(e.http, e.sessions, e.accessConfig()).Refresh(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return fmt.Errorf("not connected, run: visenty connect <scanned-text>")
	}
	if err != nil {
		return err
	}

	printSession(e.out, sess)
	return nil
}

// DisconnectCmd forgets the session. Viewed events and settings are kept.
type DisconnectCmd struct{}

func (d *DisconnectCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.env(ctx)
	if err != nil {
		return err
	}

	if err := e.sessions.Clear(ctx); err != nil {
		return err
	}

	fmt.Fprintln(e.out, "Disconnected.")
	return nil
}

// NotificationsCmd turns alerts on or off.
type NotificationsCmd struct {
	State string `arg:"" enum:"on,off" help:"on or off"`
}

func (n *NotificationsCmd) Run(ctx context.Context, globals *Globals) error {
	e, err := globals.env(ctx)
	if err != nil {
		return err
	}

	if err := e.notify.SetEnabled(ctx, n.State == "on"); err != nil {
		return err
	}

	fmt.Fprintf(e.out, "Notifications turned %s.\n", n.State)
	return nil
}
