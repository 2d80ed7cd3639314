package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"

	"github.com/visenty/companion/internal/access"
	"github.com/visenty/companion/internal/client"
	"github.com/visenty/companion/internal/config"
	"github.com/visenty/companion/internal/models"
	"github.com/visenty/companion/internal/notify"
	"github.com/visenty/companion/internal/session"
	"github.com/visenty/companion/internal/store"
	"github.com/visenty/companion/internal/store/file"
	"github.com/visenty/companion/internal/tracker"
)

type Globals struct {
	Debug      bool
	Version    string
	ConfigPath string
	DataDir    string

	// Out receives command output. Nil means stdout.
	Out io.Writer
	// In is read by interactive commands. Nil means stdin.
	In io.Reader
	// Transport replaces the network transport under the client stack.
	Transport http.RoundTripper
}

func (g *Globals) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Globals) in() io.Reader {
	if g.In == nil {
		return os.Stdin
	}
	return g.In
}

// env is the set of services a command works with.
type env struct {
	cfg      config.Config
	kv       store.KV
	sessions *session.Store
	http     *http.Client
	tracker  *tracker.Tracker
	notify   *notify.Dispatcher
	out      io.Writer
}

func (g *Globals) env(ctx context.Context) (*env, error) {
	cfg, err := config.Load(g.ConfigPath)
	if err != nil {
		return nil, err
	}

	dataDir := g.DataDir
	if dataDir == "" {
		dataDir = cfg.DataDir
	}

	kv, err := file.NewKV(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open state: %w", err)
	}

	sessions := session.NewStore(kv)

	installID, err := sessions.InstallID(ctx)
	if err != nil {
		return nil, err
	}

	httpClient := client.New(client.Config{
		Timeout:   cfg.RequestTimeout,
		CacheDir:  cfg.CacheDir,
		InstallID: installID,
		UserAgent: "visenty-companion/" + g.Version,
		Base:      g.Transport,
	})

	out := g.out()

	return &env{
		cfg:      cfg,
		kv:       kv,
		sessions: sessions,
		http:     httpClient,
		tracker:  tracker.New(kv),
		notify:   notify.NewDispatcher(kv, notify.NewWriterNotifier(out)),
		out:      out,
	}, nil
}

func (e *env) accessConfig() access.Config {
	return access.Config{
		Timeout:      e.cfg.RequestTimeout,
		LegacyScheme: e.cfg.LegacyScheme,
	}
}

func printSession(w io.Writer, sess *models.Session) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	if sess.Legacy {
		fmt.Fprintln(tw, "Mode:\tlegacy (no server)")
	} else {
		fmt.Fprintf(tw, "Server:\t%s\n", sess.ServerBaseURL)
		fmt.Fprintf(tw, "Access key:\t%s\n", access.Fingerprint(sess.AccessKey))
	}

	fmt.Fprintf(tw, "User:\t%s\n", sess.IdentityName())
	if sess.Identity != nil {
		if sess.Identity.Email != "" {
			fmt.Fprintf(tw, "Email:\t%s\n", sess.Identity.Email)
		}
		if sess.Identity.Role != "" {
			fmt.Fprintf(tw, "Role:\t%s\n", sess.Identity.Role)
		}
	}

	fmt.Fprintf(tw, "Store:\t%s\n", sess.StoreName())
	if sess.Store != nil && sess.Store.Address != "" {
		fmt.Fprintf(tw, "Address:\t%s\n", sess.Store.Address)
	}

	if !sess.ValidatedAt.IsZero() {
		fmt.Fprintf(tw, "Validated:\t%s\n", sess.ValidatedAt.Local().Format("2006-01-02 15:04:05"))
	}
}
