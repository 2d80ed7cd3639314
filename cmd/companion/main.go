package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/visenty/companion/cmd/companion/internal/commands"
	"github.com/visenty/companion/internal/logger"
	"github.com/visenty/companion/internal/telemetry"
)

var (
	version = "dev"
	cli     struct {
		Connect       commands.ConnectCmd       `cmd:"" help:"Connect using the text of a scanned QR code"`
		Status        commands.StatusCmd        `cmd:"" help:"Show the current session"`
		Refresh       commands.RefreshCmd       `cmd:"" help:"Refresh user and store details from the server"`
		Disconnect    commands.DisconnectCmd    `cmd:"" help:"Forget the current session"`
		Events        commands.EventsCmd        `cmd:"" help:"List detected events"`
		View          commands.ViewCmd          `cmd:"" help:"Show an event and mark it viewed"`
		Live          commands.LiveCmd          `cmd:"" help:"Save live frames from the store cameras"`
		Notifications commands.NotificationsCmd `cmd:"" help:"Turn alerts on or off"`

		Debug   bool   `help:"Enable debug mode." env:"VISENTY_DEBUG"`
		Config  string `help:"Config file path (default ~/.visenty/config.yaml)." env:"VISENTY_CONFIG" type:"path"`
		DataDir string `help:"State directory (default ~/.visenty)." env:"VISENTY_DATA_DIR" type:"path"`
		Version kong.VersionFlag
	}
)

func main() {
	// .env is optional; variables already set in the environment win.
	envErr := godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := kong.Parse(&cli,
		kong.Name("visenty"),
		kong.Description("Companion client for a self-hosted Visenty server."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	log.Logger = logger.Setup(cli.Debug)

	if envErr != nil && !errors.Is(envErr, fs.ErrNotExist) {
		log.Warn().Err(envErr).Msg("failed to load .env")
	}

	shutdown := func(context.Context) error { return nil }
	if telemetry.Enabled() {
		s, err := telemetry.InitTelemetry(ctx, "visenty-companion", version)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize telemetry, continuing without it")
		} else {
			shutdown = s
		}
	}

	err := cmd.Run(&commands.Globals{
		Debug:      cli.Debug,
		Version:    version,
		ConfigPath: cli.Config,
		DataDir:    cli.DataDir,
	})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if serr := shutdown(shutdownCtx); serr != nil {
		log.Error().Err(serr).Msg("failed to shutdown telemetry")
	}
	cancel()

	cmd.FatalIfErrorf(err)
}
