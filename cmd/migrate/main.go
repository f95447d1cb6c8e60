package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/splax/launchpad/internal/app/migrate"
	"github.com/splax/launchpad/pkg/config"
	"github.com/splax/launchpad/pkg/logger"
)

// Global carries state shared by every subcommand.
type Global struct {
	Logger *slog.Logger
	Runner migrate.Runner
}

// CLI defines the migration commands.
type CLI struct {
	DatabaseURL   string        `name:"database-url" env:"DATABASE_URL" required:"" help:"PostgreSQL connection string"`
	MigrationsDir string        `name:"dir" env:"DB_MIGRATIONS_DIR" help:"Migration directory; empty uses the embedded set"`
	Timeout       time.Duration `default:"1m" help:"Command timeout"`
	LogLevel      string        `name:"log-level" env:"LOG_LEVEL" default:"info" help:"Log level (debug|info|warn|error)"`

	Up     UpCmd     `cmd:"" default:"1" help:"Apply all pending migrations"`
	Status StatusCmd `cmd:"" help:"Print migration status"`
	Down   DownCmd   `cmd:"" help:"Roll back migrations"`
}

// UpCmd implements the 'up' command.
type UpCmd struct{}

func (UpCmd) Run(ctx context.Context, g *Global) error {
	return g.Runner.Ensure(ctx)
}

// StatusCmd implements the 'status' command.
type StatusCmd struct{}

func (StatusCmd) Run(ctx context.Context, g *Global) error {
	return g.Runner.Status(ctx)
}

// DownCmd implements the 'down' command.
type DownCmd struct {
	Target int64 `help:"Roll back to this version; 0 rolls back one step"`
}

func (d DownCmd) Run(ctx context.Context, g *Global) error {
	return g.Runner.Down(ctx, d.Target)
}

func main() {
	_ = config.LoadDotenv()
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("launchpad-migrate"),
		kong.Description("Manage the launchpad PostgreSQL schema."),
	)

	log := logger.New("migrate", logger.ParseLevel(cli.LogLevel))
	runner, err := migrate.New(cli.DatabaseURL, cli.MigrationsDir, log)
	if err != nil {
		log.Error("failed to configure migration runner", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cli.Timeout)
	defer cancel()
	kctx.BindTo(ctx, (*context.Context)(nil))
	if err := kctx.Run(&Global{Logger: log, Runner: runner}); err != nil {
		log.Error("migration command failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
	log.Info("migration command complete", "command", kctx.Command())
}
