// Package game parses game command flags and starts the game server.
package game

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	entrypoint "github.com/cortonemo/narequenta-vtt/internal/platform/cmd"
	server "github.com/cortonemo/narequenta-vtt/internal/services/game/app"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/journal/integrity"
)

// Config holds game command configuration.
type Config struct {
	Port        int    `env:"NAREQUENTA_GAME_PORT"        envDefault:"8082"`
	Addr        string `env:"NAREQUENTA_GAME_LISTEN_ADDR"`
	HTTPAddr    string `env:"NAREQUENTA_GAME_HTTP_ADDR"   envDefault:"localhost:8083"`
	DBPath      string `env:"NAREQUENTA_GAME_DB_PATH"     envDefault:"data/game.db"`
	JournalDir  string `env:"NAREQUENTA_GAME_JOURNAL_DIR" envDefault:"data/journal"`
	RulesetPath string `env:"NAREQUENTA_RULESET_PATH"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The game server port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The game server listen address (overrides -port)")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "Notifications websocket address (empty disables)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.JournalDir, "journal", cfg.JournalDir, "Resolution journal directory")
	fs.StringVar(&cfg.RulesetPath, "ruleset", cfg.RulesetPath, "Ruleset YAML override")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ServerConfig maps command configuration onto the server runtime.
func (c Config) ServerConfig() server.Config {
	addr := c.Addr
	if addr == "" {
		addr = fmt.Sprintf(":%d", c.Port)
	}
	return server.Config{
		Addr:        addr,
		HTTPAddr:    c.HTTPAddr,
		DBPath:      c.DBPath,
		JournalDir:  c.JournalDir,
		RulesetPath: c.RulesetPath,
		Logger:      log.Default(),
	}
}

// Run starts the game service.
func Run(ctx context.Context, cfg Config) error {
	serverCfg := cfg.ServerConfig()
	keyring, err := integrity.KeyringFromEnv()
	switch {
	case errors.Is(err, integrity.ErrNotConfigured):
		serverCfg.Logger.Printf("journal signing disabled: %v", err)
	case err != nil:
		return err
	default:
		serverCfg.JournalKeyring = keyring
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceGame, func(ctx context.Context) error {
		return server.Run(ctx, serverCfg)
	})
}
