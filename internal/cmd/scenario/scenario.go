// Package scenario parses scenario command flags and runs Lua scenarios.
package scenario

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	entrypoint "github.com/cortonemo/narequenta-vtt/internal/platform/cmd"
	"github.com/cortonemo/narequenta-vtt/internal/platform/config"
	"github.com/cortonemo/narequenta-vtt/internal/tools/scenario"
)

// Config holds scenario command configuration. Variables are read with the
// NAREQUENTA_SCENARIO_ prefix, e.g. NAREQUENTA_SCENARIO_FILE.
type Config struct {
	Scenario    string        `env:"FILE"`
	DBPath      string        `env:"DB_PATH"`
	Dry         bool          `env:"DRY"`
	JournalDir  string        `env:"JOURNAL_DIR"`
	RulesetPath string        `env:"RULESET_PATH"`
	Assertions  bool          `env:"ASSERT"       envDefault:"true"`
	Verbose     bool          `env:"VERBOSE"`
	Timeout     time.Duration `env:"TIMEOUT"      envDefault:"10s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnvPrefixed(&cfg, "SCENARIO_"); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "path to a scenario lua file or a directory of them")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path (empty uses a temporary database)")
	fs.BoolVar(&cfg.Dry, "dry", cfg.Dry, "run against an in-memory store")
	fs.StringVar(&cfg.JournalDir, "journal", cfg.JournalDir, "archive applied resolutions to this directory")
	fs.StringVar(&cfg.RulesetPath, "ruleset", cfg.RulesetPath, "Ruleset YAML override")
	fs.BoolVar(&cfg.Assertions, "assert", cfg.Assertions, "enable assertions (disable to log expectations)")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose logging")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "timeout per step")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes every scenario named by cfg.Scenario. Each scenario gets its
// own runner, so a temporary database never leaks state between files.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Scenario == "" {
		return errors.New("scenario path is required")
	}
	paths, err := scenarioPaths(cfg.Scenario)
	if err != nil {
		return err
	}

	mode := scenario.AssertionStrict
	if !cfg.Assertions {
		mode = scenario.AssertionLogOnly
	}
	runCfg := scenario.Config{
		DBPath:      cfg.DBPath,
		Dry:         cfg.Dry,
		JournalDir:  cfg.JournalDir,
		RulesetPath: cfg.RulesetPath,
		Timeout:     cfg.Timeout,
		Assertions:  mode,
		Verbose:     cfg.Verbose,
		Logger:      log.New(errOut, entrypoint.LogPrefix(entrypoint.ServiceScenario), 0),
	}

	var failed []string
	for _, path := range paths {
		if err := scenario.RunFile(ctx, runCfg, path); err != nil {
			fmt.Fprintf(errOut, "FAIL %s: %v\n", path, err)
			failed = append(failed, path)
			continue
		}
		fmt.Fprintf(out, "ok   %s\n", path)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d scenarios failed", len(failed), len(paths))
	}
	return nil
}

// scenarioPaths expands a directory into its sorted *.lua files.
func scenarioPaths(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat scenario: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	paths, err := filepath.Glob(filepath.Join(path, "*.lua"))
	if err != nil {
		return nil, fmt.Errorf("list scenarios: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenarios in %s", path)
	}
	sort.Strings(paths)
	return paths, nil
}
