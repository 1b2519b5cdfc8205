package scenario

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cortonemo/narequenta-vtt/internal/platform/timeouts"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/resolution"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/domain/systems/narequenta"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/journal"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/storage"
	"github.com/cortonemo/narequenta-vtt/internal/services/game/storage/memory"
	storagesqlite "github.com/cortonemo/narequenta-vtt/internal/services/game/storage/sqlite"
)

// Config controls scenario execution.
type Config struct {
	// DBPath is the SQLite database to run against. Empty uses a fresh
	// database in a temporary directory that is removed on Close.
	DBPath string
	// Dry runs against an in-memory store instead of SQLite.
	Dry bool
	// JournalDir archives every applied resolution when set.
	JournalDir  string
	RulesetPath string
	Timeout     time.Duration
	Assertions  AssertionMode
	Verbose     bool
	Logger      *log.Logger
}

// DefaultConfig returns default runner configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:    timeouts.ScenarioStep,
		Assertions: AssertionStrict,
	}
}

// Runner executes Lua scenarios against a game store.
type Runner struct {
	store      storage.Store
	processor  *resolution.Processor
	journal    *journal.Writer
	assertions Assertions
	logger     *log.Logger
	verbose    bool
	timeout    time.Duration
	tempDir    string
}

// NewRunner opens the store and prepares a scenario runner.
func NewRunner(cfg Config) (*Runner, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "", 0)
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = timeouts.ScenarioStep
	}

	rules := narequenta.DefaultRuleset()
	if path := strings.TrimSpace(cfg.RulesetPath); path != "" {
		loaded, err := narequenta.LoadRuleset(path)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}

	r := &Runner{
		assertions: Assertions{Mode: cfg.Assertions, Logger: logger},
		logger:     logger,
		verbose:    cfg.Verbose,
		timeout:    timeout,
	}
	if err := r.openStore(cfg); err != nil {
		return nil, err
	}
	if dir := strings.TrimSpace(cfg.JournalDir); dir != "" {
		writer, err := journal.Open(dir)
		if err != nil {
			_ = r.Close()
			return nil, err
		}
		r.journal = writer
	}

	r.processor = resolution.NewProcessor(r.store, r.store,
		resolution.WithLedger(r.store),
		resolution.WithRuleset(rules),
		resolution.WithLogger(logger),
	)
	return r, nil
}

func (r *Runner) openStore(cfg Config) error {
	if cfg.Dry {
		r.store = memory.New()
		return nil
	}
	path := strings.TrimSpace(cfg.DBPath)
	if path == "" {
		dir, err := os.MkdirTemp("", "narequenta-scenario-")
		if err != nil {
			return fmt.Errorf("create scenario dir: %w", err)
		}
		r.tempDir = dir
		path = filepath.Join(dir, "game.db")
	}
	store, err := storagesqlite.Open(path)
	if err != nil {
		_ = r.Close()
		return err
	}
	r.store = store
	return nil
}

// Close releases the store, the journal, and any temporary database.
func (r *Runner) Close() error {
	var errs []error
	if r.journal != nil {
		errs = append(errs, r.journal.Close())
		r.journal = nil
	}
	if r.store != nil {
		errs = append(errs, r.store.Close())
		r.store = nil
	}
	if r.tempDir != "" {
		errs = append(errs, os.RemoveAll(r.tempDir))
		r.tempDir = ""
	}
	return errors.Join(errs...)
}

// RunFile loads and executes a scenario file.
func RunFile(ctx context.Context, cfg Config, path string) error {
	runner, err := NewRunner(cfg)
	if err != nil {
		return err
	}
	defer runner.Close()

	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		return err
	}
	return runner.RunScenario(ctx, scenario)
}

// RunScenario executes the scenario steps in order and stops at the first
// failing step.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) error {
	if scenario == nil {
		return errors.New("scenario is required")
	}
	r.logf("scenario start: %s (%d steps)", scenario.Name, len(scenario.Steps))
	state := &scenarioState{}

	for index, step := range scenario.Steps {
		stepNumber := index + 1
		r.logf("step %d/%d start: %s", stepNumber, len(scenario.Steps), step.Kind)
		stepStart := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, r.timeout)
		err := r.runStep(stepCtx, state, step)
		cancel()
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", stepNumber, step.Kind, err)
		}
		r.logf("step %d/%d done: %s (%s)", stepNumber, len(scenario.Steps), step.Kind, time.Since(stepStart))
	}
	r.logf("scenario done: %s", scenario.Name)
	return nil
}

func (r *Runner) logf(format string, args ...any) {
	if !r.verbose || r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}
