package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/bytedance/sonic"
	"github.com/danieljhkim/scaffold/internal/clock"
	"github.com/danieljhkim/scaffold/internal/config"
	"github.com/danieljhkim/scaffold/internal/engine"
	"github.com/danieljhkim/scaffold/internal/fsops"
	"github.com/danieljhkim/scaffold/internal/hash"
	"github.com/danieljhkim/scaffold/internal/logging"
	"github.com/danieljhkim/scaffold/internal/metrics"
	"github.com/danieljhkim/scaffold/internal/modifier"
)

// loadConfig reads SCAFFOLD_* settings and applies flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if modulesDir != "" {
		cfg.ModulesDir = modulesDir
	}
	if compiledDir != "" {
		cfg.CompiledDir = compiledDir
	}
	if workers > 0 {
		cfg.LocatorWorkers = workers
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newEngine creates a new engine with real implementations of all dependencies.
func newEngine() (*engine.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	paths, err := cfg.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve module roots: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		Development: cfg.LogDev,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return engine.New(
		fsops.NewRealFS(),
		hash.NewSHA256Hasher(),
		&clock.RealClock{},
		modifier.NewDefaultRegistry(),
		cfg,
		*paths,
		logger,
		metrics.New(),
	), nil
}

// formatJSON formats a value as indented JSON with sorted keys.
func formatJSON(v any) (string, error) {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// outputJSON writes a value as JSON to w.
func outputJSON(w io.Writer, v any) error {
	s, err := formatJSON(v)
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, s)
	return err
}

// kinded is implemented by the typed pipeline errors.
type kinded interface {
	Kind() string
}

// ErrorKind returns the class name of the first typed error in err's chain,
// or "Error".
func ErrorKind(err error) string {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return "Error"
}

// FormatError formats an error for display as "<Kind>: <message>".
func FormatError(err error) string {
	return errorColor.Sprintf("%s: %v", ErrorKind(err), err)
}
