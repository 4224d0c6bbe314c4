package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Stage names tag structured log entries with the retrieval stage that
// emitted them (§4.10's lexical/dense/fusion/rerank/cache pipeline).
// Viewer.formatStage colors entries by this value, and StageLevels
// below lets a deployment turn a single stage's verbosity up or down
// independently of the process-wide level.
const (
	StageLexical   = "lexical"
	StageDense     = "dense"
	StageFusion    = "fusion"
	StageRerank    = "rerank"
	StageCache     = "cache"
	StageEmbedding = "embedding"
	StageTaxonomy  = "taxonomy"
)

// ForStage returns logger with a "stage" attribute attached, so every
// record it emits carries the stage axis Viewer and StageLevels key on.
func ForStage(logger *slog.Logger, stage string) *slog.Logger {
	return logger.With(slog.String("stage", stage))
}

// Config contains logging configuration.
type Config struct {
	// Level is the process-wide minimum log level (debug, info, warn,
	// error), applied to records that don't carry a stage override.
	Level string
	// StageLevels overrides Level per stage (e.g. {"cache": "warn"} to
	// quiet routine cache activity while keeping retrieval-stage
	// degradations at the process level). A stage absent from this map
	// falls back to Level.
	StageLevels map[string]string
	// FilePath is the path to the log file. Empty means no file logging.
	FilePath string
	// MaxSizeMB is the maximum size in MB before rotation (default: 10).
	MaxSizeMB int
	// MaxFiles is the maximum number of rotated files to keep (default: 5).
	MaxFiles int
	// WriteToStderr whether to also write to stderr (default: true).
	WriteToStderr bool
}

// DefaultConfig returns sensible defaults for file logging.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig returns configuration for debug mode.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	return cfg
}

// Setup initializes file-based logging and returns a cleanup function.
// The cleanup function should be called to close the log file.
// Returns the configured logger and cleanup function.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	// Ensure log directory exists
	if err := EnsureLogDir(); err != nil {
		return nil, nil, err
	}

	// Create rotating writer. A record at warn level or above forces an
	// immediate fsync regardless of buffering, since those are the
	// degradation/fallback signals (§7) a deployment can least afford to
	// lose to an unflushed buffer on crash.
	writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}

	// Build multi-writer if stderr is enabled
	var output io.Writer = writer
	if cfg.WriteToStderr {
		output = io.MultiWriter(writer, os.Stderr)
	}

	// Parse log level
	level := parseLevel(cfg.Level)

	// Create JSON handler for structured logging, wrapped so a per-stage
	// level override in cfg.StageLevels can raise or lower a single
	// stage's verbosity independently of the process-wide level. The base
	// handler admits the lowest configured level; stageHandler applies the
	// per-stage threshold.
	baseLevel := level
	for _, l := range cfg.StageLevels {
		if sl := parseLevel(l); sl < baseLevel {
			baseLevel = sl
		}
	}
	base := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: baseLevel})
	handler := newStageHandler(base, level, cfg.StageLevels)

	logger := slog.New(handler)

	// Cleanup function
	cleanup := func() {
		_ = writer.Sync()
		_ = writer.Close()
	}

	return logger, cleanup, nil
}

// SetupDefault sets up logging with default configuration and sets as default logger.
// Returns cleanup function.
func SetupDefault() (func(), error) {
	logger, cleanup, err := Setup(DebugConfig())
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	return cleanup, nil
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromString converts string level to slog.Level (exported for use by log viewer).
func LevelFromString(level string) slog.Level {
	return parseLevel(level)
}

// stageHandler wraps a base slog.Handler and applies a per-stage minimum
// level, read from a record's "stage" attribute, before delegating.
// Records with no stage attribute (or a stage absent from the override
// map) fall back to defaultLevel.
type stageHandler struct {
	base         slog.Handler
	defaultLevel slog.Level
	levels       map[string]slog.Level
	stage        string // set via WithAttrs when a ForStage logger is in play
}

func newStageHandler(base slog.Handler, defaultLevel slog.Level, overrides map[string]string) *stageHandler {
	levels := make(map[string]slog.Level, len(overrides))
	for stage, level := range overrides {
		levels[stage] = parseLevel(level)
	}
	return &stageHandler{base: base, defaultLevel: defaultLevel, levels: levels}
}

func (h *stageHandler) thresholdFor(stage string) slog.Level {
	if stage == "" {
		return h.defaultLevel
	}
	if lvl, ok := h.levels[stage]; ok {
		return lvl
	}
	return h.defaultLevel
}

// Enabled reports whether a record at level (for the handler's current
// stage, if any) should be emitted.
func (h *stageHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.thresholdFor(h.stage) && h.base.Enabled(ctx, level)
}

// Handle re-checks the per-stage threshold against the record's own
// "stage" attribute (ForStage attaches it via WithAttrs, so it is
// usually already reflected in h.stage, but a caller building a record
// with slog.String("stage", ...) directly at the call site is honored
// too) before delegating to the base handler. A call-site stage can only
// make a record quieter: Enabled has already filtered the record against
// the handler's own stage threshold before the record is built.
func (h *stageHandler) Handle(ctx context.Context, record slog.Record) error {
	stage := h.stage
	record.Attrs(func(a slog.Attr) bool {
		if a.Key == "stage" {
			if s, ok := a.Value.Any().(string); ok {
				stage = s
			}
			return false
		}
		return true
	})
	if record.Level < h.thresholdFor(stage) {
		return nil
	}
	return h.base.Handle(ctx, record)
}

func (h *stageHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	stage := h.stage
	for _, a := range attrs {
		if a.Key == "stage" {
			if s, ok := a.Value.Any().(string); ok {
				stage = s
			}
		}
	}
	return &stageHandler{
		base:         h.base.WithAttrs(attrs),
		defaultLevel: h.defaultLevel,
		levels:       h.levels,
		stage:        stage,
	}
}

func (h *stageHandler) WithGroup(name string) slog.Handler {
	return &stageHandler{
		base:         h.base.WithGroup(name),
		defaultLevel: h.defaultLevel,
		levels:       h.levels,
		stage:        h.stage,
	}
}
