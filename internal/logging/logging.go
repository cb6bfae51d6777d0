// Package logging provides structured logging functionality.
package logging

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig holds logging configuration.
type LogConfig struct {
	Level      string
	Console    bool
	File       bool
	FilePath   string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	home, _ := os.UserHomeDir()
	return LogConfig{
		Level:      "info",
		Console:    true,
		File:       false,
		FilePath:   filepath.Join(home, ".config", "risk-engine", "logs", "risk.log"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// NewLogger creates a new logger with default configuration.
func NewLogger() zerolog.Logger {
	return NewLoggerWithConfig(DefaultLogConfig())
}

// NewLoggerWithConfig creates a new logger with the specified configuration.
func NewLoggerWithConfig(cfg LogConfig) zerolog.Logger {
	var writers []io.Writer

	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	// File writer with rotation
	if cfg.File {
		logDir := filepath.Dir(cfg.FilePath)
		if err := os.MkdirAll(logDir, 0755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = os.Stdout
	case 1:
		writer = writers[0]
	default:
		writer = zerolog.MultiLevelWriter(writers...)
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	return zerolog.New(writer).
		With().
		Timestamp().
		Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ContextKey is the type for context keys.
type ContextKey string

// LoggerKey is the context key for the logger.
const LoggerKey ContextKey = "logger"

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext retrieves the logger from context.
func FromContext(ctx context.Context) zerolog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(zerolog.Logger); ok {
		return logger
	}
	return zerolog.Nop()
}

// WithUnderlying adds an underlying symbol to the logger context.
func WithUnderlying(logger zerolog.Logger, underlying string) zerolog.Logger {
	return logger.With().Str("underlying", underlying).Logger()
}

// WithScenario adds a what-if scenario name to the logger context.
func WithScenario(logger zerolog.Logger, name string) zerolog.Logger {
	return logger.With().Str("scenario", name).Logger()
}

// LogSimulationRun logs a completed Monte Carlo run.
func LogSimulationRun(logger zerolog.Logger, mode string, simulations, horizonDays int, duration time.Duration) {
	logger.Debug().
		Str("event", "simulation").
		Str("mode", mode).
		Int("simulations", simulations).
		Int("horizon_days", horizonDays).
		Dur("duration", duration).
		Msg("Monte Carlo run completed")
}

// LogRiskSnapshot logs a produced portfolio risk snapshot.
func LogRiskSnapshot(logger zerolog.Logger, portfolioValue, varPercent float64, riskLevel string, warnings int) {
	logger.Info().
		Str("event", "risk_snapshot").
		Float64("portfolio_value", portfolioValue).
		Float64("var_percent", varPercent).
		Str("risk_level", riskLevel).
		Int("warnings", warnings).
		Msg("Risk snapshot generated")
}

// LogLimitBreach logs a breached risk limit.
func LogLimitBreach(logger zerolog.Logger, limit string, current, max float64) {
	logger.Warn().
		Str("event", "limit_breach").
		Str("limit", limit).
		Float64("current", current).
		Float64("limit_value", max).
		Msg("Risk limit breached")
}

// LogHedgeRecommendation logs a hedge recommendation.
func LogHedgeRecommendation(logger zerolog.Logger, symbol string, quantity, riskDollars float64) {
	logger.Info().
		Str("event", "hedge_recommendation").
		Str("symbol", symbol).
		Float64("quantity", quantity).
		Float64("risk_dollars", riskDollars).
		Msg("Hedge recommended")
}
