// Package config provides configuration management for the risk engine.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all risk engine configuration.
type Config struct {
	Limits     RiskLimitsConfig `mapstructure:"limits"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Hedging    HedgingConfig    `mapstructure:"hedging"`
}

// RiskLimitsConfig holds the named numeric thresholds trades and portfolios
// are evaluated against.
type RiskLimitsConfig struct {
	MaxVaRPercent          float64 `mapstructure:"max_var_percent"`           // 1d 95% VaR as % of portfolio value
	MaxConcentrationPct    float64 `mapstructure:"max_concentration_percent"` // single-underlying exposure
	MaxMarginUtilization   float64 `mapstructure:"max_margin_utilization"`    // percent
	MaxDeltaDollars        float64 `mapstructure:"max_delta_dollars"`
	MaxVegaDollars         float64 `mapstructure:"max_vega_dollars"`
	MaxPositionLoss        float64 `mapstructure:"max_position_loss"` // worst-case loss per proposed trade
	MaxCorrelationScore    float64 `mapstructure:"max_correlation_score"`
	WarningFraction        float64 `mapstructure:"warning_fraction"` // fraction of a limit that triggers a warning
	MaxImpactWarnings      int     `mapstructure:"max_impact_warnings"`
	ConcentrationFloorPct  float64 `mapstructure:"concentration_floor_percent"` // escalates risk level floor
	HedgeDeltaThreshold    float64 `mapstructure:"hedge_delta_threshold"`
	HedgeGammaThreshold    float64 `mapstructure:"hedge_gamma_threshold"`
	HedgeVegaThreshold     float64 `mapstructure:"hedge_vega_threshold"`
}

// SimulationConfig holds Monte Carlo simulation parameters.
type SimulationConfig struct {
	Simulations int    `mapstructure:"simulations"`
	HorizonDays int    `mapstructure:"horizon_days"`
	Workers     int    `mapstructure:"workers"`
	Seed        uint64 `mapstructure:"seed"` // 0 = time-seeded
}

// HedgingConfig holds hedge solver parameters.
type HedgingConfig struct {
	MaxConditionNumber float64 `mapstructure:"max_condition_number"`
	MinQuantity        float64 `mapstructure:"min_quantity"` // recommendations below this are suppressed
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Limits: RiskLimitsConfig{
			MaxVaRPercent:         5.0,
			MaxConcentrationPct:   30.0,
			MaxMarginUtilization:  80.0,
			MaxDeltaDollars:       50000,
			MaxVegaDollars:        10000,
			MaxPositionLoss:       5000,
			MaxCorrelationScore:   70.0,
			WarningFraction:       0.8,
			MaxImpactWarnings:     2,
			ConcentrationFloorPct: 30.0,
			HedgeDeltaThreshold:   50,
			HedgeGammaThreshold:   10,
			HedgeVegaThreshold:    100,
		},
		Simulation: SimulationConfig{
			Simulations: 10000,
			HorizonDays: 21,
			Workers:     8,
			Seed:        0,
		},
		Hedging: HedgingConfig{
			MaxConditionNumber: 1e6,
			MinQuantity:        0.5,
		},
	}
}

// Load reads configuration from the given file path, applying defaults and
// RISK_* environment overrides. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("RISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("limits.max_var_percent", cfg.Limits.MaxVaRPercent)
	v.SetDefault("limits.max_concentration_percent", cfg.Limits.MaxConcentrationPct)
	v.SetDefault("limits.max_margin_utilization", cfg.Limits.MaxMarginUtilization)
	v.SetDefault("limits.max_delta_dollars", cfg.Limits.MaxDeltaDollars)
	v.SetDefault("limits.max_vega_dollars", cfg.Limits.MaxVegaDollars)
	v.SetDefault("limits.max_position_loss", cfg.Limits.MaxPositionLoss)
	v.SetDefault("limits.max_correlation_score", cfg.Limits.MaxCorrelationScore)
	v.SetDefault("limits.warning_fraction", cfg.Limits.WarningFraction)
	v.SetDefault("limits.max_impact_warnings", cfg.Limits.MaxImpactWarnings)
	v.SetDefault("limits.concentration_floor_percent", cfg.Limits.ConcentrationFloorPct)
	v.SetDefault("limits.hedge_delta_threshold", cfg.Limits.HedgeDeltaThreshold)
	v.SetDefault("limits.hedge_gamma_threshold", cfg.Limits.HedgeGammaThreshold)
	v.SetDefault("limits.hedge_vega_threshold", cfg.Limits.HedgeVegaThreshold)
	v.SetDefault("simulation.simulations", cfg.Simulation.Simulations)
	v.SetDefault("simulation.horizon_days", cfg.Simulation.HorizonDays)
	v.SetDefault("simulation.workers", cfg.Simulation.Workers)
	v.SetDefault("simulation.seed", cfg.Simulation.Seed)
	v.SetDefault("hedging.max_condition_number", cfg.Hedging.MaxConditionNumber)
	v.SetDefault("hedging.min_quantity", cfg.Hedging.MinQuantity)
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Limits.WarningFraction <= 0 || c.Limits.WarningFraction >= 1 {
		return fmt.Errorf("limits.warning_fraction must be in (0, 1), got %.2f", c.Limits.WarningFraction)
	}
	if c.Simulation.Simulations <= 0 {
		return fmt.Errorf("simulation.simulations must be positive, got %d", c.Simulation.Simulations)
	}
	if c.Simulation.HorizonDays <= 0 {
		return fmt.Errorf("simulation.horizon_days must be positive, got %d", c.Simulation.HorizonDays)
	}
	if c.Simulation.Workers <= 0 {
		return fmt.Errorf("simulation.workers must be positive, got %d", c.Simulation.Workers)
	}
	return nil
}
