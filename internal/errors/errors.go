// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrArbitrageViolation = errors.New("arbitrage violation")
	ErrConvergenceFailure = errors.New("solver failed to converge")
	ErrSimulationFailed   = errors.New("simulation failed")
	ErrEvaluationFailed   = errors.New("evaluation failed")
	ErrNotEvaluated       = errors.New("scenario not evaluated")
	ErrStaleScenario      = errors.New("scenario inputs changed since evaluation")
)

// InvalidInputError represents a malformed numeric input to pricing or the
// IV solver, such as a non-positive spot, strike, or volatility.
type InvalidInputError struct {
	Field   string
	Value   float64
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s (%.6f): %s", e.Field, e.Value, e.Message)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// NewInvalidInputError creates a new InvalidInputError.
func NewInvalidInputError(field string, value float64, message string) *InvalidInputError {
	return &InvalidInputError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// ArbitrageViolationError represents a market price below intrinsic value.
type ArbitrageViolationError struct {
	MarketPrice    float64
	IntrinsicValue float64
}

func (e *ArbitrageViolationError) Error() string {
	return fmt.Sprintf("arbitrage violation: market price %.4f below intrinsic value %.4f",
		e.MarketPrice, e.IntrinsicValue)
}

func (e *ArbitrageViolationError) Unwrap() error {
	return ErrArbitrageViolation
}

// NewArbitrageViolationError creates a new ArbitrageViolationError.
func NewArbitrageViolationError(marketPrice, intrinsicValue float64) *ArbitrageViolationError {
	return &ArbitrageViolationError{
		MarketPrice:    marketPrice,
		IntrinsicValue: intrinsicValue,
	}
}

// ConvergenceError represents a numerical solver that exhausted both its
// primary iteration and its fallback without tightening to tolerance.
type ConvergenceError struct {
	Solver     string
	Iterations int
	Residual   float64
	Tolerance  float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("convergence failure [%s]: residual %.2e after %d iterations (tolerance %.2e)",
		e.Solver, e.Residual, e.Iterations, e.Tolerance)
}

func (e *ConvergenceError) Unwrap() error {
	return ErrConvergenceFailure
}

// NewConvergenceError creates a new ConvergenceError.
func NewConvergenceError(solver string, iterations int, residual, tolerance float64) *ConvergenceError {
	return &ConvergenceError{
		Solver:     solver,
		Iterations: iterations,
		Residual:   residual,
		Tolerance:  tolerance,
	}
}

// SimulationError represents an invalid simulation configuration or a
// systemic path-generation failure.
type SimulationError struct {
	Stage   string
	Message string
	Err     error
}

func (e *SimulationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("simulation error [%s]: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("simulation error [%s]: %s", e.Stage, e.Message)
}

func (e *SimulationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrSimulationFailed
}

// NewSimulationError creates a new SimulationError.
func NewSimulationError(stage, message string, err error) *SimulationError {
	return &SimulationError{
		Stage:   stage,
		Message: message,
		Err:     err,
	}
}

// EvaluationError represents a computational fault during what-if scoring.
// It is mapped to the scenario's ERROR status rather than propagated.
type EvaluationError struct {
	Scenario string
	Step     string
	Err      error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("evaluation error [%s] %s: %v", e.Scenario, e.Step, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// NewEvaluationError creates a new EvaluationError.
func NewEvaluationError(scenario, step string, err error) *EvaluationError {
	return &EvaluationError{
		Scenario: scenario,
		Step:     step,
		Err:      err,
	}
}

// LimitBreachError represents a configured risk limit being exceeded.
type LimitBreachError struct {
	Limit   string
	Current float64
	Max     float64
}

func (e *LimitBreachError) Error() string {
	return fmt.Sprintf("limit breach [%s]: current %.2f exceeds limit %.2f", e.Limit, e.Current, e.Max)
}

// NewLimitBreachError creates a new LimitBreachError.
func NewLimitBreachError(limit string, current, max float64) *LimitBreachError {
	return &LimitBreachError{
		Limit:   limit,
		Current: current,
		Max:     max,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
