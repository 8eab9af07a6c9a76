package recovery

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig wraps every configuration rejected by Validate.
var ErrInvalidConfig = errors.New("invalid recovery config")

// Config controls the recovery loop.
type Config struct {
	MaxAttempts       int            `json:"max_attempts" yaml:"max_attempts" mapstructure:"max_attempts" validate:"min=1"`
	AttemptDelay      time.Duration  `json:"attempt_delay" yaml:"attempt_delay" mapstructure:"attempt_delay" validate:"min=0"`
	NavigationTimeout time.Duration  `json:"navigation_timeout" yaml:"navigation_timeout" mapstructure:"navigation_timeout" validate:"gt=0"`
	ValidationTimeout time.Duration  `json:"validation_timeout" yaml:"validation_timeout" mapstructure:"validation_timeout" validate:"gt=0"`
	ReloadSettle      time.Duration  `json:"reload_settle" yaml:"reload_settle" mapstructure:"reload_settle" validate:"min=0"`
	Strategies        []StrategyName `json:"strategies" yaml:"strategies" mapstructure:"strategies" validate:"required,min=1,dive,oneof=reload-page re-detect-selectors try-alternative-catalog-entries extract-by-text-heuristics analyze-dom-structure"`
	MaxDOMDepth       int            `json:"max_dom_depth" yaml:"max_dom_depth" mapstructure:"max_dom_depth" validate:"min=1"`
	MajorityThreshold float64        `json:"majority_threshold" yaml:"majority_threshold" mapstructure:"majority_threshold" validate:"gt=0,lte=1"`
}

// DefaultConfig returns the standard recovery settings.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       5,
		AttemptDelay:      2 * time.Second,
		NavigationTimeout: 60 * time.Second,
		ValidationTimeout: 10 * time.Second,
		ReloadSettle:      3 * time.Second,
		Strategies:        slices.Clone(DefaultOrder),
		MaxDOMDepth:       5,
		MajorityThreshold: 0.5,
	}
}

var structValidator = validator.New()

// Validate reports every rule the config breaks.
func (c Config) Validate() error {
	err := structValidator.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, e.Namespace()+" "+formatValidationError(e))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "oneof":
		return fmt.Sprintf("%v is not one of [%s]", e.Value(), e.Param())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}
