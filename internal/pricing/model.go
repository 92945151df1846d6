package pricing

import (
	"fmt"

	apperrors "github.com/manuchak/detecta-core/internal/errors"
)

// Model names a pricing model; there is deliberately no zero-value default
type Model string

const (
	ModelSingleTier Model = "single_tier"
	ModelStaircase  Model = "staircase"
)

// ParseModel accepts only the two known model names
func ParseModel(s string) (Model, error) {
	switch Model(s) {
	case ModelSingleTier, ModelStaircase:
		return Model(s), nil
	default:
		return "", apperrors.ValidationError{
			Field:   "model",
			Message: fmt.Sprintf("must be %q or %q", ModelSingleTier, ModelStaircase),
		}
	}
}

// Price evaluates km under the chosen model
func (c *Calculator) Price(model Model, km float64) (float64, error) {
	switch model {
	case ModelSingleTier:
		return c.CostPerKm(km).Cost, nil
	case ModelStaircase:
		return c.StaircaseCost(km), nil
	default:
		return 0, fmt.Errorf("unknown pricing model %q: %w", model, apperrors.ErrInvalidInput)
	}
}
