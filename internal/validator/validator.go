package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/pauljones0/cph-deal-finder/internal/models"
)

// Validator is a wrapper around the validator library.
type Validator struct {
	validate *validator.Validate
}

// New creates a new Validator instance.
func New() *Validator {
	return &Validator{
		validate: validator.New(),
	}
}

// ValidateStruct validates a struct based on its tags.
func (v *Validator) ValidateStruct(s interface{}) error {
	err := v.validate.Struct(s)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidDeals returns the deals that pass validation, in order, together with
// one error per rejected deal.
func (v *Validator) ValidDeals(deals []models.Deal) ([]models.Deal, []error) {
	kept := make([]models.Deal, 0, len(deals))
	var rejected []error
	for _, d := range deals {
		if err := v.ValidateStruct(d); err != nil {
			rejected = append(rejected, fmt.Errorf("deal %q: %w", d.ID, err))
			continue
		}
		kept = append(kept, d)
	}
	return kept, rejected
}
