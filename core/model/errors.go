package model

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// MappingError reports that one incoming item could not be normalized.
// It is isolated to that item: adapters skip it and keep going.
type MappingError struct {
	Platform PlatformType
	ItemID   string
	Field    string
	Err      error
}

func (e *MappingError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s item %q: field %s: %v", e.Platform, e.ItemID, e.Field, e.Err)
	}
	return fmt.Sprintf("%s item %q: %v", e.Platform, e.ItemID, e.Err)
}

func (e *MappingError) Unwrap() error { return e.Err }

// MergeError reports a failed storage transaction. The whole batch was rolled back.
type MergeError struct {
	Step string
	Err  error
}

func (e *MergeError) Error() string {
	return fmt.Sprintf("merge failed at %s: %v", e.Step, e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }

// ErrMissingField is wrapped by MappingError when a required field is absent.
var ErrMissingField = errors.New("required field missing")

var validate = validator.New()

// Validate checks the `validate` struct tags of a platform object and converts
// the first failure into a MappingError.
func Validate(platform PlatformType, itemID string, item any) error {
	err := validate.Struct(item)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return &MappingError{
			Platform: platform,
			ItemID:   itemID,
			Field:    verrs[0].Namespace(),
			Err:      ErrMissingField,
		}
	}
	return &MappingError{Platform: platform, ItemID: itemID, Err: err}
}
