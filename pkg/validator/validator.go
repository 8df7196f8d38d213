package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// placeholderHolderID mirrors model.PlaceholderHolderID; pkg code does not
// import internal packages.
const placeholderHolderID = "PLACEHOLDER"

type ErrorResponse struct {
	FailedField string
	Tag         string
	Value       string
}

var validate = validator.New()

func init() {
	// order_id rejects ids that would collide with the shared placeholder holder.
	validate.RegisterValidation("order_id", func(fl validator.FieldLevel) bool {
		id := fl.Field().String()
		return id != "" && id != placeholderHolderID && len(id) <= 128
	})
}

func ValidateStruct(data interface{}) []*ErrorResponse {
	var errors []*ErrorResponse
	err := validate.Struct(data)
	if err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return []*ErrorResponse{{FailedField: "", Tag: "invalid", Value: err.Error()}}
		}
		for _, err := range verrs {
			var element ErrorResponse
			element.FailedField = err.StructNamespace()
			element.Tag = err.Tag()
			element.Value = err.Param()
			errors = append(errors, &element)
		}
	}
	return errors
}

// Validate returns the first failure as an error, or nil.
func Validate(data interface{}) error {
	errs := ValidateStruct(data)
	if len(errs) == 0 {
		return nil
	}
	first := errs[0]
	return fmt.Errorf("validation failed: field '%s' failed on tag '%s'", first.FailedField, first.Tag)
}
