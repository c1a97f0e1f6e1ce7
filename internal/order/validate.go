package order

import (
	validatorv10 "github.com/go-playground/validator/v10"
)

// NewValidator returns a configured validator with the struct-level rule for
// Canonical registered.
func NewValidator() *validatorv10.Validate {
	v := validatorv10.New()
	v.RegisterStructValidation(canonicalStructValidation, Canonical{})
	return v
}

// canonicalStructValidation rejects impossible line items: a resolved
// quantity below 1 or a negative unit price means the normalization priority
// chain picked up garbage.
func canonicalStructValidation(sl validatorv10.StructLevel) {
	c := sl.Current().Interface().(Canonical)
	for _, it := range c.Items {
		if it.Quantity < 1 {
			sl.ReportError(it.Quantity, "items", "Items", "item_quantity_min", "")
		}
		if it.UnitPrice < 0 {
			sl.ReportError(it.UnitPrice, "items", "Items", "item_price_negative", "")
		}
	}
}

// ValidationErrorsToMap flattens validator errors into a field -> message map
// suitable for a 400 response body.
func ValidationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	if ve, ok := err.(validatorv10.ValidationErrors); ok {
		for _, fe := range ve {
			out[fe.StructNamespace()] = fe.Error()
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}
