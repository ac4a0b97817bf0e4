package validation

import (
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// maxPriceScale is the number of decimals a price may carry (minor units).
const maxPriceScale = 2

// New returns a configured validator with the custom tags and struct-level
// validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// decimal_gt0: a decimal string strictly greater than zero
	_ = v.RegisterValidation("decimal_gt0", decimalGreaterThanZero)

	// prices must be representable in minor units
	v.RegisterStructValidation(createProductStructValidation, CreateProductRequest{})

	return v
}

func decimalGreaterThanZero(fl validatorv10.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	if err != nil {
		return false
	}
	return d.IsPositive()
}

// createProductStructValidation rejects prices with more than two decimals.
func createProductStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateProductRequest)

	d, err := decimal.NewFromString(req.Price)
	if err != nil {
		// reported by decimal_gt0
		return
	}
	if d.Exponent() < -maxPriceScale && !d.Equal(d.Round(maxPriceScale)) {
		sl.ReportError(req.Price, "price", "Price", "price_scale", fmt.Sprintf("at most %d decimals", maxPriceScale))
	}
}
