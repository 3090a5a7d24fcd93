package validation

import (
	"fmt"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// New returns a configured validator with custom struct-level validation registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// a client-supplied total must match the sum of quantity × unit_price
	v.RegisterStructValidation(createOrderStructValidation, CreateOrderRequest{})

	return v
}

// ItemsTotal sums the request items in decimal, rounded to cents.
func ItemsTotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(decimal.NewFromFloat(it.UnitPrice).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum.Round(2)
}

func createOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(CreateOrderRequest)
	if req.TotalAmount == nil {
		return
	}

	sum := ItemsTotal(req.Items)
	claimed := decimal.NewFromFloat(*req.TotalAmount).Round(2)
	if !sum.Equal(claimed) {
		sl.ReportError(*req.TotalAmount, "total_amount", "TotalAmount", "total_match_items",
			fmt.Sprintf("items sum %s != total %s", sum.StringFixed(2), claimed.StringFixed(2)))
	}
}
