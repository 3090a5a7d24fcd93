package validation

// Item represents a single order line item.
type Item struct {
	ProductID string  `json:"product_id" validate:"required"`
	Quantity  int     `json:"quantity" validate:"required,min=1"` // must be >= 1
	UnitPrice float64 `json:"unit_price" validate:"required,gt=0"`
}

type Customer struct {
	CustomerID string `json:"customer_id" validate:"required"`
	Email      string `json:"email"`
	Name       string `json:"name"`
}

type Payment struct {
	PaymentMethod string `json:"payment_method"`
}

// CreateOrderRequest is the payload for POST /orders. Only structure is checked here; business rules
// (complete address, email format, non-empty items) are applied by the validate step.
type CreateOrderRequest struct {
	Customer        *Customer         `json:"customer" validate:"required"`
	Items           []Item            `json:"items" validate:"required,dive"`
	ShippingAddress map[string]string `json:"shipping_address" validate:"required"`
	Payment         *Payment          `json:"payment" validate:"required"`
	TotalAmount     *float64          `json:"total_amount,omitempty"` // optional; must match the items when given
}
