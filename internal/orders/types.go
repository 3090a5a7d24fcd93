package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// TimeLayout is fixed-width so created_at sorts lexicographically in the status-index.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// DefaultTTL is how long an order lives before DynamoDB TTL expires it.
const DefaultTTL = 7 * 24 * time.Hour

// PaymentStatus tracks the payment sub-lifecycle independently of the order status.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentCompleted  PaymentStatus = "COMPLETED"
	PaymentFailed     PaymentStatus = "FAILED"
)

// RequiredAddressFields must all be present and non-empty for an order to validate.
var RequiredAddressFields = []string{"street", "city", "postal_code", "country"}

type Customer struct {
	CustomerID string `dynamodbav:"customer_id" json:"customer_id"`
	Email      string `dynamodbav:"email" json:"email"`
	Name       string `dynamodbav:"name" json:"name"`
}

type Item struct {
	ProductID string  `dynamodbav:"product_id" json:"product_id"`
	Quantity  int     `dynamodbav:"quantity" json:"quantity"`
	UnitPrice float64 `dynamodbav:"unit_price" json:"unit_price"`
}

// Subtotal is quantity × unit price, computed in decimal.
func (i Item) Subtotal() decimal.Decimal {
	return decimal.NewFromFloat(i.UnitPrice).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type Payment struct {
	PaymentMethod string        `dynamodbav:"payment_method" json:"payment_method"`
	TransactionID string        `dynamodbav:"transaction_id,omitempty" json:"transaction_id,omitempty"`
	Status        PaymentStatus `dynamodbav:"status" json:"status"`
	Amount        float64       `dynamodbav:"amount,omitempty" json:"amount,omitempty"`
}

type ShippingAddress map[string]string

// Order is the aggregate stored in the orders table (PK order_id, SK created_at).
type Order struct {
	OrderID         string          `dynamodbav:"order_id" json:"order_id"`
	CreatedAt       string          `dynamodbav:"created_at" json:"created_at"`
	Customer        Customer        `dynamodbav:"customer" json:"customer"`
	Items           []Item          `dynamodbav:"items" json:"items"`
	ShippingAddress ShippingAddress `dynamodbav:"shipping_address" json:"shipping_address"`
	Status          Status          `dynamodbav:"status" json:"status"`
	Payment         Payment         `dynamodbav:"payment" json:"payment"`
	UpdatedAt       string          `dynamodbav:"updated_at" json:"updated_at"`
	TotalAmount     float64         `dynamodbav:"total_amount" json:"total_amount"`
	Notes           string          `dynamodbav:"notes,omitempty" json:"notes,omitempty"`
	ExpirationTime  int64           `dynamodbav:"expiration_time" json:"expiration_time"` // TTL epoch seconds
}

// NewOrder builds a RECEIVED order with its total computed and its expiry set ttl after now.
func NewOrder(orderID string, customer Customer, items []Item, address ShippingAddress, payment Payment, now time.Time, ttl time.Duration) Order {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if items == nil {
		items = []Item{}
	}
	if address == nil {
		address = ShippingAddress{}
	}
	payment.Status = PaymentPending
	payment.TransactionID = ""
	payment.Amount = 0

	ts := FormatTime(now)
	o := Order{
		OrderID:         orderID,
		CreatedAt:       ts,
		Customer:        customer,
		Items:           items,
		ShippingAddress: address,
		Status:          StatusReceived,
		Payment:         payment,
		UpdatedAt:       ts,
		ExpirationTime:  now.Add(ttl).Unix(),
	}
	o.TotalAmount = o.CalculateTotal()
	return o
}

// CalculateTotal sums the item subtotals rounded to cents.
func (o *Order) CalculateTotal() float64 {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	return total.Round(2).InexactFloat64()
}

// AmountDue is the stored total, or the recomputed item sum when no total was stored.
func (o *Order) AmountDue() float64 {
	if o.TotalAmount > 0 {
		return o.TotalAmount
	}
	return o.CalculateTotal()
}

// UpdatedTime parses updated_at; the zero time is returned for unparsable values.
func (o *Order) UpdatedTime() time.Time {
	t, err := time.Parse(TimeLayout, o.UpdatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
