package inventory

// Item is a product record in the inventory table (PK product_id).
type Item struct {
	ProductID     string  `dynamodbav:"product_id" json:"product_id"`
	Name          string  `dynamodbav:"name,omitempty" json:"name,omitempty"`
	Description   string  `dynamodbav:"description,omitempty" json:"description,omitempty"`
	Price         float64 `dynamodbav:"price" json:"price"`
	StockQuantity int     `dynamodbav:"stock_quantity" json:"stock_quantity"`
}

// Reservation marks one order line as applied to stock. Markers share the inventory table under a
// prefixed key and expire through the table's TTL attribute.
type Reservation struct {
	Key            string `dynamodbav:"product_id"`
	ReservationID  string `dynamodbav:"reservation_id"`
	ProductID      string `dynamodbav:"reserved_product"`
	Quantity       int    `dynamodbav:"quantity"`
	ReservedAt     string `dynamodbav:"reserved_at"`
	ExpirationTime int64  `dynamodbav:"expiration_time"`
}

// ReservationKey is the partition key a reservation marker is stored under.
func ReservationKey(reservationID string) string {
	return "RESERVATION#" + reservationID
}
