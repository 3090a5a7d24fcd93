package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/go-orderflow-saga/internal/aws"
)

var (
	ErrNotFound          = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrAlreadyReserved   = errors.New("order line already reserved")
)

const (
	condEnoughStock    = "stock_quantity >= :quantity"
	condReservationNew = "attribute_not_exists(product_id)"

	// reservationTTL outlives the orders the markers guard.
	reservationTTL = 30 * 24 * time.Hour
)

// Store encapsulates operations on the inventory table.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName, nowFunc: time.Now}
}

func (s *Store) Get(ctx context.Context, productID string) (*Item, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key:       productKey(productID),
	})
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("%s: %w", productID, ErrNotFound)
	}
	var it Item
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	return &it, nil
}

// GetStock returns the recorded stock for productID.
func (s *Store) GetStock(ctx context.Context, productID string) (int, error) {
	it, err := s.Get(ctx, productID)
	if err != nil {
		return 0, err
	}
	return it.StockQuantity, nil
}

// DecrementIfAvailable subtracts quantity for one order line. The conditional decrement and a
// reservation marker keyed by reservationID commit in one transaction, so concurrent callers can
// never drive stock below zero and a line that was already applied is never applied twice: a repeat
// returns ErrAlreadyReserved and leaves stock untouched. A missing product fails the stock condition.
func (s *Store) DecrementIfAvailable(ctx context.Context, productID string, quantity int, reservationID string) error {
	if quantity <= 0 {
		return fmt.Errorf("decrement %s: quantity must be positive, got %d", productID, quantity)
	}
	if reservationID == "" {
		return fmt.Errorf("decrement %s: reservation id is required", productID)
	}
	now := s.nowFunc().UTC()
	marker, err := attributevalue.MarshalMap(Reservation{
		Key:            ReservationKey(reservationID),
		ReservationID:  reservationID,
		ProductID:      productID,
		Quantity:       quantity,
		ReservedAt:     now.Format(time.RFC3339Nano),
		ExpirationTime: now.Add(reservationTTL).Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshal reservation: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &s.tableName,
					Item:                marker,
					ConditionExpression: aws.String(condReservationNew),
				},
			},
			{
				Update: &types.Update{
					TableName:           &s.tableName,
					Key:                 productKey(productID),
					UpdateExpression:    aws.String("SET stock_quantity = stock_quantity - :quantity"),
					ConditionExpression: aws.String(condEnoughStock),
					ExpressionAttributeValues: map[string]types.AttributeValue{
						":quantity": &types.AttributeValueMemberN{Value: strconv.Itoa(quantity)},
					},
				},
			},
		},
	})
	if err == nil {
		return nil
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		switch {
		case conditionFailed(tce.CancellationReasons, 0):
			return fmt.Errorf("%s: %w", reservationID, ErrAlreadyReserved)
		case conditionFailed(tce.CancellationReasons, 1):
			return fmt.Errorf("%s: %w", productID, ErrInsufficientStock)
		}
	}
	return fmt.Errorf("decrement stock: %w", err)
}

// conditionFailed reports whether the i-th item of a cancelled transaction failed its condition.
func conditionFailed(reasons []types.CancellationReason, i int) bool {
	return i < len(reasons) && reasons[i].Code != nil && *reasons[i].Code == "ConditionalCheckFailed"
}

// Put creates or replaces a product record.
func (s *Store) Put(ctx context.Context, it Item) error {
	item, err := attributevalue.MarshalMap(it)
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dyn.PutItemInput{TableName: &s.tableName, Item: item}); err != nil {
		return fmt.Errorf("put product: %w", err)
	}
	return nil
}

func productKey(productID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"product_id": &types.AttributeValueMemberS{Value: productID},
	}
}
