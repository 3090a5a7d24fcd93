package orders

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
	ErrNotFound            = errors.New("order not found")
	ErrAlreadyExists       = errors.New("order already exists")
	ErrStatusMismatch      = errors.New("status mismatch/conditional failed")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrIdempotencyConflict = errors.New("idempotency key already used")
)

// Condition expressions emitted by the store.
const (
	condOrderNotExists       = "attribute_not_exists(order_id)"
	condOrderExists          = "attribute_exists(order_id)"
	condIdempotencyNotExists = "attribute_not_exists(idempotency_key)"
	condExpectedStatus       = "#s = :expected"
	condNotTerminal          = "NOT (#s IN (:completed, :failed))"
)

// Store encapsulates operations on the orders table.
type Store struct {
	client      aws.DynamoDBAPI
	tableName   string
	statusIndex string
	nowFunc     func() time.Time
}

// NewStore creates a new orders Store. statusIndex names the GSI keyed on (status, created_at).
func NewStore(client aws.DynamoDBAPI, tableName, statusIndex string) *Store {
	return &Store{
		client:      client,
		tableName:   tableName,
		statusIndex: statusIndex,
		nowFunc:     time.Now,
	}
}

// Create puts a new order; an existing order with the same id is a conflict.
func (s *Store) Create(ctx context.Context, order Order) error {
	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: aws.String(condOrderNotExists),
	})
	if err != nil {
		if aws.IsConditionalCheckFailed(err) {
			return fmt.Errorf("%s: %w", order.OrderID, ErrAlreadyExists)
		}
		return fmt.Errorf("put order: %w", err)
	}
	return nil
}

// CreateWithIdempotencyTransaction atomically creates:
//   - idempotency record in idempotencyTable (condition attribute_not_exists(idempotency_key))
//   - order record in the orders table
//
// idempotencyItem must marshal to a map carrying idempotency_key.
func (s *Store) CreateWithIdempotencyTransaction(ctx context.Context, idempotencyTable string, idempotencyItem interface{}, order Order) error {
	idempMap, err := attributevalue.MarshalMap(idempotencyItem)
	if err != nil {
		return fmt.Errorf("marshal idempotency item: %w", err)
	}
	orderMap, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &idempotencyTable,
					Item:                idempMap,
					ConditionExpression: aws.String(condIdempotencyNotExists),
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.tableName,
					Item:                orderMap,
					ConditionExpression: aws.String(condOrderNotExists),
				},
			},
		},
	})
	if err != nil {
		if aws.IsTransactionCanceled(err) {
			return ErrIdempotencyConflict
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// Get returns the newest record for orderID, or ErrNotFound.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("order_id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: orderID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            int32Ptr(1),
	})
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("%s: %w", orderID, ErrNotFound)
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Items[0], &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// Transition conditionally moves the order from -> to. The write only lands if the stored status is
// still from, so concurrent or redelivered steps cannot move an order twice.
func (s *Store) Transition(ctx context.Context, orderID string, from, to Status, note string) (*Order, error) {
	if !from.CanTransition(to) {
		return nil, fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
	}
	key, err := s.key(ctx, orderID)
	if err != nil {
		return nil, err
	}

	updateExpr := "SET #s = :new, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":new":      &types.AttributeValueMemberS{Value: string(to)},
		":expected": &types.AttributeValueMemberS{Value: string(from)},
		":ua":       &types.AttributeValueMemberS{Value: FormatTime(s.nowFunc())},
	}
	if note != "" {
		updateExpr += ", notes = :notes"
		values[":notes"] = &types.AttributeValueMemberS{Value: note}
	}

	return s.update(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       key,
		UpdateExpression:          &updateExpr,
		ConditionExpression:       aws.String(condExpectedStatus),
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
}

// MarkFailed moves the order to FAILED from any non-terminal status.
func (s *Store) MarkFailed(ctx context.Context, orderID, note string) (*Order, error) {
	key, err := s.key(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.update(ctx, &dyn.UpdateItemInput{
		TableName:                &s.tableName,
		Key:                      key,
		UpdateExpression:         aws.String("SET #s = :new, updated_at = :ua, notes = :notes"),
		ConditionExpression:      aws.String(condNotTerminal),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new":       &types.AttributeValueMemberS{Value: string(StatusFailed)},
			":completed": &types.AttributeValueMemberS{Value: string(StatusCompleted)},
			":failed":    &types.AttributeValueMemberS{Value: string(StatusFailed)},
			":ua":        &types.AttributeValueMemberS{Value: FormatTime(s.nowFunc())},
			":notes":     &types.AttributeValueMemberS{Value: note},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
}

// UpdatePayment writes the payment sub-record fields without touching the order status.
func (s *Store) UpdatePayment(ctx context.Context, orderID string, p Payment) error {
	key, err := s.key(ctx, orderID)
	if err != nil {
		return err
	}

	updateExpr := "SET payment.#ps = :ps, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":ps": &types.AttributeValueMemberS{Value: string(p.Status)},
		":ua": &types.AttributeValueMemberS{Value: FormatTime(s.nowFunc())},
	}
	if p.TransactionID != "" {
		updateExpr += ", payment.transaction_id = :tx"
		values[":tx"] = &types.AttributeValueMemberS{Value: p.TransactionID}
	}
	if p.Amount > 0 {
		updateExpr += ", payment.amount = :amt"
		values[":amt"] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(p.Amount, 'f', -1, 64)}
	}

	_, err = s.update(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       key,
		UpdateExpression:          &updateExpr,
		ConditionExpression:       aws.String(condOrderExists),
		ExpressionAttributeNames:  map[string]string{"#ps": "status"},
		ExpressionAttributeValues: values,
	})
	return err
}

// QueryByStatus lists orders in status, newest first, via the status index.
func (s *Store) QueryByStatus(ctx context.Context, status Status, limit int) ([]Order, error) {
	in := &dyn.QueryInput{
		TableName:                &s.tableName,
		IndexName:                &s.statusIndex,
		KeyConditionExpression:   aws.String("#s = :status"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = int32Ptr(limit)
	}
	out, err := s.client.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("query by status %s: %w", status, err)
	}
	return unmarshalOrders(out.Items)
}

// Scan lists up to limit orders in table order.
func (s *Store) Scan(ctx context.Context, limit int) ([]Order, error) {
	in := &dyn.ScanInput{TableName: &s.tableName}
	if limit > 0 {
		in.Limit = int32Ptr(limit)
	}
	out, err := s.client.Scan(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("scan orders: %w", err)
	}
	return unmarshalOrders(out.Items)
}

// key resolves the composite key of the newest record for orderID.
func (s *Store) key(ctx context.Context, orderID string) (map[string]types.AttributeValue, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("order_id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: orderID},
		},
		ProjectionExpression: aws.String("order_id, created_at"),
		ScanIndexForward:     aws.Bool(false),
		Limit:                int32Ptr(1),
	})
	if err != nil {
		return nil, fmt.Errorf("resolve order key: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("%s: %w", orderID, ErrNotFound)
	}
	item := out.Items[0]
	return map[string]types.AttributeValue{
		"order_id":   item["order_id"],
		"created_at": item["created_at"],
	}, nil
}

func (s *Store) update(ctx context.Context, in *dyn.UpdateItemInput) (*Order, error) {
	out, err := s.client.UpdateItem(ctx, in)
	if err != nil {
		if aws.IsConditionalCheckFailed(err) {
			return nil, ErrStatusMismatch
		}
		return nil, fmt.Errorf("update item: %w", err)
	}
	if len(out.Attributes) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Attributes, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

func unmarshalOrders(items []map[string]types.AttributeValue) ([]Order, error) {
	out := make([]Order, 0, len(items))
	if err := attributevalue.UnmarshalListOfMaps(items, &out); err != nil {
		return nil, fmt.Errorf("unmarshal orders: %w", err)
	}
	return out, nil
}

func int32Ptr(n int) *int32 {
	v := int32(n)
	return &v
}
