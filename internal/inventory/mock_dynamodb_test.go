package inventory

import (
	"context"
	"errors"
	"strconv"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// stockMock is an in-memory inventory table. Transactions are evaluated atomically under a mutex,
// and a cancelled transaction reports a reason per item the way DynamoDB does.
type stockMock struct {
	mu          sync.Mutex
	table       map[string]map[string]types.AttributeValue
	getErr      error
	transactErr error
}

func newStockMock() *stockMock {
	return &stockMock{table: map[string]map[string]types.AttributeValue{}}
}

func keyOf(m map[string]types.AttributeValue) string {
	return m["product_id"].(*types.AttributeValueMemberS).Value
}

func (m *stockMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.table[keyOf(params.Item)] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *stockMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	item, ok := m.table[keyOf(params.Key)]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

// TransactWriteItems supports the reservation shape only: Put marker + Update stock.
func (m *stockMock) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.transactErr != nil {
		return nil, m.transactErr
	}
	if len(params.TransactItems) != 2 || params.TransactItems[0].Put == nil || params.TransactItems[1].Update == nil {
		return nil, errors.New("unexpected transaction shape")
	}
	put, upd := params.TransactItems[0].Put, params.TransactItems[1].Update
	if *put.ConditionExpression != condReservationNew || *upd.ConditionExpression != condEnoughStock {
		return nil, errors.New("unexpected conditions")
	}

	reasons := []types.CancellationReason{{Code: sdkaws.String("None")}, {Code: sdkaws.String("None")}}
	cancelled := false

	if _, exists := m.table[keyOf(put.Item)]; exists {
		reasons[0].Code = sdkaws.String("ConditionalCheckFailed")
		cancelled = true
	}

	qty, err := strconv.Atoi(upd.ExpressionAttributeValues[":quantity"].(*types.AttributeValueMemberN).Value)
	if err != nil {
		return nil, err
	}
	stock := -1
	if item, ok := m.table[keyOf(upd.Key)]; ok {
		if n, ok := item["stock_quantity"].(*types.AttributeValueMemberN); ok {
			stock, _ = strconv.Atoi(n.Value)
		}
	}
	if stock < qty {
		reasons[1].Code = sdkaws.String("ConditionalCheckFailed")
		cancelled = true
	}

	if cancelled {
		return nil, &types.TransactionCanceledException{CancellationReasons: reasons}
	}

	m.table[keyOf(put.Item)] = put.Item
	item := m.table[keyOf(upd.Key)]
	next := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		next[k] = v
	}
	next["stock_quantity"] = &types.AttributeValueMemberN{Value: strconv.Itoa(stock - qty)}
	m.table[keyOf(upd.Key)] = next
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (m *stockMock) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *stockMock) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	return nil, errors.New("not implemented")
}

func (m *stockMock) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	return nil, errors.New("not implemented")
}
