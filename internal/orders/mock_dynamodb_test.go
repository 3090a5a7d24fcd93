package orders

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is an in-memory orders table keyed by order_id + created_at. It understands the
// key conditions, SET clauses and condition expressions the Store emits, nothing more.
type mockDynamo struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	// idempotency holds items written to any other table by TransactWriteItems, keyed by idempotency_key.
	idempotency map[string]map[string]types.AttributeValue

	updateErr   error
	updateCalls int
	lastQuery   *dyn.QueryInput
}

func newMockDynamo() *mockDynamo {
	return &mockDynamo{
		items:       map[string]map[string]types.AttributeValue{},
		idempotency: map[string]map[string]types.AttributeValue{},
	}
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func itemKey(item map[string]types.AttributeValue) string {
	return str(item["order_id"]) + "|" + str(item["created_at"])
}

func (m *mockDynamo) findByOrderID(orderID string) map[string]types.AttributeValue {
	for _, it := range m.items {
		if str(it["order_id"]) == orderID {
			return it
		}
	}
	return nil
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if params.ConditionExpression != nil && *params.ConditionExpression == condOrderNotExists {
		if _, exists := m.items[itemKey(params.Item)]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.items[itemKey(params.Item)] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[itemKey(params.Key)]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *mockDynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = params

	var matched []map[string]types.AttributeValue
	switch {
	case params.IndexName != nil:
		want := str(params.ExpressionAttributeValues[":status"])
		for _, it := range m.items {
			if str(it["status"]) == want {
				matched = append(matched, it)
			}
		}
	default:
		want := str(params.ExpressionAttributeValues[":id"])
		for _, it := range m.items {
			if str(it["order_id"]) == want {
				matched = append(matched, it)
			}
		}
	}

	forward := params.ScanIndexForward == nil || *params.ScanIndexForward
	sort.Slice(matched, func(i, j int) bool {
		a, b := str(matched[i]["created_at"]), str(matched[j]["created_at"])
		if forward {
			return a < b
		}
		return a > b
	})
	if params.Limit != nil && int(*params.Limit) < len(matched) {
		matched = matched[:*params.Limit]
	}
	return &dyn.QueryOutput{Items: matched, Count: int32(len(matched))}, nil
}

func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []map[string]types.AttributeValue
	for _, k := range keys {
		if params.Limit != nil && len(out) >= int(*params.Limit) {
			break
		}
		out = append(out, m.items[k])
	}
	return &dyn.ScanOutput{Items: out, Count: int32(len(out))}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.updateErr != nil {
		return nil, m.updateErr
	}

	k := itemKey(params.Key)
	current, exists := m.items[k]
	if params.ConditionExpression != nil {
		if !conditionHolds(*params.ConditionExpression, current, exists, params.ExpressionAttributeValues) {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	if !exists {
		return nil, errors.New("item not found")
	}

	next := copyItem(current)
	applySet(next, *params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues)
	m.items[k] = next

	out := &dyn.UpdateItemOutput{}
	if params.ReturnValues == types.ReturnValueAllNew {
		out.Attributes = next
	}
	return out, nil
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range params.TransactItems {
		p := it.Put
		if p == nil || p.ConditionExpression == nil {
			continue
		}
		switch *p.ConditionExpression {
		case condIdempotencyNotExists:
			if _, exists := m.idempotency[str(p.Item["idempotency_key"])]; exists {
				return nil, &types.TransactionCanceledException{}
			}
		case condOrderNotExists:
			if _, exists := m.items[itemKey(p.Item)]; exists {
				return nil, &types.TransactionCanceledException{}
			}
		}
	}
	for _, it := range params.TransactItems {
		p := it.Put
		if p == nil {
			continue
		}
		if _, ok := p.Item["idempotency_key"]; ok {
			m.idempotency[str(p.Item["idempotency_key"])] = p.Item
			continue
		}
		m.items[itemKey(p.Item)] = p.Item
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func conditionHolds(cond string, item map[string]types.AttributeValue, exists bool, values map[string]types.AttributeValue) bool {
	switch cond {
	case condOrderExists:
		return exists
	case condOrderNotExists:
		return !exists
	case condExpectedStatus:
		return exists && str(item["status"]) == str(values[":expected"])
	case condNotTerminal:
		s := str(item["status"])
		return exists && s != str(values[":completed"]) && s != str(values[":failed"])
	}
	return false
}

// applySet handles "SET a = :x, b.#c = :y" with one level of nesting.
func applySet(item map[string]types.AttributeValue, expr string, names map[string]string, values map[string]types.AttributeValue) {
	expr = strings.TrimPrefix(strings.TrimSpace(expr), "SET ")
	for _, clause := range strings.Split(expr, ",") {
		parts := strings.SplitN(clause, "=", 2)
		path := strings.Split(strings.TrimSpace(parts[0]), ".")
		val := values[strings.TrimSpace(parts[1])]
		for i, p := range path {
			if n, ok := names[p]; ok {
				path[i] = n
			}
		}
		if len(path) == 1 {
			item[path[0]] = val
			continue
		}
		parent, _ := item[path[0]].(*types.AttributeValueMemberM)
		nested := map[string]types.AttributeValue{}
		if parent != nil {
			for k, v := range parent.Value {
				nested[k] = v
			}
		}
		nested[path[1]] = val
		item[path[0]] = &types.AttributeValueMemberM{Value: nested}
	}
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
