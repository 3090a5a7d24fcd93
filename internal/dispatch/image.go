package dispatch

import (
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/imrishuroy/go-orderflow-saga/internal/orders"
)

// Route is the part of a stream image the dispatcher acts on.
type Route struct {
	OrderID string        `dynamodbav:"order_id"`
	Status  orders.Status `dynamodbav:"status"`
}

// DecodeRoute reads order_id and status from a stream NewImage. No other attribute is decoded, so a
// record routes regardless of what else it carries.
func DecodeRoute(image map[string]events.DynamoDBAttributeValue) (Route, error) {
	item := make(map[string]types.AttributeValue, 2)
	for _, name := range []string{"order_id", "status"} {
		v, ok := image[name]
		if !ok {
			continue
		}
		av, err := toAttributeValue(v)
		if err != nil {
			return Route{}, fmt.Errorf("attribute %s: %w", name, err)
		}
		item[name] = av
	}
	var r Route
	if err := attributevalue.UnmarshalMap(item, &r); err != nil {
		return Route{}, fmt.Errorf("unmarshal stream image: %w", err)
	}
	return r, nil
}

// FromStreamImage converts the Lambda event representation of an item into the SDK one so it can
// go through attributevalue like any item read from the table.
func FromStreamImage(image map[string]events.DynamoDBAttributeValue) (map[string]types.AttributeValue, error) {
	out := make(map[string]types.AttributeValue, len(image))
	for k, v := range image {
		av, err := toAttributeValue(v)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", k, err)
		}
		out[k] = av
	}
	return out, nil
}

func toAttributeValue(v events.DynamoDBAttributeValue) (types.AttributeValue, error) {
	switch v.DataType() {
	case events.DataTypeString:
		return &types.AttributeValueMemberS{Value: v.String()}, nil
	case events.DataTypeNumber:
		return &types.AttributeValueMemberN{Value: v.Number()}, nil
	case events.DataTypeBoolean:
		return &types.AttributeValueMemberBOOL{Value: v.Boolean()}, nil
	case events.DataTypeNull:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case events.DataTypeBinary:
		return &types.AttributeValueMemberB{Value: v.Binary()}, nil
	case events.DataTypeStringSet:
		return &types.AttributeValueMemberSS{Value: v.StringSet()}, nil
	case events.DataTypeNumberSet:
		return &types.AttributeValueMemberNS{Value: v.NumberSet()}, nil
	case events.DataTypeBinarySet:
		return &types.AttributeValueMemberBS{Value: v.BinarySet()}, nil
	case events.DataTypeMap:
		m, err := FromStreamImage(v.Map())
		if err != nil {
			return nil, err
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	case events.DataTypeList:
		list := v.List()
		out := make([]types.AttributeValue, 0, len(list))
		for i, el := range list {
			av, err := toAttributeValue(el)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out = append(out, av)
		}
		return &types.AttributeValueMemberL{Value: out}, nil
	}
	return nil, fmt.Errorf("unsupported data type %v", v.DataType())
}
