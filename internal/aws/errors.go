package aws

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

const conditionalCheckFailedCode = "ConditionalCheckFailedException"

// IsConditionalCheckFailed reports whether err is a DynamoDB condition failure, either as the typed
// exception or as a generic API error carrying the same code.
func IsConditionalCheckFailed(err error) bool {
	if err == nil {
		return false
	}
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == conditionalCheckFailedCode
}

// IsTransactionCanceled reports whether a TransactWriteItems call was cancelled, which for our
// callers means one of its conditions failed.
func IsTransactionCanceled(err error) bool {
	var tce *types.TransactionCanceledException
	return errors.As(err, &tce)
}

// String returns a pointer to s.
func String(s string) *string { return &s }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }
