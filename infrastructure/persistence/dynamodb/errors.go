package dynamodb

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	pkgerrors "nodestand-backend/pkg/errors"
)

// classify maps DynamoDB API errors onto the domain error taxonomy.
func classify(operation string, err error) error {
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		reasons := make([]string, 0, len(tce.CancellationReasons))
		for _, r := range tce.CancellationReasons {
			if r.Code != nil && *r.Code != "None" {
				reasons = append(reasons, *r.Code)
			}
		}
		return pkgerrors.ErrTransactionFailed.Clone().
			WithMessage(fmt.Sprintf("failed to %s: transaction cancelled", operation)).
			WithDetail("reasons", reasons).
			WithCause(err)
	}

	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "ConditionalCheckFailedException", "TransactionConflictException":
			return pkgerrors.ErrTransactionFailed.Clone().
				WithMessage(fmt.Sprintf("failed to %s: %s", operation, ae.ErrorCode())).
				WithCause(err)
		case "ProvisionedThroughputExceededException", "RequestLimitExceeded", "ThrottlingException":
			return pkgerrors.NewInfrastructureError(operation, err).
				WithDetail("throttled", true).
				WithRetryable(true)
		case "ValidationException", "ResourceNotFoundException":
			return pkgerrors.NewInfrastructureError(operation, err).WithRetryable(false)
		}
	}
	return pkgerrors.NewInfrastructureError(operation, err)
}
