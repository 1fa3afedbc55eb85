package chainclient

import (
	"errors"
	"strings"

	"github.com/launchpad-hq/txflow/pkg/models"
)

// rpcCodeError is implemented by JSON-RPC errors carrying a numeric code
type rpcCodeError interface {
	ErrorCode() int
}

// eip1193UserRejected is the provider error code for a request the user declined
const eip1193UserRejected = 4001

var rejectionMarkers = []string{
	"user rejected",
	"user denied",
	"rejected by user",
	"request rejected",
	"denied transaction signature",
}

// ClassifySubmissionError wraps a failed submission into a *models.SubmissionError,
// separating user rejections from broadcast failures
func ClassifySubmissionError(err error) *models.SubmissionError {
	if err == nil {
		return nil
	}

	var subErr *models.SubmissionError
	if errors.As(err, &subErr) {
		return subErr
	}

	var coded rpcCodeError
	if errors.As(err, &coded) && coded.ErrorCode() == eip1193UserRejected {
		return &models.SubmissionError{Reason: models.UserRejected, Err: err}
	}

	errStr := strings.ToLower(err.Error())
	for _, marker := range rejectionMarkers {
		if strings.Contains(errStr, marker) {
			return &models.SubmissionError{Reason: models.UserRejected, Err: err}
		}
	}

	return &models.SubmissionError{Reason: models.BroadcastFailed, Err: err}
}
