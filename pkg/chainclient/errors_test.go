package chainclient

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/launchpad-hq/txflow/pkg/models"
)

type codedError struct {
	code int
}

func (e codedError) Error() string  { return fmt.Sprintf("rpc error %d", e.code) }
func (e codedError) ErrorCode() int { return e.code }

func TestClassifySubmissionError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		reason models.SubmissionReason
	}{
		{"metamask rejection", errors.New("MetaMask Tx Signature: User denied transaction signature."), models.UserRejected},
		{"user rejected request", errors.New("user rejected the request"), models.UserRejected},
		{"eip-1193 code", fmt.Errorf("sign: %w", codedError{code: 4001}), models.UserRejected},
		{"other rpc code", codedError{code: -32000}, models.BroadcastFailed},
		{"nonce too low", errors.New("nonce too low"), models.BroadcastFailed},
		{"insufficient funds", errors.New("insufficient funds for gas * price + value"), models.BroadcastFailed},
		{"execution reverted", errors.New("execution reverted: not enough allowance"), models.BroadcastFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subErr := ClassifySubmissionError(tt.err)
			assert.Equal(t, tt.reason, subErr.Reason)
			assert.ErrorIs(t, subErr, tt.err)
		})
	}
}

func TestClassifySubmissionError_Passthrough(t *testing.T) {
	assert.Nil(t, ClassifySubmissionError(nil))

	original := &models.SubmissionError{Reason: models.UserRejected, Err: errors.New("no")}
	assert.Same(t, original, ClassifySubmissionError(fmt.Errorf("wrapped: %w", original)))
}
