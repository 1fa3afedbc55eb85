package indexer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchpad-hq/txflow/pkg/circuitbreaker"
	"github.com/launchpad-hq/txflow/pkg/logger"
	"github.com/launchpad-hq/txflow/pkg/models"
)

var testHash = common.HexToHash("0x1234")

func TestParseStatus(t *testing.T) {
	tests := []struct {
		name string
		body string
		want models.IndexStatus
	}{
		{"flat indexed", `{"indexed": true, "entityId": "proj-1"}`, models.IndexStatus{Indexed: true, EntityID: "proj-1"}},
		{"flat pending", `{"indexed": false}`, models.IndexStatus{}},
		{"numeric id", `{"indexed": true, "id": 42}`, models.IndexStatus{Indexed: true, EntityID: "42"}},
		{"numeric id above 2^53", `{"indexed": true, "id": 9007199254740993}`, models.IndexStatus{Indexed: true, EntityID: "9007199254740993"}},
		{"wrapped", `{"success": true, "data": {"isIndexed": true, "projectId": "p9"}}`, models.IndexStatus{Indexed: true, EntityID: "p9"}},
		{"id without flag", `{"data": {"poolId": "0xpool"}}`, models.IndexStatus{Indexed: true, EntityID: "0xpool"}},
		{"empty object", `{}`, models.IndexStatus{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseStatus([]byte(tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseStatus([]byte(`not json`))
	assert.Error(t, err)
}

func TestClient_QueryIndexed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, IsIndexedPath, r.URL.Path)
		assert.Equal(t, testHash.Hex(), r.URL.Query().Get("txHash"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"indexed": true, "entityId": "abc"}`))
	}))
	defer server.Close()

	client := New(server.URL, &logger.EmptyLogger{})
	status, err := client.QueryIndexed(context.Background(), testHash)
	require.NoError(t, err)
	assert.True(t, status.Indexed)
	assert.Equal(t, "abc", status.EntityID)
}

func TestClient_NotFoundIsPending(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	status, err := New(server.URL, &logger.EmptyLogger{}).QueryIndexed(context.Background(), testHash)
	require.NoError(t, err)
	assert.False(t, status.Indexed)
}

func TestClient_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	_, err := New(server.URL, &logger.EmptyLogger{}).QueryIndexed(context.Background(), testHash)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream down")
}

func TestClient_CircuitBreaker(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
		Enabled:      true,
		Threshold:    2,
		Window:       time.Minute,
		ResetTimeout: time.Hour,
	})
	client := New(server.URL, &logger.EmptyLogger{}, WithCircuitBreaker(breaker))

	for i := 0; i < 2; i++ {
		_, err := client.QueryIndexed(context.Background(), testHash)
		require.Error(t, err)
	}

	_, err := client.QueryIndexed(context.Background(), testHash)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, int32(2), hits.Load(), "open breaker fails fast without calling the indexer")

	breaker.Reset()
	_, err = client.QueryIndexed(context.Background(), testHash)
	assert.NotErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, int32(3), hits.Load())
}
