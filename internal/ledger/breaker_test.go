package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/groupexchange/internal/models"
)

type stubPoster struct {
	err    error
	calls  int
	voided []string
}

func (s *stubPoster) PostBatch(_ context.Context, batch models.LedgerBatch) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	ids := make([]string, len(batch.Entries))
	for i := range ids {
		ids[i] = batch.Key + "-tx"
	}
	return ids, nil
}

func (s *stubPoster) VoidBatch(_ context.Context, key string) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.voided = append(s.voided, key)
	return nil
}

func testBatch() models.LedgerBatch {
	return models.LedgerBatch{Key: "ex-1", Entries: []models.LedgerEntry{{FromUserID: "a", ToUserID: "b"}}}
}

func TestBreaker_PassesThrough(t *testing.T) {
	stub := &stubPoster{}
	b := NewBreaker(stub, DefaultBreakerConfig(), nil)

	ids, err := b.PostBatch(context.Background(), testBatch())
	require.NoError(t, err)
	assert.Equal(t, []string{"ex-1-tx"}, ids)
	assert.Equal(t, 0, b.State())
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	stub := &stubPoster{err: errors.New("disk full")}
	var states []int
	b := NewBreaker(stub, BreakerConfig{ConsecutiveFailures: 2, Timeout: time.Minute}, func(s int) {
		states = append(states, s)
	})

	for i := 0; i < 2; i++ {
		_, err := b.PostBatch(context.Background(), testBatch())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	_, err := b.PostBatch(context.Background(), testBatch())
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, stub.calls, "open breaker must not reach the ledger")
	assert.Equal(t, 2, b.State())
	assert.Equal(t, []int{2}, states)
}

func TestBreaker_CancellationDoesNotTrip(t *testing.T) {
	stub := &stubPoster{err: context.Canceled}
	b := NewBreaker(stub, BreakerConfig{ConsecutiveFailures: 1, Timeout: time.Minute}, nil)

	for i := 0; i < 3; i++ {
		_, err := b.PostBatch(context.Background(), testBatch())
		require.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, 0, b.State())
	assert.Equal(t, 3, stub.calls)
}

func TestBreaker_VoidBatch(t *testing.T) {
	stub := &stubPoster{}
	b := NewBreaker(stub, BreakerConfig{ConsecutiveFailures: 1, Timeout: time.Minute}, nil)

	require.NoError(t, b.VoidBatch(context.Background(), "ex-1"))
	assert.Equal(t, []string{"ex-1"}, stub.voided)

	stub.err = errors.New("disk full")
	err := b.VoidBatch(context.Background(), "ex-1")
	assert.EqualError(t, err, "disk full")

	err = b.VoidBatch(context.Background(), "ex-1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 2, stub.calls)
}
