package adapters

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/bidmesh/auctioncore/internal/models"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

type connRefusedErr struct{}

func (connRefusedErr) Error() string   { return "connection refused" }
func (connRefusedErr) Timeout() bool   { return false }
func (connRefusedErr) Temporary() bool { return false }

func TestNoBidReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, models.NoBidNoFill},
		{"explicit no bid", ErrNoBid, models.NoBidNoFill},
		{"deadline", context.DeadlineExceeded, models.NoBidTimeout},
		{"canceled", context.Canceled, models.NoBidTimeout},
		{"net timeout", timeoutErr{}, models.NoBidTimeout},
		{"conn refused", connRefusedErr{}, models.NoBidNetworkError},
		{"status 500", &StatusError{Code: 500}, "status_500"},
		{"status 429", &StatusError{Code: 429}, "status_429"},
		{"other", errors.New("weird"), models.NoBidError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NoBidReason(tc.err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(ErrNoBid))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(timeoutErr{}))
	assert.False(t, IsTransient(connRefusedErr{}))
	assert.True(t, IsTransient(&StatusError{Code: 503}))
	assert.False(t, IsTransient(&StatusError{Code: 400}))
}

func TestIsFailure(t *testing.T) {
	assert.False(t, IsFailure(nil))
	assert.False(t, IsFailure(ErrNoBid), "an explicit pass is a healthy response")
	assert.True(t, IsFailure(context.DeadlineExceeded))
	assert.True(t, IsFailure(&StatusError{Code: 500}))
}

func TestRegistryReplace(t *testing.T) {
	r := NewRegistry()
	r.Register(NewStaticBidder("old", 1.0, 0))

	r.Replace([]Config{
		{ID: "new-a", Endpoint: "http://a", Enabled: true},
		{ID: "new-b", Endpoint: "http://b", Enabled: true},
		{ID: "disabled", Endpoint: "http://c", Enabled: false},
	}, zap.NewNop())

	_, ok := r.Get("old")
	assert.False(t, ok, "replace swaps the whole set")
	assert.Equal(t, []string{"new-a", "new-b"}, r.Names())
}
