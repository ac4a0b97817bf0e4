package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/imrishuroy/digital-marketplace/internal/client"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type response struct {
	status *client.OrderStatus
	err    error
}

// scripted replays responses in order and repeats the last one.
type scripted struct {
	mu        sync.Mutex
	responses []response
	calls     int
	inFlight  int
	overlap   bool
}

func (s *scripted) OrderStatus(ctx context.Context, orderID string) (*client.OrderStatus, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > 1 {
		s.overlap = true
	}
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	r := s.responses[i]
	s.mu.Unlock()

	time.Sleep(time.Millisecond)

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	return r.status, r.err
}

func (s *scripted) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var (
	pending = response{status: &client.OrderStatus{Status: client.StatusPending}}
	paid    = response{status: &client.OrderStatus{Status: client.StatusPaid}}
	boom    = response{err: errors.New("connection refused")}
)

func fast() Config {
	return Config{Interval: 5 * time.Millisecond, RetryBackoff: time.Millisecond, MaxAttempts: 3}
}

func TestPoll_StopsWhenPaid(t *testing.T) {
	f := &scripted{responses: []response{pending, pending, paid}}
	var states []State
	u, err := New(f, fast()).Poll(context.Background(), "o1", func(u Update) { states = append(states, u.State) })

	require.NoError(t, err)
	assert.Equal(t, StatePaid, u.State)
	assert.Equal(t, []State{StatePending, StatePending, StatePaid}, states)
	assert.Equal(t, 3, f.callCount())
	assert.False(t, f.overlap, "ticks never overlap")
}

func TestPoll_NotFoundSurfacesImmediately(t *testing.T) {
	f := &scripted{responses: []response{{err: client.ErrNotFound}}}
	u, err := New(f, fast()).Poll(context.Background(), "o1", nil)
	require.NoError(t, err)
	assert.Equal(t, StateNotFound, u.State)
	assert.Equal(t, 1, f.callCount(), "not found is not retried")
}

func TestPoll_UnauthenticatedSurfacesImmediately(t *testing.T) {
	f := &scripted{responses: []response{{err: client.ErrUnauthenticated}}}
	u, err := New(f, fast()).Poll(context.Background(), "o1", nil)
	require.NoError(t, err)
	assert.Equal(t, StateUnauthenticated, u.State)
	assert.Equal(t, 1, f.callCount())
}

func TestPoll_RetriesTransientErrors(t *testing.T) {
	f := &scripted{responses: []response{boom, boom, pending, boom, paid}}
	u, err := New(f, fast()).Poll(context.Background(), "o1", nil)
	require.NoError(t, err)
	assert.Equal(t, StatePaid, u.State)
	assert.Equal(t, 5, f.callCount())
}

func TestPoll_GivesUpAfterConsecutiveFailures(t *testing.T) {
	f := &scripted{responses: []response{pending, boom}}
	var updates int
	_, err := New(f, fast()).Poll(context.Background(), "o1", func(Update) { updates++ })
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 4, f.callCount(), "one pending tick then three failed attempts")
	assert.Equal(t, 1, updates)
}

func TestPoll_UnexpectedStatus(t *testing.T) {
	f := &scripted{responses: []response{{status: &client.OrderStatus{Status: "refunded"}}}}
	_, err := New(f, fast()).Poll(context.Background(), "o1", nil)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestPoll_PendingUntilCancelled(t *testing.T) {
	f := &scripted{responses: []response{pending}}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	var last Update
	go func() {
		var err error
		last, err = New(f, fast()).Poll(ctx, "o1", nil)
		done <- err
	}()

	require.Eventually(t, func() bool { return f.callCount() >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, StatePending, last.State)
	case <-time.After(time.Second):
		t.Fatal("poll did not stop after cancel")
	}
}

func TestPoll_CancelDuringBackoff(t *testing.T) {
	f := &scripted{responses: []response{boom}}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := New(f, Config{Interval: time.Second, RetryBackoff: time.Hour, MaxAttempts: 3}).Poll(ctx, "o1", nil)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Equal(t, 1, f.callCount())
}

func TestNew_Defaults(t *testing.T) {
	p := New(&scripted{}, Config{})
	assert.Equal(t, DefaultInterval, p.cfg.Interval)
	assert.Equal(t, DefaultRetryBackoff, p.cfg.RetryBackoff)
	assert.Equal(t, DefaultMaxAttempts, p.cfg.MaxAttempts)
}
