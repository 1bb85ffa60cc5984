package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/arbguard/business/session/domain"
	"github.com/fd1az/arbguard/internal/logger"
)

type recorder struct {
	mu       sync.Mutex
	received []payload
}

func (r *recorder) add(p payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.received = append(r.received, p)
}

func (r *recorder) all() []payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]payload(nil), r.received...)
}

func TestNotifier_Delivers(t *testing.T) {
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode: %v", err)
		}
		rec.add(p)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n, err := New(Config{URL: server.URL}, logger.NewNop())
	require.NoError(t, err)

	n.Notify(context.Background(), domain.Notification{
		Kind:     "breaker",
		UserID:   "alice",
		Severity: "critical",
		Title:    "circuit breaker tripped",
		Message:  "daily_loss_limit",
		At:       time.Now(),
	})
	require.NoError(t, n.Close())

	got := rec.all()
	require.Len(t, got, 1)
	assert.Equal(t, "alice", got[0].UserID)
	assert.Equal(t, "[critical] circuit breaker tripped: daily_loss_limit", got[0].Text)
}

func TestNotifier_DropsWhenFull(t *testing.T) {
	arrived := make(chan struct{}, 4)
	release := make(chan struct{})
	rec := &recorder{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p payload
		_ = json.NewDecoder(r.Body).Decode(&p)
		rec.add(p)
		arrived <- struct{}{}
		<-release
	}))
	defer server.Close()

	n, err := New(Config{URL: server.URL, QueueSize: 1, Timeout: 5 * time.Second}, logger.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	n.Notify(ctx, domain.Notification{Kind: "first"})
	select {
	case <-arrived:
	case <-time.After(5 * time.Second):
		t.Fatal("first notification never arrived")
	}

	// The worker is busy: one slot in the queue, the next is dropped.
	n.Notify(ctx, domain.Notification{Kind: "second"})
	n.Notify(ctx, domain.Notification{Kind: "third"})
	assert.Equal(t, int64(1), n.Dropped())

	close(release)
	require.NoError(t, n.Close())

	kinds := make([]string, 0, 2)
	for _, p := range rec.all() {
		kinds = append(kinds, p.Kind)
	}
	assert.Equal(t, []string{"first", "second"}, kinds)
}

func TestNotifier_IgnoresAfterClose(t *testing.T) {
	n, err := New(Config{URL: "http://127.0.0.1:1"}, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, n.Close())
	require.NoError(t, n.Close())

	n.Notify(context.Background(), domain.Notification{Kind: "late"})
	assert.Zero(t, n.Dropped())
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New(Config{}, logger.NewNop())
	assert.Error(t, err)
}
