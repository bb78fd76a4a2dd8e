package main

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/relay-stack/bridge/internal/queue"
	"github.com/telhawk-systems/relay-stack/common/logging"
	"github.com/telhawk-systems/relay-stack/common/models"
)

type countingDispatcher struct {
	calls atomic.Int32
}

func (d *countingDispatcher) Dispatch(context.Context, models.Event) error {
	d.calls.Add(1)
	return nil
}

func TestServe_QueueDispatchesWhileServerDrains(t *testing.T) {
	d := &countingDispatcher{}
	q := queue.New(queue.Config{RateLimit: 100, PollInterval: time.Millisecond}, d, nil, nil, logging.Discard())

	entered := make(chan struct{})
	proceed := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/events", func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-proceed

		job, err := q.Accept(context.Background(), models.Event{ID: "e1", Name: "n", Body: "b", Timestamp: "t"})
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if current, ok := q.Get(job.ID); ok && current.Status == queue.StatusDelivered {
				w.WriteHeader(http.StatusAccepted)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
		w.WriteHeader(http.StatusGatewayTimeout)
	})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &http.Server{Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- serve(ctx, srv, ln, q, 5*time.Second) }()

	status := make(chan int, 1)
	go func() {
		resp, err := http.Post("http://"+ln.Addr().String()+"/api/events", "application/json", nil)
		if err != nil {
			status <- 0
			return
		}
		resp.Body.Close()
		status <- resp.StatusCode
	}()

	<-entered
	cancel()
	time.Sleep(50 * time.Millisecond)
	close(proceed)

	select {
	case code := <-status:
		assert.Equal(t, http.StatusAccepted, code)
	case <-time.After(5 * time.Second):
		t.Fatal("request never completed")
	}
	require.NoError(t, <-served)
	assert.Equal(t, int32(1), d.calls.Load())

	_, err = q.Accept(context.Background(), models.Event{ID: "e2", Name: "n", Body: "b", Timestamp: "t"})
	assert.ErrorIs(t, err, queue.ErrQueueStopped)
}
