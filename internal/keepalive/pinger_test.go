package keepalive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPingerHitsTargetUntilCancelled(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	pinger := NewPinger(server.URL, 10*time.Millisecond, time.Second, zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	go pinger.Start(ctx)

	require.Eventually(t, func() bool { return hits.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	pinger.Wait()
}

func TestPingReportsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	before := testutil.ToFloat64(pingCounter.WithLabelValues("error"))
	err := NewPinger(server.URL, time.Minute, time.Second, nil).Ping(context.Background())
	require.ErrorContains(t, err, "502")
	require.InDelta(t, before+1, testutil.ToFloat64(pingCounter.WithLabelValues("error")), 0.0001)
}
