// Package keepalive periodically requests a URL so an idle host is not suspended.
package keepalive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

var pingCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "exercise_tracker",
	Subsystem: "keepalive",
	Name:      "pings_total",
	Help:      "Keep-alive requests grouped by outcome.",
}, []string{"outcome"})

func init() {
	prometheus.MustRegister(pingCounter)
}

// Pinger issues a GET against a URL on a fixed interval.
type Pinger struct {
	url        string
	interval   time.Duration
	httpClient *http.Client
	logger     *zap.Logger
	done       chan struct{}
}

// NewPinger constructs a Pinger.
func NewPinger(url string, interval, timeout time.Duration, logger *zap.Logger) *Pinger {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pinger{
		url:        url,
		interval:   interval,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Start pings until ctx is cancelled. It should be called in a goroutine.
func (p *Pinger) Start(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer func() {
		ticker.Stop()
		close(p.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Ping(ctx); err != nil && ctx.Err() == nil {
				p.logger.Warn("keep-alive ping failed", zap.String("url", p.url), zap.Error(err))
			}
		}
	}
}

// Wait blocks until Start returns.
func (p *Pinger) Wait() {
	<-p.done
}

// Ping performs a single request.
func (p *Pinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		pingCounter.WithLabelValues("error").Inc()
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		pingCounter.WithLabelValues("error").Inc()
		return fmt.Errorf("keep-alive target responded %s", resp.Status)
	}
	pingCounter.WithLabelValues("ok").Inc()
	p.logger.Debug("keep-alive ping", zap.String("url", p.url), zap.Int("status", resp.StatusCode))
	return nil
}
