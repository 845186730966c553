package metrics

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/f1re/watchdog/internal/types"
)

func TestObservers(t *testing.T) {
	ObserveProbe("metrics-test", true)
	ObserveProbe("metrics-test", false)
	ObserveProbe("metrics-test", false)
	assert.Equal(t, 1.0, testutil.ToFloat64(probesTotal.WithLabelValues("metrics-test", "healthy")))
	assert.Equal(t, 2.0, testutil.ToFloat64(probesTotal.WithLabelValues("metrics-test", "unhealthy")))

	ObserveRestart("metrics-test", false)
	assert.Equal(t, 1.0, testutil.ToFloat64(restartsTotal.WithLabelValues("metrics-test", "false")))

	ObserveEscalation("metrics-test", types.OutcomeRecovered)
	assert.Equal(t, 1.0, testutil.ToFloat64(escalationsTotal.WithLabelValues("metrics-test", "recovered")))

	SetPhase("metrics-test", types.PhaseFailed)
	assert.Equal(t, 5.0, testutil.ToFloat64(servicePhase.WithLabelValues("metrics-test")))
	SetPhase("metrics-test", types.PhaseHealthy)
	assert.Equal(t, 0.0, testutil.ToFloat64(servicePhase.WithLabelValues("metrics-test")))

	ObserveNotification("metrics-test-notifier", errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(notificationsTotal.WithLabelValues("metrics-test-notifier", "failed")))

	ObserveTick("metrics-test", 10*time.Millisecond)
}

type fakeHTTPServer struct {
	listenErr error
	stopCh    chan struct{}
	shutdowns int
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stopCh
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	f.shutdowns++
	close(f.stopCh)
	return nil
}

func TestServer_ShutsDownOnCancel(t *testing.T) {
	fake := &fakeHTTPServer{stopCh: make(chan struct{})}
	srv := newServer(fake, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Equal(t, 1, fake.shutdowns)
	assert.Equal(t, "metrics-server", srv.String())
}

func TestServer_ListenError(t *testing.T) {
	fake := &fakeHTTPServer{listenErr: errors.New("address in use"), stopCh: make(chan struct{})}
	err := newServer(fake, 0).Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "address in use")
}
