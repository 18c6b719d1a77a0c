package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"movierental/internal/config"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.Config{ServiceName: "movierental", Env: "test"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupExportsTracesAndMetrics(t *testing.T) {
	var (
		mu    sync.Mutex
		paths = map[string]int{}
	)
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths[r.URL.Path]++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	prevTracer, prevMeter := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTracer)
		otel.SetMeterProvider(prevMeter)
	})

	ctx := context.Background()
	shutdown, err := Setup(ctx, config.Config{ServiceName: "movierental", Env: "test", OTLPEndpoint: collector.URL})
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(ctx, "checkout")
	span.End()
	counter, err := otel.Meter("test").Int64Counter("rentals.checkouts")
	require.NoError(t, err)
	counter.Add(ctx, 1)

	require.NoError(t, shutdown(ctx))

	mu.Lock()
	defer mu.Unlock()
	assert.Positive(t, paths["/v1/traces"])
	assert.Positive(t, paths["/v1/metrics"])
}

func TestHostPort(t *testing.T) {
	assert.Equal(t, "collector:4318", hostPort("http://collector:4318/v1/traces"))
	assert.Equal(t, "collector:4318", hostPort("https://collector:4318"))
	assert.Equal(t, "localhost:4318", hostPort("localhost:4318"))
}
