package observability

import (
	"context"
	"testing"
	"time"

	"economy/config"
	"economy/events"
	"economy/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestProvider(t *testing.T) (*MetricsProvider, *sdkmetric.ManualReader) {
	t.Helper()

	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true
	cfg.OTelServiceName = "economy-test"

	reader := sdkmetric.NewManualReader()
	mp := NewMetricsProvider(cfg, WithReader(reader))
	require.NoError(t, mp.Initialize(context.Background()))
	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})
	return mp, reader
}

// sumOf returns the total of every data point of an int64 sum instrument
func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestMetricsProvider_Disabled(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = false

	mp := NewMetricsProvider(cfg)
	require.NoError(t, mp.Initialize(context.Background()))

	// recording on a disabled provider is a no-op
	mp.RecordBalanceTransaction("award", 10)
	mp.UpdateActiveSessions(models.GameTypeRoulette, 1)
	assert.NoError(t, mp.Shutdown(context.Background()))

	var nilProvider *MetricsProvider
	nilProvider.RecordExchange("gift")
}

func TestMetricsProvider_ExporterNoneRecordsNothing(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true
	cfg.OTelExporterType = ExporterNone

	mp := NewMetricsProvider(cfg)
	require.NoError(t, mp.Initialize(context.Background()))
	mp.RecordSettlement(models.GameTypeRoulette, 100)
	assert.False(t, mp.isEnabled())
}

func TestMetricsProvider_UnknownExporter(t *testing.T) {
	cfg := config.NewTestConfig()
	cfg.OTelEnabled = true
	cfg.OTelExporterType = "carrier-pigeon"

	mp := NewMetricsProvider(cfg)
	assert.Error(t, mp.Initialize(context.Background()))
}

func TestMetricsProvider_Records(t *testing.T) {
	mp, reader := newTestProvider(t)

	mp.RecordBalanceTransaction("award", 150)
	mp.RecordBalanceTransaction("spend", -40)
	mp.UpdateActiveSessions(models.GameTypeRoulette, 1)
	mp.UpdateActiveSessions(models.GameTypeRoulette, 1)
	mp.UpdateActiveSessions(models.GameTypeRoulette, -1)
	mp.RecordSettlement(models.GameTypeRoulette, 360)
	mp.RecordExchange("gift")
	mp.RecordNATSMessagePublished("balance_change")

	assert.Equal(t, int64(2), sumOf(t, reader, BalanceTransactionsTotal))
	assert.Equal(t, int64(190), sumOf(t, reader, BalanceVolumeTotal))
	assert.Equal(t, int64(1), sumOf(t, reader, SessionsActive))
	assert.Equal(t, int64(1), sumOf(t, reader, SessionsSettledTotal))
	assert.Equal(t, int64(360), sumOf(t, reader, SessionsPayoutTotal))
	assert.Equal(t, int64(1), sumOf(t, reader, ExchangesTotal))
	assert.Equal(t, int64(1), sumOf(t, reader, NATSMessagesPublishedTotal))
}

func TestRegisterEventHandlers(t *testing.T) {
	mp, reader := newTestProvider(t)
	bus := events.NewBus()
	RegisterEventHandlers(bus, mp)

	ctx := context.Background()
	bus.Emit(ctx, events.BalanceChangeEvent{UserID: "u1", Amount: 25, Kind: models.TransactionKindDaily})
	bus.Emit(ctx, events.SessionStartedEvent{SessionKey: "s1", GameType: models.GameTypeRoulette})
	bus.Emit(ctx, events.ExchangeCompletedEvent{Method: models.AcquisitionMethodPurchase})
	bus.Emit(ctx, events.DailyBoostActivatedEvent{UserID: "u1"})

	// handlers run asynchronously
	assert.Eventually(t, func() bool {
		return sumOf(t, reader, BalanceTransactionsTotal) == 1 &&
			sumOf(t, reader, SessionsActive) == 1 &&
			sumOf(t, reader, ExchangesTotal) == 1 &&
			sumOf(t, reader, DailyBoostsActivated) == 1
	}, 2*time.Second, 20*time.Millisecond)
}
