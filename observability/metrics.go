package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"economy/config"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
)

// MetricsProvider manages OpenTelemetry metrics for the economy service
type MetricsProvider struct {
	config        *config.Config
	reader        sdkmetric.Reader // overrides the configured exporter when set
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	recording     bool
	mu            sync.RWMutex

	// Metric instruments
	balanceTransactionsCounter   metric.Int64Counter
	balanceVolumeCounter         metric.Int64Counter
	boostsActivatedCounter       metric.Int64Counter
	sessionsActiveGauge          metric.Int64UpDownCounter
	sessionsSettledCounter       metric.Int64Counter
	sessionsPayoutCounter        metric.Int64Counter
	exchangesCounter             metric.Int64Counter
	natsMessagesPublishedCounter metric.Int64Counter
}

// MetricsOption configures a MetricsProvider
type MetricsOption func(*MetricsProvider)

// WithReader collects metrics through reader instead of the configured exporter
func WithReader(reader sdkmetric.Reader) MetricsOption {
	return func(mp *MetricsProvider) {
		mp.reader = reader
	}
}

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config, opts ...MetricsOption) *MetricsProvider {
	mp := &MetricsProvider{
		config: cfg,
	}
	for _, opt := range opts {
		opt(mp)
	}
	return mp
}

// Initialize sets up the OpenTelemetry metrics provider
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		log.Debug("Metrics provider already initialized")
		return nil
	}

	if !mp.config.OTelEnabled {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	reader := mp.reader
	if reader == nil {
		var exporter sdkmetric.Exporter
		switch mp.config.OTelExporterType {
		case ExporterConsole:
			exporter, err = stdoutmetric.New()
			if err != nil {
				return fmt.Errorf("failed to create console exporter: %w", err)
			}
			log.Info("Using console metric exporter")

		case ExporterOTLP:
			dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			exporter, err = otlpmetricgrpc.New(dialCtx,
				otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
				otlpmetricgrpc.WithInsecure(),
			)
			if err != nil {
				return fmt.Errorf("failed to create OTLP exporter: %w", err)
			}
			log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

		case ExporterNone:
			log.Info("Metrics export disabled (exporter_type='none')")
			mp.initialized = true
			return nil

		default:
			return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
		}

		reader = sdkmetric.NewPeriodicReader(
			exporter,
			sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
		)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	if mp.reader == nil {
		otel.SetMeterProvider(mp.meterProvider)
	}

	mp.meter = mp.meterProvider.Meter("economy")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	mp.recording = true
	log.Info("Metrics provider initialized successfully")
	return nil
}

// createInstruments creates all metric instruments
func (mp *MetricsProvider) createInstruments() error {
	var err error

	mp.balanceTransactionsCounter, err = mp.meter.Int64Counter(
		BalanceTransactionsTotal,
		metric.WithDescription("Total number of ledger transactions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create balance transactions counter: %w", err)
	}

	mp.balanceVolumeCounter, err = mp.meter.Int64Counter(
		BalanceVolumeTotal,
		metric.WithDescription("Total currency moved by ledger transactions"),
		metric.WithUnit("{coin}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create balance volume counter: %w", err)
	}

	mp.boostsActivatedCounter, err = mp.meter.Int64Counter(
		DailyBoostsActivated,
		metric.WithDescription("Total number of daily boost activations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create boosts counter: %w", err)
	}

	// UpDownCounter for gauge-like behaviour
	mp.sessionsActiveGauge, err = mp.meter.Int64UpDownCounter(
		SessionsActive,
		metric.WithDescription("Current number of open wagering sessions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sessions active gauge: %w", err)
	}

	mp.sessionsSettledCounter, err = mp.meter.Int64Counter(
		SessionsSettledTotal,
		metric.WithDescription("Total number of settled wagering sessions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sessions settled counter: %w", err)
	}

	mp.sessionsPayoutCounter, err = mp.meter.Int64Counter(
		SessionsPayoutTotal,
		metric.WithDescription("Total winnings paid by settled sessions"),
		metric.WithUnit("{coin}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create sessions payout counter: %w", err)
	}

	mp.exchangesCounter, err = mp.meter.Int64Counter(
		ExchangesTotal,
		metric.WithDescription("Total number of purchases and gifts"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create exchanges counter: %w", err)
	}

	mp.natsMessagesPublishedCounter, err = mp.meter.Int64Counter(
		NATSMessagesPublishedTotal,
		metric.WithDescription("Total number of NATS messages published"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return fmt.Errorf("failed to create NATS messages published counter: %w", err)
	}

	return nil
}

// Shutdown flushes and stops the metrics provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.recording = false
	if mp.meterProvider != nil {
		return mp.meterProvider.Shutdown(ctx)
	}
	return nil
}

// RecordBalanceTransaction records a ledger write of the given kind
func (mp *MetricsProvider) RecordBalanceTransaction(kind string, amount int64) {
	if !mp.isEnabled() {
		return
	}

	ctx := context.Background()
	mp.balanceTransactionsCounter.Add(ctx, 1,
		metric.WithAttributes(attribute.String(LabelType, kind)),
	)

	direction := DirectionCredit
	if amount < 0 {
		direction = DirectionDebit
		amount = -amount
	}
	mp.balanceVolumeCounter.Add(ctx, amount,
		metric.WithAttributes(
			attribute.String(LabelType, kind),
			attribute.String(LabelDirection, direction),
		),
	)
}

// RecordDailyBoost records a boost activation or extension
func (mp *MetricsProvider) RecordDailyBoost() {
	if !mp.isEnabled() {
		return
	}
	mp.boostsActivatedCounter.Add(context.Background(), 1)
}

// UpdateActiveSessions moves the open session count by delta
func (mp *MetricsProvider) UpdateActiveSessions(gameType string, delta int64) {
	if !mp.isEnabled() {
		return
	}

	mp.sessionsActiveGauge.Add(context.Background(), delta,
		metric.WithAttributes(attribute.String(LabelGameType, gameType)),
	)
}

// RecordSettlement records a settled session and its payout
func (mp *MetricsProvider) RecordSettlement(gameType string, totalPayout int64) {
	if !mp.isEnabled() {
		return
	}

	attrs := metric.WithAttributes(attribute.String(LabelGameType, gameType))
	mp.sessionsSettledCounter.Add(context.Background(), 1, attrs)
	mp.sessionsPayoutCounter.Add(context.Background(), totalPayout, attrs)
}

// RecordExchange records a completed purchase or gift
func (mp *MetricsProvider) RecordExchange(method string) {
	if !mp.isEnabled() {
		return
	}

	mp.exchangesCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelMethod, method)),
	)
}

// RecordNATSMessagePublished records a NATS message being published
func (mp *MetricsProvider) RecordNATSMessagePublished(eventType string) {
	if !mp.isEnabled() {
		return
	}

	mp.natsMessagesPublishedCounter.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String(LabelEventType, eventType)),
	)
}

// isEnabled reports whether instruments exist and accept measurements
func (mp *MetricsProvider) isEnabled() bool {
	if mp == nil {
		return false
	}
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.recording
}
