package observability

// Metric name prefixes
const (
	MetricPrefix = "economy"
)

// Metric names
const (
	// Ledger metrics
	BalanceTransactionsTotal = MetricPrefix + ".balance.transactions_total"
	BalanceVolumeTotal       = MetricPrefix + ".balance.volume_total"
	DailyBoostsActivated     = MetricPrefix + ".boost.activated_total"

	// Session metrics
	SessionsActive       = MetricPrefix + ".sessions.active"
	SessionsSettledTotal = MetricPrefix + ".sessions.settled_total"
	SessionsPayoutTotal  = MetricPrefix + ".sessions.payout_total"

	// Exchange metrics
	ExchangesTotal = MetricPrefix + ".exchanges.total"

	// NATS metrics
	NATSMessagesPublishedTotal = MetricPrefix + ".nats.messages_published_total"
)

// Label keys
const (
	LabelType      = "type"
	LabelEventType = "event_type"
	LabelGameType  = "game_type"
	LabelMethod    = "method"
	LabelDirection = "direction"
)

// Balance directions
const (
	DirectionCredit = "credit"
	DirectionDebit  = "debit"
)

// Exporter types
const (
	ExporterConsole = "console"
	ExporterOTLP    = "otlp"
	ExporterNone    = "none"
)
