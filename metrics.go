package authflow

import internalmetrics "github.com/MrEthical07/authflow/internal/metrics"

// MetricID identifies one flow counter or histogram.
type MetricID = internalmetrics.MetricID

// Metrics holds lock-free flow counters. A nil *Metrics is a valid disabled instance.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

const (
	MetricFlowStarted           = internalmetrics.MetricFlowStarted
	MetricFlowNotStarted        = internalmetrics.MetricFlowNotStarted
	MetricFlowSucceeded         = internalmetrics.MetricFlowSucceeded
	MetricFlowCanceled          = internalmetrics.MetricFlowCanceled
	MetricFlowDismissed         = internalmetrics.MetricFlowDismissed
	MetricVariantSignin         = internalmetrics.MetricVariantSignin
	MetricVariantSignup         = internalmetrics.MetricVariantSignup
	MetricStatusLookupFailure   = internalmetrics.MetricStatusLookupFailure
	MetricDispositionAbort      = internalmetrics.MetricDispositionAbort
	MetricDispositionError      = internalmetrics.MetricDispositionError
	MetricCoordinatorSpawned    = internalmetrics.MetricCoordinatorSpawned
	MetricRouteReceived         = internalmetrics.MetricRouteReceived
	MetricRouteHandledByChild   = internalmetrics.MetricRouteHandledByChild
	MetricRouteResetByChild     = internalmetrics.MetricRouteResetByChild
	MetricCodeValidationSuccess = internalmetrics.MetricCodeValidationSuccess
	MetricCodeValidationFailure = internalmetrics.MetricCodeValidationFailure
	MetricValidationRejected    = internalmetrics.MetricValidationRejected
	MetricTermsRefreshFailure   = internalmetrics.MetricTermsRefreshFailure
	MetricFlowDuration          = internalmetrics.MetricFlowDuration
	MetricStatusLookupLatency   = internalmetrics.MetricStatusLookupLatency
)

// NewMetrics builds a metrics registry from cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}

func outputMetric(kind OutputKind) MetricID {
	switch kind {
	case OutputSuccess:
		return MetricFlowSucceeded
	case OutputCancel:
		return MetricFlowCanceled
	case OutputOnlyDismiss:
		return MetricFlowDismissed
	default:
		return MetricFlowNotStarted
	}
}
