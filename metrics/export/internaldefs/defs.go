package internaldefs

import (
	"strconv"
	"strings"

	"github.com/MrEthical07/authflow"
	internalmetrics "github.com/MrEthical07/authflow/internal/metrics"
)

// BucketCount is the number of buckets per histogram, +Inf included.
const BucketCount = 8

type CounterDef struct {
	ID   authflow.MetricID
	Name string
	Help string
}

// HistogramDef names a histogram and carries its finite upper bounds in
// seconds.
type HistogramDef struct {
	ID     authflow.MetricID
	Name   string
	Help   string
	Bounds [BucketCount - 1]float64
}

var CounterDefs = []CounterDef{
	{ID: authflow.MetricFlowStarted, Name: "authflow_flow_started_total", Help: "Flows that occupied the active slot."},
	{ID: authflow.MetricFlowNotStarted, Name: "authflow_flow_not_started_total", Help: "Start requests answered with NotStarted."},
	{ID: authflow.MetricFlowSucceeded, Name: "authflow_flow_succeeded_total", Help: "Flows completed with a signed-in user."},
	{ID: authflow.MetricFlowCanceled, Name: "authflow_flow_canceled_total", Help: "Flows canceled by the user."},
	{ID: authflow.MetricFlowDismissed, Name: "authflow_flow_dismissed_total", Help: "Flows dismissed by a delegate abort."},
	{ID: authflow.MetricVariantSignin, Name: "authflow_variant_signin_total", Help: "Status lookups resolving to sign in."},
	{ID: authflow.MetricVariantSignup, Name: "authflow_variant_signup_total", Help: "Status lookups resolving to sign up."},
	{ID: authflow.MetricStatusLookupFailure, Name: "authflow_status_lookup_failure_total", Help: "Failed identifier status lookups."},
	{ID: authflow.MetricDispositionAbort, Name: "authflow_disposition_abort_total", Help: "Delegate aborts before presenting a variant."},
	{ID: authflow.MetricDispositionError, Name: "authflow_disposition_error_total", Help: "Delegate errors shown before presenting a variant."},
	{ID: authflow.MetricCoordinatorSpawned, Name: "authflow_coordinator_spawned_total", Help: "Authentication coordinators spawned."},
	{ID: authflow.MetricRouteReceived, Name: "authflow_route_received_total", Help: "Deep-link routes delivered to an active flow."},
	{ID: authflow.MetricRouteHandledByChild, Name: "authflow_route_handled_by_child_total", Help: "Routes absorbed by the active coordinator."},
	{ID: authflow.MetricRouteResetByChild, Name: "authflow_route_reset_by_child_total", Help: "Routes that made the active coordinator request a reset."},
	{ID: authflow.MetricCodeValidationSuccess, Name: "authflow_code_validation_success_total", Help: "Successful deep-link code validations."},
	{ID: authflow.MetricCodeValidationFailure, Name: "authflow_code_validation_failure_total", Help: "Failed deep-link code validations."},
	{ID: authflow.MetricValidationRejected, Name: "authflow_validation_rejected_total", Help: "Submissions rejected by local validation."},
	{ID: authflow.MetricTermsRefreshFailure, Name: "authflow_terms_refresh_failure_total", Help: "Failed post-sign-in terms refreshes."},
}

var HistogramDefs = []HistogramDef{
	{ID: authflow.MetricFlowDuration, Name: "authflow_flow_duration_seconds", Help: "Time from flow start to completion.", Bounds: boundsOf(authflow.MetricFlowDuration)},
	{ID: authflow.MetricStatusLookupLatency, Name: "authflow_status_lookup_latency_seconds", Help: "Identifier status lookup latency.", Bounds: boundsOf(authflow.MetricStatusLookupLatency)},
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const (
	AuditDroppedName = "authflow_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

func boundsOf(id authflow.MetricID) [BucketCount - 1]float64 {
	var out [BucketCount - 1]float64
	for i, d := range internalmetrics.Bounds(id) {
		out[i] = d.Seconds()
	}
	return out
}

// BoundLabel renders a bound as a Prometheus le label value.
func BoundLabel(b float64) string {
	return strconv.FormatFloat(b, 'g', -1, 64)
}

// BoundSuffix renders a bound for use inside an instrument name.
func BoundSuffix(b float64) string {
	return strings.ReplaceAll(BoundLabel(b), ".", "_")
}

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
