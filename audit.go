package authflow

import (
	"context"
	"io"

	internalaudit "github.com/MrEthical07/authflow/internal/audit"
	"go.uber.org/zap"
)

// AuditEvent is one flow lifecycle record.
type AuditEvent = internalaudit.Event

// AuditSink receives audit events from the host's dispatcher.
type AuditSink = internalaudit.Sink

type NoOpSink = internalaudit.NoOpSink
type ChannelSink = internalaudit.ChannelSink
type JSONWriterSink = internalaudit.JSONWriterSink
type ZapSink = internalaudit.ZapSink

func NewChannelSink(buffer int) *ChannelSink { return internalaudit.NewChannelSink(buffer) }

func NewJSONWriterSink(w io.Writer) *JSONWriterSink { return internalaudit.NewJSONWriterSink(w) }

func NewZapSink(logger *zap.Logger) *ZapSink { return internalaudit.NewZapSink(logger) }

const (
	auditFlowStarted        = "flow_started"
	auditFlowFinished       = "flow_finished"
	auditVariantResolved    = "variant_resolved"
	auditStatusLookupFailed = "status_lookup_failed"
	auditRouteReceived      = "route_received"
	auditCodeValidated      = "code_validated"
	auditLaunchHandled      = "launch_handled"
)

func (h *Host) emitAudit(ctx context.Context, event AuditEvent) {
	if h.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = h.now().UTC()
	}
	h.audit.Emit(ctx, event)
}

func (o *Orchestrator) audit(eventType string, success bool, err error, metadata map[string]string) {
	event := AuditEvent{
		EventType:  eventType,
		FlowID:     o.id,
		Identifier: o.maskedIdentifier(),
		Success:    success,
		Metadata:   metadata,
	}
	if o.resolved {
		event.Variant = o.variant.String()
	}
	if err != nil {
		event.Error = err.Error()
	}
	o.host.emitAudit(context.WithoutCancel(o.ctx), event)
}
