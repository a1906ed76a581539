package authflow

import "context"

type flowIDContextKey struct{}

// WithFlowID attaches a flow identifier to ctx. Contexts handed to collaborators
// by a running flow always carry one.
func WithFlowID(ctx context.Context, flowID string) context.Context {
	return context.WithValue(ctx, flowIDContextKey{}, flowID)
}

// FlowIDFromContext returns the flow identifier attached by [WithFlowID], or "".
func FlowIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(flowIDContextKey{}).(string)
	return id
}
