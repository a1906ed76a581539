package authflow

import "github.com/MrEthical07/authflow/deeplink"

// childFlowAdapter owns the one live coordinator of an orchestrator. It is
// destroyed on the coordinator's first terminal output and ignores anything the
// coordinator emits afterwards.
type childFlowAdapter struct {
	coordinator AuthCoordinator
	authType    AuthenticationType
	destroyed   bool
}

func newChildFlowAdapter(
	coordinator AuthCoordinator,
	authType AuthenticationType,
	react func(*childFlowAdapter, AuthCoordinatorOutput),
) *childFlowAdapter {
	a := &childFlowAdapter{coordinator: coordinator, authType: authType}
	coordinator.OnOutput(func(out AuthCoordinatorOutput) {
		if a.destroyed {
			return
		}
		react(a, out)
	})
	return a
}

func (a *childFlowAdapter) start() {
	a.coordinator.Start()
}

func (a *childFlowAdapter) handle(action Action) error {
	if a == nil || a.destroyed {
		return ErrActionNotSupported
	}
	return a.coordinator.Handle(action)
}

// attemptToPropagateRouteToChild lets the coordinator decide whether it
// recognizes route. A destroyed or missing child cannot handle anything.
func (a *childFlowAdapter) attemptToPropagateRouteToChild(route deeplink.Route) RouteHandleResult {
	if a == nil || a.destroyed {
		return RouteCannotHandle
	}
	return a.coordinator.HandleRoute(route)
}

func (a *childFlowAdapter) destroy() {
	if a == nil || a.destroyed {
		return
	}
	a.destroyed = true
	a.coordinator.Stop()
}

// keepsChild reports whether the orchestrator keeps the child after out.
func keepsChild(out AuthCoordinatorOutput) bool {
	return out.Kind == CoordinatorError
}
