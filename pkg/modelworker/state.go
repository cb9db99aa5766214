package modelworker

import "github.com/helixml/corepipe/pkg/corepipeerr"

// WorkerState is the C8 lifecycle: Starting -> Ready <-> Busy -> Stopping
// -> Terminated.
type WorkerState string

const (
	StateStarting   WorkerState = "starting"
	StateReady      WorkerState = "ready"
	StateBusy       WorkerState = "busy"
	StateStopping   WorkerState = "stopping"
	StateTerminated WorkerState = "terminated"
)

// allowedTransitions is the closed set of valid state moves; anything
// else is a protocol violation rather than a silently-accepted no-op.
var allowedTransitions = map[WorkerState]map[WorkerState]bool{
	StateStarting: {StateReady: true, StateTerminated: true},
	StateReady:    {StateBusy: true, StateStopping: true, StateTerminated: true},
	StateBusy:     {StateReady: true, StateStopping: true, StateTerminated: true},
	StateStopping: {StateTerminated: true},
	StateTerminated: {},
}

func validateTransition(from, to WorkerState) error {
	if allowedTransitions[from][to] {
		return nil
	}
	return corepipeerr.New(corepipeerr.KindWorkerTransport, "invalid worker state transition "+string(from)+" -> "+string(to))
}
