package modelworker

import "context"

// Transport is the collaborator the protocol logic is agnostic to; wire
// format is out of scope here. A transport need only support
// request/reply over an opaque byte payload.
type Transport interface {
	Request(ctx context.Context, subject string, payload []byte) ([]byte, error)
}
