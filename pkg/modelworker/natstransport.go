package modelworker

import (
	"context"
	"time"

	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/nats-io/nats.go"
)

// NatsTransport backs the model worker protocol with NATS request/reply:
// subject-scoped RequestMsgWithContext with a per-call timeout.
type NatsTransport struct {
	conn    *nats.Conn
	subject func(name string) string
	timeout time.Duration
}

// NewNatsTransport builds a transport whose subjects are namespaced under
// prefix, e.g. "worker.<worker_id>.infer", mirroring
// pubsub.GetRunnerQueue's "runner.<id>" naming convention.
func NewNatsTransport(conn *nats.Conn, prefix string, timeout time.Duration) *NatsTransport {
	return &NatsTransport{
		conn:    conn,
		subject: func(name string) string { return prefix + "." + name },
		timeout: timeout,
	}
}

func (t *NatsTransport) Request(ctx context.Context, subject string, payload []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	msg, err := t.conn.RequestMsgWithContext(ctx, &nats.Msg{Subject: t.subject(subject), Data: payload})
	if err != nil {
		return nil, corepipeerr.Wrap(corepipeerr.KindWorkerTransport, err, "nats request failed")
	}
	return msg.Data, nil
}
