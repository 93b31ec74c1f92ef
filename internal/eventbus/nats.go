package eventbus

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSBus publishes events to a NATS subject for deployments that run the
// Queen out-of-process from its UI (config key phases.eventTransport=nats).
// It fans out locally too, so in-process subscribers registered via
// Subscribe still see every event synchronously.
type NATSBus struct {
	local   *InProcess
	conn    *nats.Conn
	subject string
}

// NewNATSBus wraps an existing NATS connection, publishing every event under
// subjectPrefix + "." + event name in addition to local fan-out.
func NewNATSBus(conn *nats.Conn, subjectPrefix string) *NATSBus {
	return &NATSBus{
		local:   NewInProcess(),
		conn:    conn,
		subject: subjectPrefix,
	}
}

// Publish delivers ev to local subscribers and publishes it to NATS.
// A NATS publish failure does not prevent local delivery; it is swallowed
// the way the teacher's e2e NATS client treats publish as best-effort.
func (b *NATSBus) Publish(ev Event) {
	b.local.Publish(ev)

	data, err := Marshal(ev)
	if err != nil {
		return
	}
	subject := fmt.Sprintf("%s.%s", b.subject, ev.Name)
	_ = b.conn.Publish(subject, data)
}

// Subscribe registers a local handler; see InProcess.Subscribe.
func (b *NATSBus) Subscribe(fn func(Event)) func() {
	return b.local.Subscribe(fn)
}
