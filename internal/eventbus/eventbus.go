// Package eventbus optionally mirrors job-lifecycle transitions onto an
// AMQP queue, publishing a typed JobEvent to one well-known queue name.
package eventbus

import (
	"encoding/json"
	"time"

	"github.com/streadway/amqp"

	"github.com/fullselfcoding/fsc-server/internal/domain"
)

const queueName = "fsc.job-events"

// JobEvent is the payload the orchestrator mirrors onto the queue each
// time it persists a JobState, progress-only updates included.
type JobEvent struct {
	JobID     string           `json:"jobId"`
	Status    domain.JobStatus `json:"status"`
	Timestamp time.Time        `json:"timestamp"`
}

// Publisher publishes JobEvents to one AMQP queue. A nil *Publisher is
// valid and Publish becomes a no-op — the event bus is optional, and
// jobs run fine without a broker configured.
type Publisher struct {
	url string
}

// New returns a Publisher bound to url, or nil when url is empty.
func New(url string) *Publisher {
	if url == "" {
		return nil
	}
	return &Publisher{url: url}
}

// Publish dials, declares the queue, and publishes one JobEvent. Mirrors
// AmqpQueue.Produce's dial-per-call shape; errors are returned rather
// than swallowed so the caller can decide whether a broker outage
// should be logged or ignored.
func (p *Publisher) Publish(event JobEvent) error {
	if p == nil {
		return nil
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return &domain.InfraError{Op: "amqp.Dial", Err: err}
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return &domain.InfraError{Op: "Channel", Err: err}
	}
	defer ch.Close()

	queue, err := ch.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return &domain.InfraError{Op: "QueueDeclare", Err: err}
	}

	body, err := json.Marshal(event)
	if err != nil {
		return &domain.InfraError{Op: "Marshal", Err: err}
	}

	err = ch.Publish("", queue.Name, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
	if err != nil {
		return &domain.InfraError{Op: "Publish", Err: err}
	}
	return nil
}
