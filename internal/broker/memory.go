package broker

import (
	"context"
	"encoding/json"
	"sync"

	"processing-requests/internal/domain"
)

// Published is one message accepted by a MemoryPublisher.
type Published struct {
	Topic   string
	Message domain.WorkMessage
	Payload []byte
}

// MemoryPublisher keeps accepted messages in memory. It can be switched into
// a failing state to simulate an unreachable broker.
type MemoryPublisher struct {
	mu       sync.Mutex
	messages []Published
	failWith error
	attempts int
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Fail makes subsequent publishes return err wrapped with ErrUnavailable.
// A nil err restores normal operation.
func (m *MemoryPublisher) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

func (m *MemoryPublisher) Publish(ctx context.Context, topic string, msg domain.WorkMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.failWith != nil {
		return unavailable("memory publish", m.failWith)
	}
	if err := ctx.Err(); err != nil {
		return unavailable("publish", err)
	}
	data, err := encode(msg)
	if err != nil {
		return err
	}
	var decoded domain.WorkMessage
	if err := json.Unmarshal(data, &decoded); err != nil {
		return unavailable("memory publish", err)
	}
	m.messages = append(m.messages, Published{Topic: topic, Message: decoded, Payload: data})
	return nil
}

// Messages returns a copy of every accepted message in publish order.
func (m *MemoryPublisher) Messages() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Published(nil), m.messages...)
}

// Attempts counts Publish calls, including failed ones.
func (m *MemoryPublisher) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

func (m *MemoryPublisher) Close() error { return nil }

var _ domain.Publisher = (*MemoryPublisher)(nil)
