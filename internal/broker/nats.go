package broker

import (
	"context"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"processing-requests/internal/domain"
	"processing-requests/internal/infra"
)

// NATSOptions configures the NATS publisher.
type NATSOptions struct {
	URL           string
	SubjectPrefix string
	FlushTimeout  time.Duration
	Logger        *infra.Logger
}

// NATSPublisher publishes work messages on core NATS subjects named
// <prefix>.<type>.
type NATSPublisher struct {
	nc           *nats.Conn
	prefix       string
	flushTimeout time.Duration
	logger       *infra.Logger
}

// NewNATSPublisher connects to the server at opts.URL.
func NewNATSPublisher(opts NATSOptions) (*NATSPublisher, error) {
	nc, err := nats.Connect(opts.URL,
		nats.Name("processing-requests"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, unavailable("connect nats", err)
	}
	flush := opts.FlushTimeout
	if flush <= 0 {
		flush = 5 * time.Second
	}
	return &NATSPublisher{
		nc:           nc,
		prefix:       strings.Trim(opts.SubjectPrefix, "."),
		flushTimeout: flush,
		logger:       opts.Logger,
	}, nil
}

// Subject returns the subject a message of the given topic is published on.
func (n *NATSPublisher) Subject(topic string) string {
	return subjectFor(n.prefix, topic)
}

func subjectFor(prefix, topic string) string {
	if prefix == "" {
		return topic
	}
	return prefix + "." + topic
}

// Publish sends msg and flushes, so a nil error means the server received it.
func (n *NATSPublisher) Publish(ctx context.Context, topic string, msg domain.WorkMessage) error {
	if err := ctx.Err(); err != nil {
		return unavailable("publish", err)
	}
	data, err := encode(msg)
	if err != nil {
		return err
	}
	subject := n.Subject(topic)
	if err := n.nc.Publish(subject, data); err != nil {
		return unavailable("nats publish", err)
	}
	timeout := n.flushTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if err := n.nc.FlushTimeout(timeout); err != nil {
		return unavailable("nats flush", err)
	}
	if n.logger != nil {
		n.logger.Debug().
			Str("subject", subject).
			Str("processing_request_id", msg.ProcessingRequestID).
			Msg("work message published")
	}
	return nil
}

func (n *NATSPublisher) Close() error {
	if n.nc == nil {
		return nil
	}
	return n.nc.Drain()
}

var _ domain.Publisher = (*NATSPublisher)(nil)
