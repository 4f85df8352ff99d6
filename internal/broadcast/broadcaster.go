package broadcast

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/jbweber/virtfleet/internal/hypervisor"
	"github.com/jbweber/virtfleet/internal/metrics"
)

// DefaultStream is the stream name change messages are published on.
const DefaultStream = "event"

// Publisher delivers an encoded message to the subscribers of stream.
// Publish must not block on slow subscribers.
type Publisher interface {
	Publish(stream string, data []byte) error
}

// Broadcaster fans changes out to publishers.
type Broadcaster struct {
	stream     string
	publishers []Publisher
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

// New creates a Broadcaster for stream. logger and m may be nil.
func New(stream string, logger *zap.Logger, m *metrics.Metrics, publishers ...Publisher) *Broadcaster {
	if stream == "" {
		stream = DefaultStream
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		stream:     stream,
		publishers: publishers,
		logger:     logger,
		metrics:    m,
	}
}

// Stream returns the stream name.
func (b *Broadcaster) Stream() string { return b.stream }

// OnChange publishes one change. It satisfies hypervisor.ChangeFunc.
func (b *Broadcaster) OnChange(c hypervisor.Change) {
	msg := NewMessage(c)
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("failed to encode change", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	for _, p := range b.publishers {
		if err := p.Publish(b.stream, data); err != nil {
			b.logger.Warn("publish failed",
				zap.String("type", msg.Type),
				zap.String("id", msg.Payload.ID),
				zap.Error(err))
		}
	}

	if b.metrics != nil {
		b.metrics.BroadcastMessages.WithLabelValues(msg.Type).Inc()
	}
	b.logger.Debug("change broadcast",
		zap.String("type", msg.Type),
		zap.String("id", msg.Payload.ID),
		zap.String("host_id", msg.Payload.HypervisorID))
}
