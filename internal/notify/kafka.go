// README: Kafka publisher for trip/request transition events.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"unipool/internal/modules/trip"
)

const publishTimeout = 2 * time.Second

// KafkaNotifier broadcasts transitions for downstream push/UI consumers.
// Publishing is fire-and-forget on a background goroutine; the engine's
// transactions never wait on the broker.
type KafkaNotifier struct {
	writer *kafka.Writer
	log    *logrus.Logger
}

func NewKafkaNotifier(brokers []string, topic string, log *logrus.Logger) *KafkaNotifier {
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	})
	return &KafkaNotifier{writer: w, log: log}
}

type eventPayload struct {
	TripID     string `json:"trip_id"`
	RequestID  string `json:"request_id,omitempty"`
	FromStatus string `json:"from_status,omitempty"`
	ToStatus   string `json:"to_status"`
	ActorType  string `json:"actor_type"`
	ActorID    string `json:"actor_id,omitempty"`
	At         string `json:"at"`
}

func (n *KafkaNotifier) Publish(_ context.Context, e trip.Event) {
	p := eventPayload{
		TripID:     string(e.TripID),
		FromStatus: e.FromStatus,
		ToStatus:   e.ToStatus,
		ActorType:  e.ActorType,
		At:         e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.RequestID != nil {
		p.RequestID = string(*e.RequestID)
	}
	if e.ActorID != nil {
		p.ActorID = string(*e.ActorID)
	}
	b, _ := json.Marshal(p)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		err := n.writer.WriteMessages(ctx, kafka.Message{Key: []byte(p.TripID), Value: b})
		if err != nil {
			n.log.WithError(err).WithField("trip_id", p.TripID).Warn("event publish failed")
		}
	}()
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}
