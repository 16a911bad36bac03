package kafka

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type TopicSpec struct {
	Name              string
	Partitions        int
	ReplicationFactor int
}

// EnsureTopics creates missing topics through the cluster controller.
// Existing topics are left as they are.
func EnsureTopics(ctx context.Context, broker string, topics []TopicSpec, l *zap.Logger) error {
	var dialer kafka.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("failed to dial kafka broker %s: %w", broker, err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to find kafka controller: %w", err)
	}

	controllerConn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("failed to dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	configs := make([]kafka.TopicConfig, 0, len(topics))
	for _, t := range topics {
		configs = append(configs, kafka.TopicConfig{
			Topic:             t.Name,
			NumPartitions:     t.Partitions,
			ReplicationFactor: t.ReplicationFactor,
		})
	}
	if err := controllerConn.CreateTopics(configs...); err != nil {
		return fmt.Errorf("failed to create kafka topics: %w", err)
	}

	for _, t := range topics {
		l.Info("Kafka topic ready", zap.String("topic", t.Name), zap.Int("partitions", t.Partitions))
	}
	return nil
}
