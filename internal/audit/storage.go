package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"
)

// MultiStorage пишет пачку во все приёмники; ошибки собираются, а не обрывают запись.
type MultiStorage []Storage

func (m MultiStorage) WriteBatch(ctx context.Context, events []AuditEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteBatch(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MessageWriter: часть *kafka.Writer, нужная приёмнику.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink публикует события аудита в топик для SIEM. Ключ сообщения: username,
// чтобы события одного пользователя попадали в одну партицию.
type KafkaSink struct {
	w MessageWriter
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}}
}

func NewKafkaSinkWithWriter(w MessageWriter) *KafkaSink {
	return &KafkaSink{w: w}
}

func (k *KafkaSink) WriteBatch(ctx context.Context, events []AuditEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("kafka: json.Marshal failed: %w", err)
		}
		msgs = append(msgs, kafka.Message{Key: []byte(e.Username), Value: data, Time: e.Timestamp})
	}
	if err := k.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka: write audit batch: %w", err)
	}
	return nil
}

func (k *KafkaSink) Close() error { return k.w.Close() }
