package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"processing-requests/internal/domain"
)

func sampleMessage() domain.WorkMessage {
	return domain.WorkMessage{
		ProcessingRequestID: "0d9b3b5e-8c1e-4f4e-9a55-0c4f5a4a1f10",
		UserID:              "6f1c4b43-7e38-4f02-a2a4-1f1d2c0b9e21",
		ProjectID:           "b1f5a0a4-3c64-4b7c-8d8a-2b4f86c0d7a2",
		InputAssetsIDs:      []string{"3c2a1f00-1e4b-4a0a-9f3e-6f2d5c8b7a11"},
		Credential:          "token-1",
	}
}

func TestEncodeEmitsEmptyListsAndExactFields(t *testing.T) {
	data, err := encode(sampleMessage())
	if err != nil {
		t.Fatalf("encode error: %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []string{"processing_request_id", "user_id", "project_id", "input_assets_ids", "output_assets_ids", "credential"}
	if len(fields) != len(want) {
		t.Fatalf("got %d fields want %d: %v", len(fields), len(want), fields)
	}
	for _, key := range want {
		if _, ok := fields[key]; !ok {
			t.Fatalf("missing field %q", key)
		}
	}
	if list, ok := fields["output_assets_ids"].([]any); !ok || len(list) != 0 {
		t.Fatalf("output_assets_ids should be an empty list, got %#v", fields["output_assets_ids"])
	}
}

func TestKafkaPublishUsesTopicAndKey(t *testing.T) {
	producer := mocks.NewSyncProducer(t, newKafkaConfig(KafkaOptions{}))
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "transcode" {
			return fmt.Errorf("got topic %q want %q", msg.Topic, "transcode")
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != sampleMessage().ProcessingRequestID {
			return fmt.Errorf("got key %q", key)
		}
		return nil
	})

	pub := newKafkaPublisher(producer, nil)
	if err := pub.Publish(context.Background(), "transcode", sampleMessage()); err != nil {
		t.Fatalf("Publish error: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}

func TestKafkaPublishFailureWrapsUnavailable(t *testing.T) {
	producer := mocks.NewSyncProducer(t, newKafkaConfig(KafkaOptions{}))
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := newKafkaPublisher(producer, nil)
	err := pub.Publish(context.Background(), "transcode", sampleMessage())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
	_ = pub.Close()
}

func TestKafkaConfigWaitsForAllReplicas(t *testing.T) {
	cfg := newKafkaConfig(KafkaOptions{ClientID: "svc"})
	if cfg.Producer.RequiredAcks != sarama.WaitForAll {
		t.Fatalf("got acks %v want WaitForAll", cfg.Producer.RequiredAcks)
	}
	if !cfg.Producer.Return.Successes {
		t.Fatal("sync producer requires Return.Successes")
	}
	if cfg.ClientID != "svc" {
		t.Fatalf("got client id %q", cfg.ClientID)
	}
}

func TestSubjectFor(t *testing.T) {
	if got := subjectFor("processing_requests", "transcode"); got != "processing_requests.transcode" {
		t.Fatalf("got %q", got)
	}
	if got := subjectFor("", "transcode"); got != "transcode" {
		t.Fatalf("got %q", got)
	}
}

func TestMemoryPublisher(t *testing.T) {
	pub := NewMemoryPublisher()
	ctx := context.Background()
	if err := pub.Publish(ctx, "transcode", sampleMessage()); err != nil {
		t.Fatalf("Publish error: %v", err)
	}

	pub.Fail(errors.New("down"))
	if err := pub.Publish(ctx, "transcode", sampleMessage()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	msgs := pub.Messages()
	if len(msgs) != 1 || pub.Attempts() != 2 {
		t.Fatalf("got %d messages and %d attempts", len(msgs), pub.Attempts())
	}
	if msgs[0].Topic != "transcode" || msgs[0].Message.Credential != "token-1" {
		t.Fatalf("unexpected message: %#v", msgs[0])
	}
}
