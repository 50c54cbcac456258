// Package broker carries message record changes between writers and the
// live-query hubs over NATS JetStream.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/johndosdos/friendlychat/internal/model"
)

// Publisher publishes record changes to the global room subject.
type Publisher struct {
	js jetstream.JetStream
}

func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// Publish sends change and returns its stream sequence. The change id plus
// kind is used as the JetStream message id only for removes; upserts of the
// same record are distinct events.
func (p *Publisher) Publish(ctx context.Context, change model.Change) (uint64, error) {
	if p == nil || p.js == nil {
		return 0, fmt.Errorf("internal/broker: jetstream interface is nil")
	}

	data, err := json.Marshal(change)
	if err != nil {
		return 0, fmt.Errorf("internal/broker: could not encode change to JSON: %w", err)
	}

	var opts []jetstream.PublishOpt
	if change.Kind == model.ChangeRemove {
		opts = append(opts, jetstream.WithMsgID("remove."+change.ID))
	}

	pubAck, err := p.js.Publish(ctx, SubjectMessages, data, opts...)
	if err != nil {
		return 0, fmt.Errorf("internal/broker: failed to publish to stream [%s]: %w", SubjectMessages, err)
	}

	return pubAck.Sequence, nil
}

// Subscribe starts an ephemeral consumer that delivers changes published from
// now on to recv, in stream order. It stops when ctx is cancelled.
func Subscribe(ctx context.Context, stream jetstream.Stream, recv chan<- model.Change) error {
	consumer, err := stream.OrderedConsumer(ctx, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{SubjectMessages},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("internal/broker: failed to create consumer: %w", err)
	}

	consumeHandler := func(msg jetstream.Msg) {
		var change model.Change
		if err := json.Unmarshal(msg.Data(), &change); err != nil {
			log.Printf("internal/broker: could not decode change: %v", err)
			return
		}

		select {
		case recv <- change:
		case <-ctx.Done():
		}
	}

	optErrHandler := jetstream.ConsumeErrHandler(func(_ jetstream.ConsumeContext, err error) {
		log.Printf("internal/broker: consumer error: %v", err)
	})

	consumeCtx, err := consumer.Consume(consumeHandler, optErrHandler)
	if err != nil {
		return fmt.Errorf("internal/broker: failed to start consuming changes: %w", err)
	}

	go func() {
		<-ctx.Done()
		consumeCtx.Drain()
	}()

	return nil
}

// StreamConfig is the stream the chat publishes into.
func StreamConfig() jetstream.StreamConfig {
	return jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectMessages},
		MaxBytes: 1 << 30, // 1GB max storage
	}
}
