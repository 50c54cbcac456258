package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johndosdos/friendlychat/internal/model"
)

// fakeJetStream implements Publish only; any other call panics.
type fakeJetStream struct {
	jetstream.JetStream
	subject string
	data    []byte
	opts    int
	err     error
}

func (f *fakeJetStream) Publish(_ context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.subject = subject
	f.data = data
	f.opts = len(opts)
	return &jetstream.PubAck{Stream: StreamName, Sequence: 7}, nil
}

func TestPublish(t *testing.T) {
	ctx := context.Background()

	t.Run("upsert", func(t *testing.T) {
		js := &fakeJetStream{}
		p := NewPublisher(js)

		seq, err := p.Publish(ctx, model.Upsert(model.Message{ID: "a", Text: "hi"}))
		require.NoError(t, err)
		assert.Equal(t, uint64(7), seq)
		assert.Equal(t, SubjectMessages, js.subject)
		assert.Zero(t, js.opts)

		var got model.Change
		require.NoError(t, json.Unmarshal(js.data, &got))
		assert.Equal(t, model.ChangeUpsert, got.Kind)
		require.NotNil(t, got.Message)
		assert.Equal(t, "hi", got.Message.Text)
	})

	t.Run("remove_is_deduplicated", func(t *testing.T) {
		js := &fakeJetStream{}
		_, err := NewPublisher(js).Publish(ctx, model.Remove("a"))
		require.NoError(t, err)
		assert.Equal(t, 1, js.opts)
	})

	t.Run("publish_error", func(t *testing.T) {
		js := &fakeJetStream{err: errors.New("no responders")}
		_, err := NewPublisher(js).Publish(ctx, model.Remove("a"))
		assert.Error(t, err)
	})

	t.Run("nil_publisher", func(t *testing.T) {
		var p *Publisher
		_, err := p.Publish(ctx, model.Remove("a"))
		assert.Error(t, err)
	})
}
