package source

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/inferrelay/errors"
)

// fakeMsg implements jetstream.Msg for token tests
type fakeMsg struct {
	data       []byte
	subject    string
	deliveries uint64

	acks    int
	naks    int
	terms   int
	lastNak time.Duration
}

func (f *fakeMsg) Data() []byte         { return f.data }
func (f *fakeMsg) Headers() nats.Header { return nil }
func (f *fakeMsg) Subject() string      { return f.subject }
func (f *fakeMsg) Reply() string        { return "" }

func (f *fakeMsg) Metadata() (*jetstream.MsgMetadata, error) {
	if f.deliveries == 0 {
		return nil, assert.AnError
	}
	return &jetstream.MsgMetadata{NumDelivered: f.deliveries}, nil
}

func (f *fakeMsg) Ack() error { f.acks++; return nil }

func (f *fakeMsg) DoubleAck(context.Context) error { f.acks++; return nil }

func (f *fakeMsg) Nak() error { f.naks++; return nil }

func (f *fakeMsg) NakWithDelay(delay time.Duration) error {
	f.naks++
	f.lastNak = delay
	return nil
}

func (f *fakeMsg) InProgress() error { return nil }

func (f *fakeMsg) Term() error { f.terms++; return nil }

func (f *fakeMsg) TermWithReason(string) error { f.terms++; return nil }

func TestParseNotification(t *testing.T) {
	n, err := parseNotification([]byte(`{"ref":"studies/1/instance-1","content_type":"application/dicom"}`))
	require.NoError(t, err)
	assert.Equal(t, "studies/1/instance-1", n.Ref)
	assert.Equal(t, "application/dicom", n.ContentType)
}

func TestParseNotification_Malformed(t *testing.T) {
	_, err := parseNotification([]byte("not json"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	_, err = parseNotification([]byte(`{"stored_at":"2026-01-01T00:00:00Z"}`))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestAckToken_AckIdempotent(t *testing.T) {
	msg := &fakeMsg{deliveries: 1}
	tok := newAckToken(msg)

	require.NoError(t, tok.Ack())
	require.NoError(t, tok.Ack())
	assert.Equal(t, 1, msg.acks)
}

func TestAckToken_NakAfterAckIsNoop(t *testing.T) {
	msg := &fakeMsg{deliveries: 1}
	tok := newAckToken(msg)

	require.NoError(t, tok.Ack())
	require.NoError(t, tok.Nak(time.Second))
	assert.Zero(t, msg.naks)
}

func TestAckToken_NakDelay(t *testing.T) {
	msg := &fakeMsg{deliveries: 1}
	tok := newAckToken(msg)

	require.NoError(t, tok.Nak(0))
	assert.Equal(t, 1, msg.naks)
	assert.Zero(t, msg.lastNak)

	require.NoError(t, tok.Nak(5*time.Second))
	assert.Equal(t, 2, msg.naks)
	assert.Equal(t, 5*time.Second, msg.lastNak)
}

func TestAckToken_Deliveries(t *testing.T) {
	tok := newAckToken(&fakeMsg{deliveries: 3})
	assert.Equal(t, uint64(3), tok.Deliveries())

	// Metadata errors fall back to 1
	tok = newAckToken(&fakeMsg{})
	assert.Equal(t, uint64(1), tok.Deliveries())
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	missing := cfg
	missing.Stream = ""
	assert.Error(t, missing.Validate())

	missing = cfg
	missing.Subject = ""
	assert.Error(t, missing.Validate())

	missing = cfg
	missing.Durable = ""
	assert.Error(t, missing.Validate())
}

func TestNewJetStreamSource_Defaults(t *testing.T) {
	src := NewJetStreamSource(Deps{Config: Config{
		Stream:  "EVENTS",
		Subject: "artifacts.stored",
		Durable: "relay",
	}})

	assert.Equal(t, 16, src.config.BatchSize)
	assert.Equal(t, 5*time.Second, src.config.FetchTimeout)
	assert.Equal(t, 64, cap(src.events))
}

func TestJetStreamSource_InitializeRequiresClient(t *testing.T) {
	src := NewJetStreamSource(Deps{Config: DefaultConfig()})
	err := src.Initialize()
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestJetStreamSource_Dispatch(t *testing.T) {
	src := NewJetStreamSource(Deps{Config: DefaultConfig()})
	src.shutdown = make(chan struct{})

	msg := &fakeMsg{data: []byte(`{"ref":"studies/2/instance-9"}`), deliveries: 1}
	src.dispatch(context.Background(), msg)

	select {
	case ev := <-src.Events():
		assert.Equal(t, "studies/2/instance-9", ev.Ref)
		assert.False(t, ev.Redelivered())
	default:
		t.Fatal("expected an event")
	}
	assert.Equal(t, int64(1), src.Received())
}

func TestJetStreamSource_DispatchMalformed(t *testing.T) {
	src := NewJetStreamSource(Deps{Config: DefaultConfig()})
	src.shutdown = make(chan struct{})

	msg := &fakeMsg{data: []byte("garbage"), deliveries: 1}
	src.dispatch(context.Background(), msg)

	select {
	case <-src.Events():
		t.Fatal("malformed notification must not become an event")
	default:
	}
	assert.Equal(t, 1, msg.terms)
	assert.Equal(t, int64(1), src.malformed.Load())
}
