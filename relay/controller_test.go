package relay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/inferrelay/errors"
	"github.com/c360/inferrelay/event"
	"github.com/c360/inferrelay/sink"
)

// trackingToken records settlement calls
type trackingToken struct {
	mu         sync.Mutex
	acks       int
	naks       int
	nakDelay   time.Duration
	deliveries uint64
}

func (t *trackingToken) Ack() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.acks++
	return nil
}

func (t *trackingToken) Nak(delay time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.naks++
	t.nakDelay = delay
	return nil
}

func (t *trackingToken) Deliveries() uint64 {
	if t.deliveries == 0 {
		return 1
	}
	return t.deliveries
}

func (t *trackingToken) counts() (acks, naks int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.acks, t.naks
}

// fake pipeline stages

type fakeFetcher struct {
	err     error
	failRef string
	calls   atomic.Int32
}

func (f *fakeFetcher) Fetch(_ context.Context, ref string) (event.Artifact, error) {
	f.calls.Add(1)
	if f.err != nil && (f.failRef == "" || f.failRef == ref) {
		return event.Artifact{}, f.err
	}
	return event.Artifact{Ref: ref, Data: []byte("payload")}, nil
}

type fakePredictor struct {
	err error
}

func (p *fakePredictor) Predict(_ context.Context, artifact event.Artifact) (event.PredictionResult, error) {
	if p.err != nil {
		return event.PredictionResult{}, p.err
	}
	return event.PredictionResult{
		ArtifactRef:  artifact.Ref,
		Label:        "benign",
		Confidence:   0.8,
		ModelVersion: "m1",
	}, nil
}

type fakePackager struct {
	storeErr error
	mu       sync.Mutex
	stored   []event.ResultRecord
}

func (p *fakePackager) Package(result event.PredictionResult) (event.ResultRecord, error) {
	return event.ResultRecord{
		Key:         event.ResultKey("results", event.RelationInference, result.ArtifactRef),
		ArtifactRef: result.ArtifactRef,
		Relation:    event.RelationInference,
		Result:      result,
		CreatedAt:   time.Now(),
	}, nil
}

func (p *fakePackager) Store(_ context.Context, record event.ResultRecord) error {
	if p.storeErr != nil {
		return p.storeErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stored = append(p.stored, record)
	return nil
}

func (p *fakePackager) storedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stored)
}

type captureSink struct {
	mu      sync.Mutex
	reports []sink.Report
}

func (s *captureSink) Report(_ context.Context, r sink.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return nil
}

func (s *captureSink) all() []sink.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]sink.Report, len(s.reports))
	copy(out, s.reports)
	return out
}

type fixture struct {
	controller *Controller
	fetcher    *fakeFetcher
	predictor  *fakePredictor
	packager   *fakePackager
	sink       *captureSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		fetcher:   &fakeFetcher{},
		predictor: &fakePredictor{},
		packager:  &fakePackager{},
		sink:      &captureSink{},
	}

	events := make(chan event.Event)
	controller, err := NewController(Deps{
		Config: Config{
			Workers:      2,
			QueueSize:    16,
			EventTimeout: 5 * time.Second,
			NakDelay:     10 * time.Millisecond,
			NakMaxDelay:  time.Second,
		},
		Events:    events,
		Fetcher:   f.fetcher,
		Predictor: f.predictor,
		Packager:  f.packager,
		Sink:      f.sink,
	})
	require.NoError(t, err)
	f.controller = controller
	return f
}

func TestNewController_RequiresStages(t *testing.T) {
	events := make(chan event.Event)

	_, err := NewController(Deps{Events: events})
	assert.Error(t, err)

	_, err = NewController(Deps{
		Fetcher:   &fakeFetcher{},
		Predictor: &fakePredictor{},
		Packager:  &fakePackager{},
	})
	assert.Error(t, err)
}

func TestProcess_HappyPath(t *testing.T) {
	f := newFixture(t)
	tok := &trackingToken{}

	err := f.controller.process(context.Background(), event.New("studies/1/instance-1", tok))
	require.NoError(t, err)

	acks, naks := tok.counts()
	assert.Equal(t, 1, acks)
	assert.Zero(t, naks)
	assert.Equal(t, 1, f.packager.storedCount())
	assert.Empty(t, f.sink.all())
}

func TestProcess_ArtifactNotFound(t *testing.T) {
	f := newFixture(t)
	f.fetcher.err = fmt.Errorf("%w: studies/9/gone", errors.ErrArtifactNotFound)
	tok := &trackingToken{deliveries: 2}

	err := f.controller.process(context.Background(), event.New("studies/9/gone", tok))
	require.Error(t, err)

	// FAILED: reported, left unacknowledged, nothing stored
	acks, naks := tok.counts()
	assert.Zero(t, acks)
	assert.Zero(t, naks)
	assert.Zero(t, f.packager.storedCount())

	reports := f.sink.all()
	require.Len(t, reports, 1)
	assert.Equal(t, "fetching", reports[0].Stage)
	assert.Equal(t, "not_found", reports[0].Kind)
	assert.Equal(t, "studies/9/gone", reports[0].Ref)
	assert.Equal(t, uint64(2), reports[0].Deliveries)
}

func TestProcess_PredictionTimeoutExhaustion(t *testing.T) {
	f := newFixture(t)
	f.predictor.err = fmt.Errorf("%w: predict: %w",
		errors.ErrMaxRetriesExceeded, errors.ErrPredictionTimeout)
	tok := &trackingToken{}

	err := f.controller.process(context.Background(), event.New("studies/1/instance-1", tok))
	require.Error(t, err)

	reports := f.sink.all()
	require.Len(t, reports, 1)
	assert.Equal(t, "predicting", reports[0].Stage)
	assert.Equal(t, "timeout", reports[0].Kind)

	acks, _ := tok.counts()
	assert.Zero(t, acks)
}

func TestProcess_ServiceErrorIsPermanent(t *testing.T) {
	f := newFixture(t)
	f.predictor.err = &errors.ServiceError{Code: 422, Message: "bad pixels"}

	tok := &trackingToken{}
	err := f.controller.process(context.Background(), event.New("ref", tok))
	require.Error(t, err)

	reports := f.sink.all()
	require.Len(t, reports, 1)
	assert.Equal(t, "rejected", reports[0].Kind)
}

func TestProcess_TransientStoreErrorRedelivers(t *testing.T) {
	f := newFixture(t)
	f.packager.storeErr = errors.WrapTransient(assert.AnError, "Packager", "Store", "write record")
	tok := &trackingToken{deliveries: 3}

	err := f.controller.process(context.Background(), event.New("ref", tok))
	require.Error(t, err)

	// Transient: nak with backoff, no failure report
	acks, naks := tok.counts()
	assert.Zero(t, acks)
	assert.Equal(t, 1, naks)
	assert.Equal(t, 40*time.Millisecond, tok.nakDelay)
	assert.Empty(t, f.sink.all())
}

func TestProcess_StoreRejected(t *testing.T) {
	f := newFixture(t)
	f.packager.storeErr = fmt.Errorf("%w: malformed", errors.ErrStoreRejected)
	tok := &trackingToken{}

	err := f.controller.process(context.Background(), event.New("ref", tok))
	require.Error(t, err)

	reports := f.sink.all()
	require.Len(t, reports, 1)
	assert.Equal(t, "storing", reports[0].Stage)
	assert.Equal(t, "store_rejected", reports[0].Kind)
}

func TestController_EventsAreIndependent(t *testing.T) {
	f := newFixture(t)
	events := make(chan event.Event, 8)

	controller, err := NewController(Deps{
		Config:    f.controller.config,
		Events:    events,
		Fetcher:   f.fetcher,
		Predictor: f.predictor,
		Packager:  f.packager,
		Sink:      f.sink,
	})
	require.NoError(t, err)

	// One event fails permanently; the others must still complete
	f.fetcher.err = fmt.Errorf("%w: studies/1/bad", errors.ErrArtifactNotFound)
	f.fetcher.failRef = "studies/1/bad"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, controller.Start(ctx))

	good := &trackingToken{}
	bad := &trackingToken{}
	events <- event.New("studies/1/good", good)
	events <- event.New("studies/1/bad", bad)
	events <- event.New("studies/1/good-2", &trackingToken{})

	require.Eventually(t, func() bool {
		acked, failed, _ := controller.Stats()
		return acked == 2 && failed == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, controller.Stop(time.Second))

	assert.Equal(t, 2, f.packager.storedCount())
	acks, _ := good.counts()
	assert.Equal(t, 1, acks)
	badAcks, _ := bad.counts()
	assert.Zero(t, badAcks)
	require.Len(t, f.sink.all(), 1)
}

func TestRedeliveryDelay(t *testing.T) {
	base := 10 * time.Millisecond
	max := 80 * time.Millisecond

	assert.Equal(t, base, redeliveryDelay(base, max, 0))
	assert.Equal(t, base, redeliveryDelay(base, max, 1))
	assert.Equal(t, 20*time.Millisecond, redeliveryDelay(base, max, 2))
	assert.Equal(t, 40*time.Millisecond, redeliveryDelay(base, max, 3))
	assert.Equal(t, max, redeliveryDelay(base, max, 4))
	assert.Equal(t, max, redeliveryDelay(base, max, 10))
}

func TestFailureKind(t *testing.T) {
	assert.Equal(t, "not_found", failureKind(errors.ErrArtifactNotFound))
	assert.Equal(t, "timeout", failureKind(
		fmt.Errorf("%w: %w", errors.ErrMaxRetriesExceeded, errors.ErrPredictionTimeout)))
	assert.Equal(t, "rejected", failureKind(&errors.ServiceError{Code: 400}))
	assert.Equal(t, "store_rejected", failureKind(errors.ErrStoreRejected))
	assert.Equal(t, "retry_exhausted", failureKind(errors.ErrMaxRetriesExceeded))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "received", StateReceived.String())
	assert.Equal(t, "fetching", StateFetching.String())
	assert.Equal(t, "predicting", StatePredicting.String())
	assert.Equal(t, "packaging", StatePackaging.String())
	assert.Equal(t, "storing", StateStoring.String())
	assert.Equal(t, "acknowledged", StateAcknowledged.String())
	assert.Equal(t, "failed", StateFailed.String())

	assert.True(t, StateAcknowledged.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateStoring.Terminal())
}
