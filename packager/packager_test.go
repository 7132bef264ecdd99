package packager

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/inferrelay/errors"
	"github.com/c360/inferrelay/event"
	"github.com/c360/inferrelay/storage"
)

func testResult() event.PredictionResult {
	return event.PredictionResult{
		ArtifactRef:  "studies/1/instance-1",
		Label:        "malignant",
		Confidence:   0.93,
		ModelVersion: "classifier-v3",
	}
}

func TestPackage(t *testing.T) {
	p := New(Deps{Store: storage.NewMemStore()})

	record, err := p.Package(testResult())
	require.NoError(t, err)

	assert.Equal(t, "studies/1/instance-1", record.ArtifactRef)
	assert.Equal(t, event.RelationInference, record.Relation)
	assert.False(t, record.CreatedAt.IsZero())
	assert.Equal(t,
		event.ResultKey("results", event.RelationInference, "studies/1/instance-1"),
		record.Key)
}

func TestPackage_Deterministic(t *testing.T) {
	p := New(Deps{Store: storage.NewMemStore()})

	first, err := p.Package(testResult())
	require.NoError(t, err)
	second, err := p.Package(testResult())
	require.NoError(t, err)

	assert.Equal(t, first.Key, second.Key)
}

func TestPackage_IncompleteResult(t *testing.T) {
	p := New(Deps{Store: storage.NewMemStore()})

	incomplete := testResult()
	incomplete.Label = ""
	incomplete.Scores = nil

	_, err := p.Package(incomplete)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStoreRejected)
	assert.True(t, errors.IsPermanent(err))
}

func TestStore(t *testing.T) {
	store := storage.NewMemStore()
	p := New(Deps{Store: store})

	record, err := p.Package(testResult())
	require.NoError(t, err)
	require.NoError(t, p.Store(context.Background(), record))

	data, err := store.Get(context.Background(), record.Key)
	require.NoError(t, err)

	var persisted event.ResultRecord
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, record.Key, persisted.Key)
	assert.Equal(t, "malignant", persisted.Result.Label)
}

func TestStore_MalformedRecord(t *testing.T) {
	p := New(Deps{Store: storage.NewMemStore()})

	err := p.Store(context.Background(), event.ResultRecord{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStoreRejected)
}

func TestPackageAndStore_ReplayOverwrites(t *testing.T) {
	store := storage.NewMemStore()
	p := New(Deps{Store: store})
	ctx := context.Background()

	first, err := p.PackageAndStore(ctx, testResult())
	require.NoError(t, err)

	// Replay after a simulated crash: same artifact, updated result
	replayed := testResult()
	replayed.Confidence = 0.95
	second, err := p.PackageAndStore(ctx, replayed)
	require.NoError(t, err)

	assert.Equal(t, first.Key, second.Key)
	assert.Equal(t, 1, store.Len())

	data, err := store.Get(ctx, second.Key)
	require.NoError(t, err)

	var persisted event.ResultRecord
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, 0.95, persisted.Result.Confidence)
}

func TestPackager_CustomPrefixAndRelation(t *testing.T) {
	p := New(Deps{
		Config: Config{KeyPrefix: "inferences", Relation: "derived-from"},
		Store:  storage.NewMemStore(),
	})

	record, err := p.Package(testResult())
	require.NoError(t, err)
	assert.Equal(t, "derived-from", record.Relation)
	assert.Contains(t, record.Key, "inferences/derived-from/")
}
