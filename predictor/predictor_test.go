package predictor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/inferrelay/errors"
	"github.com/c360/inferrelay/event"
)

func testConfig(url string) Config {
	return Config{
		URL:               url,
		ModelRef:          "classifier-v3",
		Timeout:           time.Second,
		MaxTimeoutRetries: 2,
	}
}

func testArtifact() event.Artifact {
	return event.Artifact{
		Ref:         "studies/1/instance-1",
		Data:        []byte("pixels"),
		ContentType: "application/dicom",
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.URL = ""
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.ModelRef = ""
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.MaxTimeoutRetries = 11
	assert.Error(t, bad.Validate())
}

func TestPredict(t *testing.T) {
	var gotRef, gotModel, gotContentType atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRef.Store(r.Header.Get("X-Artifact-Ref"))
		gotModel.Store(r.Header.Get("X-Model-Ref"))
		gotContentType.Store(r.Header.Get("Content-Type"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"label":"malignant","confidence":0.93,"model_version":"classifier-v3.1"}`))
	}))
	defer server.Close()

	client, err := New(Deps{Config: testConfig(server.URL)})
	require.NoError(t, err)

	result, err := client.Predict(context.Background(), testArtifact())
	require.NoError(t, err)

	assert.Equal(t, "studies/1/instance-1", result.ArtifactRef)
	assert.Equal(t, "malignant", result.Label)
	assert.Equal(t, 0.93, result.Confidence)
	assert.Equal(t, "classifier-v3.1", result.ModelVersion)

	assert.Equal(t, "studies/1/instance-1", gotRef.Load())
	assert.Equal(t, "classifier-v3", gotModel.Load())
	assert.Equal(t, "application/dicom", gotContentType.Load())
}

func TestPredict_ServiceError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"unsupported pixel format"}`))
	}))
	defer server.Close()

	client, err := New(Deps{Config: testConfig(server.URL)})
	require.NoError(t, err)

	_, err = client.Predict(context.Background(), testArtifact())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPredictionService)
	assert.True(t, errors.IsPermanent(err))

	var se *errors.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.Code)
	assert.Equal(t, "unsupported pixel format", se.Message)

	// Rejections are not retried
	assert.Equal(t, int32(1), calls.Load())
}

func TestPredict_Timeout(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Timeout = 20 * time.Millisecond
	cfg.MaxTimeoutRetries = 2

	client, err := New(Deps{Config: cfg})
	require.NoError(t, err)

	_, err = client.Predict(context.Background(), testArtifact())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrPredictionTimeout)
	assert.ErrorIs(t, err, errors.ErrMaxRetriesExceeded)
	assert.True(t, errors.IsPermanent(err))

	// Initial attempt plus two retries
	assert.Equal(t, int32(3), calls.Load())
}

func TestPredict_ServerErrorThenSuccess(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"label":"benign","confidence":0.71,"model_version":"classifier-v3"}`))
	}))
	defer server.Close()

	client, err := New(Deps{Config: testConfig(server.URL)})
	require.NoError(t, err)

	result, err := client.Predict(context.Background(), testArtifact())
	require.NoError(t, err)
	assert.Equal(t, "benign", result.Label)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPredict_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	client, err := New(Deps{Config: testConfig(server.URL)})
	require.NoError(t, err)

	_, err = client.Predict(context.Background(), testArtifact())
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestPredict_ModelVersionFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"label":"benign","confidence":0.5}`))
	}))
	defer server.Close()

	client, err := New(Deps{Config: testConfig(server.URL)})
	require.NoError(t, err)

	result, err := client.Predict(context.Background(), testArtifact())
	require.NoError(t, err)
	assert.Equal(t, "classifier-v3", result.ModelVersion)
}

func TestReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// Endpoints often reject HEAD; reachable is all that matters
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer server.Close()

	client, err := New(Deps{Config: testConfig(server.URL)})
	require.NoError(t, err)
	assert.NoError(t, client.Ready(context.Background()))

	server.Close()
	err = client.Ready(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestServiceMessage(t *testing.T) {
	assert.Equal(t, "bad input", serviceMessage([]byte(`{"error":"bad input"}`), "400 Bad Request"))
	assert.Equal(t, "400 Bad Request", serviceMessage([]byte("not json"), "400 Bad Request"))
	assert.Equal(t, "400 Bad Request", serviceMessage([]byte(`{}`), "400 Bad Request"))
}
