package optimize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/imgforge/pkg/blob"
	"github.com/marmos91/imgforge/pkg/notify"
	"github.com/marmos91/imgforge/pkg/pathmint"
	"github.com/marmos91/imgforge/pkg/reqcontext"
	"github.com/marmos91/imgforge/pkg/sse"
	"github.com/marmos91/imgforge/pkg/transform"
	"github.com/marmos91/imgforge/pkg/ttlstore"
	"github.com/marmos91/imgforge/pkg/workerpool"
)

// halveRun stands in for the real transformer: it returns the first half
// of the input so sizes are predictable.
func halveRun(data []byte, _ transform.Options) ([]byte, error) {
	return data[:len(data)/2], nil
}

func failRun(_ []byte, _ transform.Options) ([]byte, error) {
	return nil, errors.New("cannot decode image")
}

type testRig struct {
	orch   *Orchestrator
	sink   *blob.MemorySink
	broker *sse.Broker
	pool   *workerpool.Pool
}

func newTestRig(t *testing.T, run workerpool.RunFunc, cfg Config) *testRig {
	t.Helper()

	store := ttlstore.New[any]()
	registry := reqcontext.NewRegistry[Params](reqcontext.KindControllerParams, store, time.Hour)

	pool := workerpool.New(workerpool.Config{MaxWorkers: 2}, run)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	})

	broker := sse.NewBroker(sse.WithGrace(50 * time.Millisecond))
	t.Cleanup(broker.Close)

	sink := blob.NewMemorySink()

	orch := New(Deps{
		Registry: registry,
		Pool:     pool,
		Broker:   broker,
		Notifier: notify.NewNotifier(time.Second),
		Sink:     sink,
		Minter:   pathmint.New(),
	}, cfg)

	return &testRig{orch: orch, sink: sink, broker: broker, pool: pool}
}

func tempUpload(t *testing.T, name string, data []byte) Upload {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return Upload{TempPath: path, OriginalName: name, Size: int64(len(data))}
}

// waitTerminal drains an event channel until a terminal event or timeout.
func waitTerminal(t *testing.T, ch <-chan sse.Event) sse.Event {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatal("stream closed before terminal event")
			}
			if ev.Terminal() {
				return ev
			}
		case <-deadline:
			t.Fatal("no terminal event")
		}
	}
}

func TestAcceptSingleSuccess(t *testing.T) {
	rig := newTestRig(t, halveRun, Config{BaseURL: "https://cdn.example.com"})
	rig.orch.newID = func() string { return "fixed-id" }

	ch, cancel, err := rig.broker.Subscribe("fixed-id")
	require.NoError(t, err)
	defer cancel()

	upload := tempUpload(t, "photo.jpg", make([]byte, 1000))
	resp, err := rig.orch.AcceptSingle(context.Background(), upload, nil, transform.Options{Format: transform.FormatJPEG})
	require.NoError(t, err)

	assert.Equal(t, "fixed-id", resp.OptimizationID)
	assert.True(t, strings.HasPrefix(resp.Data, "optimized/"), "data %q", resp.Data)
	assert.True(t, strings.HasSuffix(resp.Data, ".jpeg"))
	assert.Equal(t, "https://cdn.example.com/"+resp.Data, resp.DownloadURL)
	assert.Equal(t, int64(1000), resp.OriginalSize)
	assert.Zero(t, resp.CallbacksScheduled)

	ev := waitTerminal(t, ch)
	require.Equal(t, sse.EventComplete, ev.Type)

	obj, ok := rig.sink.Get(resp.Data)
	require.True(t, ok, "artifact must be uploaded at exactly the minted key")
	assert.Equal(t, "image/jpeg", obj.ContentType)
	assert.Len(t, obj.Data, 500)

	// Temp upload is unlinked once the pipeline settles.
	assert.Eventually(t, func() bool {
		_, err := os.Stat(upload.TempPath)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAcceptSingleFiresCallback(t *testing.T) {
	got := make(chan CompletionPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p CompletionPayload
		_ = json.Unmarshal(body, &p)
		got <- p
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rig := newTestRig(t, halveRun, Config{BaseURL: "https://cdn.example.com"})

	upload := tempUpload(t, "a.png", make([]byte, 600))
	resp, err := rig.orch.AcceptSingle(context.Background(), upload,
		[]notify.Callback{{URL: srv.URL}}, transform.Options{Format: transform.FormatWebP})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.CallbacksScheduled)

	select {
	case p := <-got:
		assert.Equal(t, resp.OptimizationID, p.OptimizationID)
		assert.Equal(t, StatusSuccess, p.Status)
		assert.Equal(t, resp.DownloadURL, p.DownloadURL)
		assert.Equal(t, 600, p.OriginalSize)
		assert.Equal(t, 300, p.OptimizedSize)
	case <-time.After(3 * time.Second):
		t.Fatal("callback never fired")
	}
}

func TestAcceptSingleTransformFailure(t *testing.T) {
	got := make(chan CompletionPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p CompletionPayload
		_ = json.Unmarshal(body, &p)
		got <- p
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rig := newTestRig(t, failRun, Config{})
	rig.orch.newID = func() string { return "doomed" }

	ch, cancel, err := rig.broker.Subscribe("doomed")
	require.NoError(t, err)
	defer cancel()

	upload := tempUpload(t, "broken.bin", []byte("not an image"))
	resp, err := rig.orch.AcceptSingle(context.Background(), upload,
		[]notify.Callback{{URL: srv.URL}}, transform.Options{})

	// Accept succeeds; the failure surfaces only asynchronously.
	require.NoError(t, err)
	require.NotEmpty(t, resp.OptimizationID)

	ev := waitTerminal(t, ch)
	assert.Equal(t, sse.EventError, ev.Type)

	select {
	case p := <-got:
		assert.Equal(t, StatusError, p.Status)
		assert.NotEmpty(t, p.Error)
		assert.Empty(t, p.DownloadURL)
	case <-time.After(3 * time.Second):
		t.Fatal("error callback never fired")
	}

	assert.Zero(t, rig.sink.Len(), "no artifact on transform failure")
}

func TestAcceptSingleValidation(t *testing.T) {
	rig := newTestRig(t, halveRun, Config{})
	upload := tempUpload(t, "x.jpg", []byte("xx"))

	_, err := rig.orch.AcceptSingle(context.Background(), upload, nil,
		transform.Options{Format: transform.Format("bmp")})
	require.ErrorIs(t, err, ErrInvalidOptions)
	assert.Contains(t, err.Error(), "supported")

	_, err = rig.orch.AcceptSingle(context.Background(), upload, nil,
		transform.Options{Width: 9000})
	require.ErrorIs(t, err, ErrInvalidOptions)

	_, err = rig.orch.AcceptSingle(context.Background(), upload, nil,
		transform.Options{Quality: 101})
	require.ErrorIs(t, err, ErrInvalidOptions)

	_, err = rig.orch.AcceptSingle(context.Background(), upload, nil,
		transform.Options{BlurRadius: 60})
	require.ErrorIs(t, err, ErrInvalidOptions)

	assert.Zero(t, rig.sink.Len())
}

func TestAcceptBatch(t *testing.T) {
	got := make(chan BatchCompletionPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p BatchCompletionPayload
		_ = json.Unmarshal(body, &p)
		got <- p
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rig := newTestRig(t, halveRun, Config{BaseURL: "https://cdn.example.com"})

	files := []Upload{
		tempUpload(t, "one.png", make([]byte, 100)),
		tempUpload(t, "two.png", make([]byte, 200)),
		tempUpload(t, "three.png", make([]byte, 300)),
	}

	resp, err := rig.orch.AcceptBatch(context.Background(), files,
		[]notify.Callback{{URL: srv.URL}}, transform.Options{Format: transform.FormatWebP})
	require.NoError(t, err)

	assert.Equal(t, 3, resp.Count)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, "one.png", resp.Results[0].FileName)
	assert.Equal(t, "two.png", resp.Results[1].FileName)
	assert.Equal(t, "three.png", resp.Results[2].FileName)

	var payload BatchCompletionPayload
	select {
	case payload = <-got:
	case <-time.After(3 * time.Second):
		t.Fatal("consolidated callback never fired")
	}

	assert.Equal(t, 3, payload.TotalFiles)
	assert.Equal(t, 3, payload.SuccessfulFiles)
	assert.Equal(t, StatusSuccess, payload.Status)
	require.Len(t, payload.Results, 3)
	assert.Equal(t, "one.png", payload.Results[0].FileName)
	assert.Equal(t, "three.png", payload.Results[2].FileName)

	// Uploads land under per-index keys.
	for i := range files {
		key := fmt.Sprintf("%s_%d", resp.OptimizationID, i)
		obj, ok := rig.sink.Get(key)
		require.True(t, ok, "missing artifact for %s", key)
		assert.Equal(t, "image/webp", obj.ContentType)
	}
}

func TestAcceptBatchPartialFailure(t *testing.T) {
	got := make(chan BatchCompletionPayload, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var p BatchCompletionPayload
		_ = json.Unmarshal(body, &p)
		got <- p
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	// Fails inputs shorter than 10 bytes.
	run := func(data []byte, _ transform.Options) ([]byte, error) {
		if len(data) < 10 {
			return nil, errors.New("too small")
		}
		return data[:len(data)/2], nil
	}

	rig := newTestRig(t, run, Config{})

	files := []Upload{
		tempUpload(t, "ok.png", make([]byte, 100)),
		tempUpload(t, "bad.png", make([]byte, 4)),
	}

	_, err := rig.orch.AcceptBatch(context.Background(), files,
		[]notify.Callback{{URL: srv.URL}}, transform.Options{})
	require.NoError(t, err)

	select {
	case p := <-got:
		assert.Equal(t, StatusPartial, p.Status)
		assert.Equal(t, 2, p.TotalFiles)
		assert.Equal(t, 1, p.SuccessfulFiles)
		assert.True(t, p.Results[0].Success)
		assert.False(t, p.Results[1].Success)
		assert.NotEmpty(t, p.Results[1].Error)
	case <-time.After(3 * time.Second):
		t.Fatal("callback never fired")
	}
}

func TestAcceptBatchLimits(t *testing.T) {
	rig := newTestRig(t, halveRun, Config{})

	_, err := rig.orch.AcceptBatch(context.Background(), nil, nil, transform.Options{})
	assert.ErrorIs(t, err, ErrInvalidOptions)

	files := make([]Upload, MaxBatchFiles+1)
	for i := range files {
		files[i] = tempUpload(t, fmt.Sprintf("f%d.png", i), []byte("x"))
	}
	_, err = rig.orch.AcceptBatch(context.Background(), files, nil, transform.Options{})
	assert.ErrorIs(t, err, ErrInvalidOptions)
}

func TestBackpressure(t *testing.T) {
	block := make(chan struct{})
	run := func(data []byte, _ transform.Options) ([]byte, error) {
		<-block
		return data, nil
	}
	defer close(block)

	store := ttlstore.New[any]()
	registry := reqcontext.NewRegistry[Params](reqcontext.KindControllerParams, store, time.Hour)
	pool := workerpool.New(workerpool.Config{MinWorkers: 1, MaxWorkers: 1, QueueSize: 10}, run)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	})

	orch := New(Deps{
		Registry: registry,
		Pool:     pool,
		Broker:   sse.NewBroker(),
		Notifier: notify.NewNotifier(time.Second),
		Sink:     blob.NewMemorySink(),
		Minter:   pathmint.New(),
	}, Config{QueueHighWater: 1})

	// Occupy the only worker, then park one task in the queue.
	_, err := pool.Submit(workerpool.Task{Bytes: []byte("busy")})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return pool.Stats().ActiveWorkers == 1
	}, time.Second, 5*time.Millisecond)
	_, err = pool.Submit(workerpool.Task{Bytes: []byte("queued")})
	require.NoError(t, err)

	upload := tempUpload(t, "late.jpg", []byte("data"))
	_, err = orch.AcceptSingle(context.Background(), upload, nil, transform.Options{})
	assert.ErrorIs(t, err, ErrBusy)
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://cdn.x/optimized/a.webp", joinURL("https://cdn.x", "optimized/a.webp"))
	assert.Equal(t, "https://cdn.x/optimized/a.webp", joinURL("https://cdn.x/", "/optimized/a.webp"))
	assert.Equal(t, "optimized/a.webp", joinURL("", "optimized/a.webp"))
}
