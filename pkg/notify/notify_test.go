package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyDeliversJSON(t *testing.T) {
	type received struct {
		method      string
		contentType string
		body        map[string]any
		header      string
	}
	got := make(chan received, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload map[string]any
		_ = json.Unmarshal(body, &payload)
		got <- received{
			method:      r.Method,
			contentType: r.Header.Get("Content-Type"),
			body:        payload,
			header:      r.Header.Get("X-Custom"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(time.Second)
	n.Notify(context.Background(), []Callback{
		{URL: srv.URL, Headers: map[string]string{"X-Custom": "yes"}},
	}, map[string]string{"status": "success"})

	select {
	case r := <-got:
		assert.Equal(t, http.MethodPost, r.method)
		assert.Equal(t, "application/json", r.contentType)
		assert.Equal(t, "success", r.body["status"])
		assert.Equal(t, "yes", r.header)
	case <-time.After(time.Second):
		t.Fatal("callback never arrived")
	}
}

func TestNotifyGetCarriesNoBody(t *testing.T) {
	var bodyLen atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodyLen.Store(int64(len(body)))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(time.Second)
	n.Notify(context.Background(), []Callback{{URL: srv.URL, Method: http.MethodGet}}, map[string]int{"x": 1})

	assert.Equal(t, int64(0), bodyLen.Load())
}

func TestNotifyParallelWaitsForAll(t *testing.T) {
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(30 * time.Millisecond)
		count.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	callbacks := []Callback{{URL: srv.URL}, {URL: srv.URL}, {URL: srv.URL}}

	n := NewNotifier(time.Second)
	start := time.Now()
	n.Notify(context.Background(), callbacks, nil)
	elapsed := time.Since(start)

	// All three settled by return time
	assert.Equal(t, int32(3), count.Load())
	// Parallel, not sequential: well under 3x the handler delay
	assert.Less(t, elapsed, 90*time.Millisecond*3)
}

func TestNotifySkipsInvalidURL(t *testing.T) {
	var count atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewNotifier(time.Second)
	require.NotPanics(t, func() {
		n.Notify(context.Background(), []Callback{
			{URL: "not a url"},
			{URL: "/relative/path"},
			{URL: srv.URL},
		}, nil)
	})

	assert.Equal(t, int32(1), count.Load())
}

func TestNotifyNon2xxNeverPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := NewNotifier(time.Second)
	require.NotPanics(t, func() {
		n.Notify(context.Background(), []Callback{{URL: srv.URL}}, map[string]string{"a": "b"})
	})
}

func TestNotifyUnreachableHost(t *testing.T) {
	n := NewNotifier(200 * time.Millisecond)
	require.NotPanics(t, func() {
		n.Notify(context.Background(), []Callback{{URL: "http://127.0.0.1:1/nope"}}, nil)
	})
}

func TestNotifyEmptyList(t *testing.T) {
	n := NewNotifier(time.Second)
	require.NotPanics(t, func() {
		n.Notify(context.Background(), nil, map[string]string{"x": "y"})
	})
}

func TestParseCallbacks(t *testing.T) {
	t.Run("Array", func(t *testing.T) {
		cbs, err := ParseCallbacks(`[{"url":"http://a/x"},{"url":"http://b/y","method":"PUT"}]`)
		require.NoError(t, err)
		require.Len(t, cbs, 2)
		assert.Equal(t, "http://a/x", cbs[0].URL)
		assert.Equal(t, "PUT", cbs[1].Method)
	})

	t.Run("BareObjectWrapped", func(t *testing.T) {
		cbs, err := ParseCallbacks(`{"url":"http://x/y"}`)
		require.NoError(t, err)
		require.Len(t, cbs, 1)
		assert.Equal(t, "http://x/y", cbs[0].URL)
	})

	t.Run("ConcatenatedObjectsRepaired", func(t *testing.T) {
		cbs, err := ParseCallbacks(`{"url":"http://a/1"},{"url":"http://b/2"}`)
		require.NoError(t, err)
		require.Len(t, cbs, 2)
		assert.Equal(t, "http://a/1", cbs[0].URL)
		assert.Equal(t, "http://b/2", cbs[1].URL)
	})

	t.Run("Empty", func(t *testing.T) {
		cbs, err := ParseCallbacks("")
		require.NoError(t, err)
		assert.Empty(t, cbs)

		cbs, err = ParseCallbacks("   ")
		require.NoError(t, err)
		assert.Empty(t, cbs)
	})

	t.Run("HeadersSurvive", func(t *testing.T) {
		cbs, err := ParseCallbacks(`{"url":"http://x/y","headers":{"Authorization":"Bearer t"}}`)
		require.NoError(t, err)
		require.Len(t, cbs, 1)
		assert.Equal(t, "Bearer t", cbs[0].Headers["Authorization"])
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := ParseCallbacks("not json")
		assert.Error(t, err)

		_, err = ParseCallbacks(`{"url": unterminated`)
		assert.Error(t, err)
	})
}
