package blob

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySinkPutAndGet(t *testing.T) {
	m := NewMemorySink()

	err := m.Put(context.Background(), "optimized/a.webp", []byte("abc"), "image/webp")
	require.NoError(t, err)

	obj, ok := m.Get("optimized/a.webp")
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), obj.Data)
	assert.Equal(t, "image/webp", obj.ContentType)
	assert.Equal(t, 1, m.Len())
}

func TestMemorySinkCopiesData(t *testing.T) {
	m := NewMemorySink()

	data := []byte("abc")
	require.NoError(t, m.Put(context.Background(), "k", data, "image/jpeg"))
	data[0] = 'z'

	obj, ok := m.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), obj.Data)
}

func TestMemorySinkMissingKey(t *testing.T) {
	m := NewMemorySink()
	_, ok := m.Get("nope")
	assert.False(t, ok)
	assert.NoError(t, m.Ping(context.Background()))
}

func TestMemorySinkConcurrentPuts(t *testing.T) {
	m := NewMemorySink()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := string(rune('a' + n%26))
			_ = m.Put(context.Background(), key, []byte{byte(n)}, "image/png")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 26, m.Len())
	assert.Len(t, m.Keys(), 26)
}
