package htmlcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_PutGet(t *testing.T) {
	c := New(10, time.Minute)
	c.Put("https://example.com/a", Entry{Body: []byte("hi"), ContentType: "text/html"})

	e, ok := c.Get("https://example.com/a")
	assert.True(t, ok)
	assert.Equal(t, "hi", string(e.Body))
}

func TestCache_Miss(t *testing.T) {
	c := New(10, time.Minute)
	_, ok := c.Get("https://example.com/missing")
	assert.False(t, ok)
}

func TestCache_ExpiresAfterTTL(t *testing.T) {
	c := New(10, 10*time.Millisecond)
	c.Put("https://example.com/a", Entry{Body: []byte("hi")})
	time.Sleep(30 * time.Millisecond)

	_, ok := c.Get("https://example.com/a")
	assert.False(t, ok)
}

func TestCache_EvictsLRUBeyondSize(t *testing.T) {
	c := New(1, time.Minute)
	c.Put("a", Entry{Body: []byte("1")})
	c.Put("b", Entry{Body: []byte("2")})

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)
}

func TestNoop_AlwaysMisses(t *testing.T) {
	c := NewNoop()
	c.Put("a", Entry{Body: []byte("1")})
	_, ok := c.Get("a")
	assert.False(t, ok)
}
