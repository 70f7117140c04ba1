package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRobotsGate_DisallowedPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gate := NewRobotsGate(srv.Client(), "WebHarvestBot/1.0")

	allowed, err := gate.Allowed(context.Background(), srv.URL+"/private/page")
	require.NoError(t, err)
	assert.False(t, allowed)

	allowed, err = gate.Allowed(context.Background(), srv.URL+"/public/page")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRobotsGate_CachesPerHost(t *testing.T) {
	var robotsHits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits++
			_, _ = w.Write([]byte("User-agent: *\nAllow: /\n"))
			return
		}
	}))
	defer srv.Close()

	gate := NewRobotsGate(srv.Client(), "WebHarvestBot/1.0")
	_, _ = gate.Allowed(context.Background(), srv.URL+"/a")
	_, _ = gate.Allowed(context.Background(), srv.URL+"/b")

	assert.Equal(t, 1, robotsHits)
}

func TestRobotsGate_FailOpenOnFetchError(t *testing.T) {
	gate := NewRobotsGate(http.DefaultClient, "WebHarvestBot/1.0")
	allowed, err := gate.Allowed(context.Background(), "http://127.0.0.1:1/page")
	require.NoError(t, err)
	assert.True(t, allowed)
}
