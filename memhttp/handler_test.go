package memhttp

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lesismal/memreg"
	"github.com/lesismal/memreg/logging"
	"github.com/lesismal/memreg/mempool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*memreg.Manager, *httptest.Server) {
	t.Helper()
	conf := memreg.DefaultConfig()
	conf.Logger = logging.NewLogger(io.Discard, "")
	conf.TrackingMode = "counts"
	mgr := memreg.NewManager(conf)
	pool := mempool.New("pool", 64, 1024)
	mgr.RegisterAllocator(pool)
	mgr.RegisterAllocator(mempool.NewSTD("std"))
	pool.Malloc(10)

	srv := httptest.NewServer(NewHandler(mgr, Config{
		WatchInterval: 10 * time.Millisecond,
		Logger:        conf.Logger,
	}))
	t.Cleanup(srv.Close)
	return mgr, srv
}

func getJSON(t *testing.T, url string, v interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	return resp.StatusCode
}

func TestList(t *testing.T) {
	_, srv := newTestServer(t)
	var stats []mempool.Stats
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/allocators", &stats))
	require.Len(t, stats, 2)
	assert.Equal(t, "pool", stats[0].Name)
	assert.Equal(t, int64(1), stats[0].MallocCount)
	assert.Equal(t, "std", stats[1].Name)
}

func TestGet(t *testing.T) {
	_, srv := newTestServer(t)
	var st mempool.Stats
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/allocators/pool", &st))
	assert.Equal(t, "pool", st.Name)
	assert.Equal(t, mempool.TrackCounts, st.Mode)

	var body map[string]string
	require.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/allocators/missing", &body))
	assert.Contains(t, body["error"], "missing")
}

func TestGC(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/allocators/gc", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/allocators/gc/extra")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWatch(t *testing.T) {
	mgr, srv := newTestServer(t)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/watch"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var stats []mempool.Stats
	require.NoError(t, conn.ReadJSON(&stats))
	require.Len(t, stats, 2)

	mgr.RegisterAllocator(mempool.NewAligned("aligned"))
	require.Eventually(t, func() bool {
		var next []mempool.Stats
		if err := conn.ReadJSON(&next); err != nil {
			return false
		}
		return len(next) == 3
	}, time.Second, time.Millisecond)
}

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	mgr, _ := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, addr, NewHandler(mgr, Config{}))
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/allocators")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
