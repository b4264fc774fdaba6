// Copyright 2020 lesismal. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package memhttp serves allocator introspection over HTTP.
package memhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/lesismal/memreg/logging"
	"github.com/lesismal/memreg/mempool"
)

// Registry is what the handler inspects, usually a *memreg.Manager.
type Registry interface {
	Stats() []mempool.Stats
	GarbageCollect()
}

// Config Of Handler.
type Config struct {
	// WatchInterval is how often /watch pushes stats, it's set to 1s by default.
	WatchInterval time.Duration

	// Logger overrides logging.DefaultLogger.
	Logger logging.Logger
}

// Handler routes:
//
//	GET  /allocators        stats of every allocator
//	GET  /allocators/:name  stats of one allocator
//	POST /allocators/gc     release cached memory
//	GET  /watch             websocket stream of stats
type Handler struct {
	registry Registry
	router   *httprouter.Router
	upgrader websocket.Upgrader
	interval time.Duration
	logger   logging.Logger
}

// NewHandler .
func NewHandler(registry Registry, conf Config) *Handler {
	if conf.WatchInterval <= 0 {
		conf.WatchInterval = time.Second
	}
	if conf.Logger == nil {
		conf.Logger = logging.DefaultLogger
	}
	h := &Handler{
		registry: registry,
		router:   httprouter.New(),
		interval: conf.WatchInterval,
		logger:   conf.Logger,
	}
	h.router.GET("/allocators", h.onList)
	h.router.GET("/allocators/:name", h.onGet)
	h.router.POST("/allocators/gc", h.onGC)
	h.router.GET("/watch", h.onWatch)
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("memhttp: write response failed: %v", err)
	}
}

func (h *Handler) onList(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.writeJSON(w, http.StatusOK, h.registry.Stats())
}

func (h *Handler) onGet(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	name := ps.ByName("name")
	for _, st := range h.registry.Stats() {
		if st.Name == name {
			h.writeJSON(w, http.StatusOK, st)
			return
		}
	}
	h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "allocator not found: " + name})
}

func (h *Handler) onGC(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.registry.GarbageCollect()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) onWatch(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("memhttp: upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		if err := conn.WriteJSON(h.registry.Stats()); err != nil {
			h.logger.Debug("memhttp: watch from %v closed: %v", r.RemoteAddr, err)
			return
		}
		select {
		case <-ticker.C:
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

// Serve serves h on addr until ctx is done.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	svr := &http.Server{Addr: addr, Handler: h}
	errCh := make(chan error, 1)
	go func() {
		errCh <- svr.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svr.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
