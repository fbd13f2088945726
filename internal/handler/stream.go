package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/chat-sync/internal/middleware"
	"github.com/capitalize-ai/chat-sync/internal/model"
	"github.com/capitalize-ai/chat-sync/internal/realtime"
	"github.com/capitalize-ai/chat-sync/pkg/logger"
	"github.com/capitalize-ai/chat-sync/pkg/metrics"
)

// StreamHandler serves the live sync stream.
type StreamHandler struct {
	registry  *realtime.Registry
	keepAlive time.Duration
	buffer    int
	logger    *logger.Logger

	closing   chan struct{}
	closeOnce sync.Once
}

// NewStreamHandler creates a stream handler that pings idle connections
// every keepAlive and buffers up to buffer undelivered events per
// connection.
func NewStreamHandler(registry *realtime.Registry, keepAlive time.Duration, buffer int, log *logger.Logger) *StreamHandler {
	if keepAlive <= 0 {
		keepAlive = 30 * time.Second
	}
	return &StreamHandler{
		registry:  registry,
		keepAlive: keepAlive,
		buffer:    buffer,
		logger:    log,
		closing:   make(chan struct{}),
	}
}

// Shutdown ends every open stream. Clients reconnect to another instance or
// after the restart.
func (h *StreamHandler) Shutdown() {
	h.closeOnce.Do(func() { close(h.closing) })
}

// Stream handles GET /api/sync/stream
//
// The connection is registered before the connected event is written, and
// queued updates are only written after it, so a client always sees
// connected first.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// The server write timeout would otherwise cut long-lived streams.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sink := realtime.NewChannelSink(h.buffer)
	h.registry.Register(userID, sink)
	defer func() {
		sink.Close()
		h.registry.Unregister(userID, sink)
	}()

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	log := h.logger.With(
		zap.String("user_id", userID),
		zap.String("correlation_id", middleware.GetCorrelationID(ctx)),
	)
	log.Info("sync stream opened")

	if err := writeEvent(w, flusher, model.ConnectedEvent()); err != nil {
		log.Debug("failed to write connected event", zap.Error(err))
		return
	}

	ping := time.NewTicker(h.keepAlive)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("sync stream closed")
			return

		case <-h.closing:
			log.Info("sync stream closed for shutdown")
			return

		case <-sink.Done():
			log.Warn("sync stream fell behind, closing")
			return

		case frame := <-sink.Frames():
			if err := writeFrame(w, flusher, frame); err != nil {
				log.Info("sync stream write failed", zap.Error(err))
				return
			}

		case <-ping.C:
			if err := writeEvent(w, flusher, model.PingEvent()); err != nil {
				log.Info("sync stream write failed", zap.Error(err))
				return
			}
		}
	}
}

// writeEvent encodes event as a single data frame.
func writeEvent(w http.ResponseWriter, flusher http.Flusher, event model.SyncEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return writeFrame(w, flusher, data)
}

// writeFrame writes one "data: <json>" message terminated by a blank line.
func writeFrame(w http.ResponseWriter, flusher http.Flusher, data []byte) error {
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// sendSSEEvent writes a named event, used by request-scoped streams such as
// chat completions.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
