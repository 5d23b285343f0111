// Package server carries method channels to an out-of-process shell over
// HTTP and WebSocket.
//
// Routes
//
//	POST /channels/{channel}   body: {"method": ..., "args": ...}
//	GET  /ws                   one JSON frame per call, one reply per frame
//	GET  /healthz
//
// HTTP replies use the JSON method codec envelopes: 200 with [result],
// 500 with [code, message, details], 501 with an empty body when the method
// or channel is not implemented, 400 with a bad_request envelope when the
// call cannot be decoded. Channel names may contain slashes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/spachava753/smsbridge/channel"
)

const (
	maxCallBytes    = 1 << 20
	shutdownTimeout = 10 * time.Second

	codeBadRequest = "bad_request"
)

// Invoker delivers a method call to a named channel. *channel.Messenger
// satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, channel string, call channel.MethodCall) channel.Result
	Channels() []string
}

type handler struct {
	invoker  Invoker
	codec    channel.JSONMethodCodec
	log      *slog.Logger
	upgrader websocket.Upgrader
}

// NewRouter wires the channel routes.
func NewRouter(invoker Invoker, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &handler{
		invoker: invoker,
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.handleHealth)
	r.Post("/channels/*", h.handleCall)
	r.Get("/ws", h.handleWebSocket)
	return r
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"channels": h.invoker.Channels(),
	}); err != nil {
		h.log.Error("failed to encode health response", "error", err)
	}
}

func (h *handler) handleCall(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	if name == "" {
		h.writeEnvelope(w, http.StatusBadRequest, channel.Error(codeBadRequest, "channel name is required", nil))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallBytes))
	if err != nil {
		h.writeEnvelope(w, http.StatusBadRequest, channel.Error(codeBadRequest, "failed to read request body", nil))
		return
	}
	call, err := h.codec.DecodeMethodCall(body)
	if err != nil {
		h.writeEnvelope(w, http.StatusBadRequest, channel.Error(codeBadRequest, err.Error(), nil))
		return
	}

	result := h.invoker.Invoke(r.Context(), name, call)
	switch result.Kind() {
	case channel.KindSuccess:
		h.writeEnvelope(w, http.StatusOK, result)
	case channel.KindError:
		h.writeEnvelope(w, http.StatusInternalServerError, result)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (h *handler) writeEnvelope(w http.ResponseWriter, status int, result channel.Result) {
	data, err := h.codec.EncodeEnvelope(result)
	if err != nil {
		h.log.Error("failed to encode envelope", "error", err)
		status = http.StatusInternalServerError
		data, _ = h.codec.EncodeEnvelope(channel.Error("encode", "failed to encode reply", nil))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		h.log.Warn("failed to write reply", "error", err)
	}
}

type wsFrame struct {
	ID      string `json:"id"`
	Channel string `json:"channel"`
}

type wsReply struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Envelope json.RawMessage `json:"envelope"`
}

func (h *handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("websocket read ended", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		reply := h.serveFrame(ctx, data)
		if err := conn.WriteJSON(reply); err != nil {
			h.log.Warn("websocket write failed", "error", err)
			return
		}
	}
}

func (h *handler) serveFrame(ctx context.Context, data []byte) wsReply {
	var frame wsFrame
	_ = json.Unmarshal(data, &frame)
	if frame.ID == "" {
		frame.ID = uuid.NewString()
	}

	var result channel.Result
	call, err := h.codec.DecodeMethodCall(data)
	switch {
	case err != nil:
		result = channel.Error(codeBadRequest, err.Error(), nil)
	case frame.Channel == "":
		result = channel.Error(codeBadRequest, "channel name is required", nil)
	default:
		result = h.invoker.Invoke(ctx, frame.Channel, call)
	}

	envelope, err := h.codec.EncodeEnvelope(result)
	if err != nil {
		h.log.Error("failed to encode envelope", "id", frame.ID, "error", err)
		result = channel.Error("encode", "failed to encode reply", nil)
		envelope, _ = h.codec.EncodeEnvelope(result)
	}
	return wsReply{ID: frame.ID, Status: result.Kind().String(), Envelope: envelope}
}

func requestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

// Run serves handler on addr until ctx is cancelled, then shuts down.
func Run(ctx context.Context, addr string, handler http.Handler, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("smsbridge listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
