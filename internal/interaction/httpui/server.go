// Package httpui exposes an interaction protocol over HTTP so a browser or
// script can play the architect.
package httpui

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"k8s.io/klog/v2"

	"archtdea/internal/interaction"
)

const maxEventBytes = 64 << 10

// Protocol is the subset of the interaction protocol the binding needs.
type Protocol interface {
	Snapshot() interaction.Snapshot
	Post(e interaction.Event) error
}

type Handler struct {
	protocol Protocol
	metrics  http.Handler
	logger   klog.Logger
}

// New builds the handler. metrics may be nil, in which case /metrics is not
// routed.
func New(protocol Protocol, metrics http.Handler, logger klog.Logger) *Handler {
	return &Handler{protocol: protocol, metrics: metrics, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/state", h.handleState)
	r.Post("/events", h.handleEvent)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}
}

// Router returns a chi router with every route registered.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	h.Register(r)
	return r
}

// NewServer wraps handler in an http.Server with conservative timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (h *Handler) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.protocol.Snapshot())
}

func (h *Handler) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	ev, err := interaction.DecodeEvent(body)
	if err != nil {
		h.logger.V(4).Info("Rejected event", "err", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch err := h.protocol.Post(ev); {
	case err == nil:
	case errors.Is(err, interaction.ErrNotInteracting):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, interaction.ErrInboxFull):
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.logger.V(4).Info("Accepted event", "event", ev.Name())
	writeJSON(w, http.StatusAccepted, map[string]string{"accepted": ev.Name()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
