package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/careroute/intake-router/internal/appointments"
	"github.com/careroute/intake-router/internal/catalog"
	"github.com/careroute/intake-router/internal/domain"
	"github.com/careroute/intake-router/internal/storage"
	"github.com/careroute/intake-router/internal/tenant"
)

const defaultTopK = 2

// Classifier is the classification operation the transport wraps.
type Classifier interface {
	Classify(ctx context.Context, text string, topK int, org string) *domain.Result
}

// ReplyStreamer is the grounded streaming chat operation.
type ReplyStreamer interface {
	StreamReply(ctx context.Context, history []domain.Message, c *catalog.Catalog) (<-chan string, error)
}

// AppointmentDirectory is the calendar lookup collaborator. It may be
// absent when no calendar credentials are configured.
type AppointmentDirectory interface {
	ListByDate(ctx context.Context, date time.Time) ([]appointments.Appointment, error)
	Match(ctx context.Context, firstName, lastName string, date time.Time, service string) ([]appointments.Appointment, error)
}

// Handlers holds the route handlers and their collaborators.
type Handlers struct {
	classifier Classifier
	chat       ReplyStreamer
	registry   *tenant.Registry
	store      storage.InteractionStore
	directory  AppointmentDirectory
	logger     *slog.Logger
}

// NewHandlers creates the handler set. store must be non-nil (use
// storage.NopStore when persistence is disabled); directory may be nil.
func NewHandlers(classifier Classifier, chatSession ReplyStreamer, registry *tenant.Registry, store storage.InteractionStore, directory AppointmentDirectory, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		classifier: classifier,
		chat:       chatSession,
		registry:   registry,
		store:      store,
		directory:  directory,
		logger:     logger,
	}
}

// Mount registers all routes on the router.
func (h *Handlers) Mount(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Post("/classify", h.handleClassify)
	r.Post("/chat/stream", h.handleChatStream)
	r.Get("/appointments", h.handleAppointmentsByDate)
	r.Post("/appointments/match", h.handleAppointmentsMatch)
	r.Get("/interactions", h.handleRecentInteractions)
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type classifyRequest struct {
	Text         string `json:"text"`
	TopK         *int   `json:"top_k"`
	Organization string `json:"organization"`
}

func (h *Handlers) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidRequest("invalid request body"))
		return
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		writeError(w, domain.ErrInvalidRequest("empty text"))
		return
	}

	topK := defaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	org := req.Organization
	if org == "" {
		org = tenant.DefaultOrg
	}

	start := time.Now()
	result := h.classifier.Classify(r.Context(), text, topK, org)
	duration := time.Since(start)

	AddLogField(r.Context(), "tenant", org)
	AddLogField(r.Context(), "category", result.Best.Category)
	AddLogField(r.Context(), "used_fallback", strconv.FormatBool(result.UsedFallback))

	// Recording is best-effort: a store failure must not fail the request.
	if err := h.store.RecordInteraction(r.Context(), &storage.Interaction{
		ID:           uuid.New().String(),
		Tenant:       org,
		Text:         text,
		BestCategory: result.Best.Category,
		Confidence:   result.Best.Confidence,
		UsedFallback: result.UsedFallback,
		Duration:     duration,
	}); err != nil {
		h.logger.Warn("failed to record interaction", slog.String("error", err.Error()))
	}

	writeJSON(w, http.StatusOK, result)
}

type chatStreamRequest struct {
	Messages     []domain.Message `json:"messages"`
	Organization string           `json:"organization"`
}

func (h *Handlers) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatStreamRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidRequest("invalid request body"))
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, domain.ErrInvalidRequest("messages required"))
		return
	}

	cat := h.registry.Resolve(req.Organization)

	fragments, err := h.chat.StreamReply(r.Context(), req.Messages, cat)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, domain.ErrServer("streaming not supported"))
		return
	}

	for fragment := range fragments {
		if _, err := w.Write([]byte(fragment)); err != nil {
			// Client went away. Returning ends the request, which cancels
			// its context and unwinds the session and backend readers.
			return
		}
		flusher.Flush()
	}
}

func (h *Handlers) handleAppointmentsByDate(w http.ResponseWriter, r *http.Request) {
	if h.directory == nil {
		writeError(w, domain.ErrServer("appointment directory not configured").WithStatusCode(http.StatusServiceUnavailable))
		return
	}

	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, domain.ErrInvalidRequest("date must be YYYY-MM-DD"))
		return
	}

	appts, err := h.directory.ListByDate(r.Context(), date)
	if err != nil {
		writeError(w, err)
		return
	}
	if appts == nil {
		appts = []appointments.Appointment{}
	}

	writeJSON(w, http.StatusOK, appts)
}

type matchRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Date      string `json:"date"`
	Service   string `json:"service"`
}

func (h *Handlers) handleAppointmentsMatch(w http.ResponseWriter, r *http.Request) {
	if h.directory == nil {
		writeError(w, domain.ErrServer("appointment directory not configured").WithStatusCode(http.StatusServiceUnavailable))
		return
	}

	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidRequest("invalid request body"))
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, domain.ErrInvalidRequest("date must be YYYY-MM-DD"))
		return
	}

	appts, err := h.directory.Match(r.Context(), req.FirstName, req.LastName, date, req.Service)
	if err != nil {
		writeError(w, err)
		return
	}
	if appts == nil {
		appts = []appointments.Appointment{}
	}

	writeJSON(w, http.StatusOK, appts)
}

// handleRecentInteractions reads back the classification audit trail for
// a tenant, newest first.
func (h *Handlers) handleRecentInteractions(w http.ResponseWriter, r *http.Request) {
	org := r.URL.Query().Get("organization")
	if org == "" {
		org = tenant.DefaultOrg
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, domain.ErrInvalidRequest("limit must be an integer"))
			return
		}
		limit = n
	}

	interactions, err := h.store.RecentInteractions(r.Context(), org, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if interactions == nil {
		interactions = []*storage.Interaction{}
	}

	writeJSON(w, http.StatusOK, interactions)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if apiErr, ok := domain.AsAPIError(err); ok {
		writeJSON(w, apiErr.HTTPStatusCode(), map[string]interface{}{"error": apiErr})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"error": domain.ErrServer(err.Error()),
	})
}
