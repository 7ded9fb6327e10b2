// Package http provides the inbound HTTP surface: JSON endpoints for
// queries and SSE endpoints for streamed generation. Authentication is
// terminated upstream; the authenticated user id arrives in the
// X-User-ID header.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/luminote/luminote/app"
	"github.com/luminote/luminote/domain/llm"
	"github.com/luminote/luminote/ports"
)

const userHeader = "X-User-ID"

// streamFailureMsg is the final line sent when generation fails after
// all retries; the stream is already open so the status is always 200.
const streamFailureMsg = "生成失败，请稍后重试"

// Services groups the application services the handlers dispatch to.
type Services struct {
	Chat      *app.ChatService
	Questions *app.QuestionService
	Summary   *app.SummaryService
	Advice    *app.AdviceService
	Graph     *app.GraphService
	Billing   *app.BillingService
	Users     *app.UserService
}

// Handler serves the API.
type Handler struct {
	services Services
	limiter  ports.RateLimiter
	logger   zerolog.Logger

	// Per-user stream budget for the fixed window.
	streamWindow time.Duration
	streamMax    int
}

// HandlerConfig tunes the per-user rate limit on generation endpoints.
type HandlerConfig struct {
	StreamWindow time.Duration
	StreamMax    int
}

// NewHandler creates the API handler.
func NewHandler(services Services, limiter ports.RateLimiter, cfg HandlerConfig, logger zerolog.Logger) *Handler {
	if cfg.StreamWindow <= 0 {
		cfg.StreamWindow = time.Minute
	}
	if cfg.StreamMax <= 0 {
		cfg.StreamMax = 20
	}
	return &Handler{
		services:     services,
		limiter:      limiter,
		logger:       logger,
		streamWindow: cfg.StreamWindow,
		streamMax:    cfg.StreamMax,
	}
}

func userID(r *http.Request) string {
	return r.Header.Get(userHeader)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requireUser rejects requests without an authenticated user id.
func (h *Handler) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if userID(r) == "" {
			writeError(w, http.StatusUnauthorized, "missing user identity")
			return
		}
		next(w, r)
	}
}

// allowStream applies the per-user fixed window to a generation
// endpoint. feature keeps windows separate per endpoint family.
func (h *Handler) allowStream(r *http.Request, feature string) bool {
	key := "rate:" + feature + ":" + userID(r)
	return h.limiter.Allow(r.Context(), key, h.streamWindow, h.streamMax)
}

// openStream performs the shared preamble of every SSE endpoint.
func (h *Handler) openStream(w http.ResponseWriter, r *http.Request, feature string) (*SSEWriter, bool) {
	if !h.allowStream(r, feature) {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return nil, false
	}
	sse, err := NewSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return nil, false
	}
	return sse, true
}

// finishStream translates the pipeline outcome onto an open stream.
func (h *Handler) finishStream(sse *SSEWriter, r *http.Request, err error) {
	switch {
	case err == nil:
		if err := sse.Done(); err != nil {
			h.logger.Debug().Err(err).Msg("client gone before terminal sentinel")
		}
	case errors.Is(err, r.Context().Err()) && r.Context().Err() != nil:
		// Client disconnected; nothing to write.
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("stream failed")
		sse.Fail(streamFailureMsg)
	}
}

type chatRequest struct {
	ConversationID string           `json:"conversation_id"`
	Question       string           `json:"question"`
	ImageURL       string           `json:"image_url,omitempty"`
	AudioURL       string           `json:"audio_url,omitempty"`
	Math           bool             `json:"math,omitempty"`
	History        []historyMessage `json:"history,omitempty"`
}

type historyMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (h *Handler) handleChatStream(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Question) == "" && req.AudioURL == "" {
		writeError(w, http.StatusBadRequest, "question or audio_url is required")
		return
	}

	history := make([]llm.Message, 0, len(req.History))
	for _, m := range req.History {
		if m.Role == "" || m.Content == "" {
			continue
		}
		history = append(history, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}

	sse, ok := h.openStream(w, r, "chat")
	if !ok {
		return
	}
	_, err := h.services.Chat.Stream(r.Context(), app.ChatRequest{
		UserID:         userID(r),
		ConversationID: req.ConversationID,
		Question:       req.Question,
		ImageURL:       req.ImageURL,
		AudioURL:       req.AudioURL,
		Math:           req.Math,
		History:        history,
	}, sse)
	if errors.Is(err, app.ErrInsufficientBalance) {
		writeError(w, http.StatusPaymentRequired, "insufficient token balance")
		return
	}
	h.finishStream(sse, r, err)
}

func (h *Handler) handleQuestionAnswer(w http.ResponseWriter, r *http.Request) {
	h.streamQuestion(w, r, h.services.Questions.StreamAnswer)
}

func (h *Handler) handleQuestionSimilar(w http.ResponseWriter, r *http.Request) {
	h.streamQuestion(w, r, h.services.Questions.StreamSimilar)
}

func (h *Handler) handleQuestionSimilarAnswer(w http.ResponseWriter, r *http.Request) {
	h.streamQuestion(w, r, h.services.Questions.StreamSimilarAnswer)
}

type questionStreamFn func(ctx context.Context, userID, questionID string, sink app.Sink) (llm.StreamResult, error)

func (h *Handler) streamQuestion(w http.ResponseWriter, r *http.Request, fn questionStreamFn) {
	questionID := chi.URLParam(r, "id")

	sse, ok := h.openStream(w, r, "question")
	if !ok {
		return
	}
	_, err := fn(r.Context(), userID(r), questionID, sse)
	if errors.Is(err, app.ErrInsufficientBalance) {
		writeError(w, http.StatusPaymentRequired, "insufficient token balance")
		return
	}
	h.finishStream(sse, r, err)
}

func (h *Handler) handleSummaryStream(w http.ResponseWriter, r *http.Request) {
	chapterID := chi.URLParam(r, "id")

	// A fresh cached summary is served without opening a stream.
	if cached, ok := h.services.Summary.Cached(r.Context(), chapterID); ok {
		writeJSON(w, http.StatusOK, map[string]string{"summary": cached})
		return
	}

	sse, ok := h.openStream(w, r, "summary")
	if !ok {
		return
	}
	_, err := h.services.Summary.Stream(r.Context(), userID(r), chapterID, sse)
	if errors.Is(err, app.ErrInsufficientBalance) {
		writeError(w, http.StatusPaymentRequired, "insufficient token balance")
		return
	}
	h.finishStream(sse, r, err)
}

func (h *Handler) handleAdvice(w http.ResponseWriter, r *http.Request) {
	if cached, ok := h.services.Advice.Cached(r.Context(), userID(r)); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	sse, ok := h.openStream(w, r, "advice")
	if !ok {
		return
	}
	_, err := h.services.Advice.Stream(r.Context(), userID(r), sse)
	if errors.Is(err, app.ErrInsufficientBalance) {
		writeError(w, http.StatusPaymentRequired, "insufficient token balance")
		return
	}
	h.finishStream(sse, r, err)
}

func (h *Handler) handleGraphExtract(w http.ResponseWriter, r *http.Request) {
	chapterID := chi.URLParam(r, "id")
	if !h.allowStream(r, "graph") {
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	result, err := h.services.Graph.Extract(r.Context(), userID(r), chapterID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{"graph_id": result.GraphID, "graph": result.Graph})
	case errors.Is(err, app.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, "insufficient token balance")
	default:
		var parseErr *llm.ParseError
		if errors.As(err, &parseErr) {
			writeError(w, http.StatusBadGateway, "model returned an unusable graph, try again")
			return
		}
		h.logger.Error().Err(err).Str("chapter_id", chapterID).Msg("graph extraction failed")
		writeError(w, http.StatusInternalServerError, "graph extraction failed")
	}
}

func (h *Handler) handleGraphGet(w http.ResponseWriter, r *http.Request) {
	chapterID := chi.URLParam(r, "id")
	graph, err := h.services.Graph.Get(r.Context(), chapterID)
	if err != nil {
		writeError(w, http.StatusNotFound, "no graph for chapter")
		return
	}
	writeJSON(w, http.StatusOK, graph)
}

func (h *Handler) handleTokenUsage(w http.ResponseWriter, r *http.Request) {
	records, err := h.services.Billing.BiweeklyUsage(r.Context(), userID(r))
	if err != nil {
		h.logger.Error().Err(err).Msg("usage query failed")
		writeError(w, http.StatusInternalServerError, "usage query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"usage": records})
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.services.Billing.CurrentBalance(r.Context(), userID(r))
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"balance": balance})
}

func (h *Handler) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.services.Users.Info(r.Context(), userID(r))
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

type pictureRequest struct {
	PictureURL string `json:"picture_url"`
}

func (h *Handler) handleProfilePicture(w http.ResponseWriter, r *http.Request) {
	var req pictureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PictureURL == "" {
		writeError(w, http.StatusBadRequest, "picture_url is required")
		return
	}
	if err := h.services.Users.UpdateProfilePicture(r.Context(), userID(r), req.PictureURL); err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"picture_url": req.PictureURL})
}

// NewRouter creates the main HTTP router.
func NewRouter(h *Handler, logger zerolog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat/stream", h.requireUser(h.handleChatStream))
		r.Post("/questions/{id}/answer", h.requireUser(h.handleQuestionAnswer))
		r.Post("/questions/{id}/similar", h.requireUser(h.handleQuestionSimilar))
		r.Post("/questions/{id}/similar/answer", h.requireUser(h.handleQuestionSimilarAnswer))
		r.Post("/chapters/{id}/summary/stream", h.requireUser(h.handleSummaryStream))
		r.Post("/chapters/{id}/graph", h.requireUser(h.handleGraphExtract))
		r.Get("/chapters/{id}/graph", h.requireUser(h.handleGraphGet))
		r.Get("/user/advice", h.requireUser(h.handleAdvice))
		r.Get("/user/token-usage", h.requireUser(h.handleTokenUsage))
		r.Get("/user/balance", h.requireUser(h.handleBalance))
		r.Get("/user/info", h.requireUser(h.handleUserInfo))
		r.Put("/user/profile-picture", h.requireUser(h.handleProfilePicture))
	})

	return r
}

// NewLoggingMiddleware logs HTTP requests.
func NewLoggingMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
