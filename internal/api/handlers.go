// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/mindreader-tech/mindreader/internal/elicit"
	"github.com/mindreader-tech/mindreader/internal/graph"
	"github.com/mindreader-tech/mindreader/internal/logging"
	"github.com/mindreader-tech/mindreader/internal/models"
)

// ElicitService is the controller surface the handlers call.
type ElicitService interface {
	Begin(ctx context.Context, tok models.Token) (*elicit.Result, error)
	SubmitFeedback(ctx context.Context, tok models.Token, liked, disliked, unknown []string) (*elicit.Result, error)
	Finalize(ctx context.Context, tok models.Token) (*elicit.Result, error)
}

// ReadyChecker reports whether a dependency is able to serve.
type ReadyChecker func(ctx context.Context) error

// Handler holds the HTTP handlers for the elicitation API.
type Handler struct {
	svc   ElicitService
	ready ReadyChecker
}

// NewHandler creates the handler set. ready may be nil, in which case the
// readiness probe always succeeds.
func NewHandler(svc ElicitService, ready ReadyChecker) *Handler {
	return &Handler{svc: svc, ready: ready}
}

// Begin handles GET /api/v1/elicitation/begin.
func (h *Handler) Begin(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	tok, err := tokenFromRequest(r)
	if err != nil {
		rw.BadRequest("missing or empty session token")
		return
	}

	res, err := h.svc.Begin(r.Context(), tok)
	if err != nil {
		h.writeOperationError(rw, tok, "begin", err)
		return
	}
	rw.Success(res)
}

// Feedback handles POST /api/v1/elicitation/feedback.
func (h *Handler) Feedback(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	tok, err := tokenFromRequest(r)
	if err != nil {
		rw.BadRequest("missing or empty session token")
		return
	}

	req, err := decodeFeedback(r)
	if err != nil {
		if details := validationDetails(err); details != nil {
			rw.ValidationFailed("invalid feedback body", details)
			return
		}
		rw.BadRequest(err.Error())
		return
	}

	res, err := h.svc.SubmitFeedback(r.Context(), tok, *req.Liked, *req.Disliked, *req.Unknown)
	if err != nil {
		h.writeOperationError(rw, tok, "feedback", err)
		return
	}
	rw.Success(res)
}

// Finalize handles POST /api/v1/elicitation/finalize.
func (h *Handler) Finalize(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	tok, err := tokenFromRequest(r)
	if err != nil {
		rw.BadRequest("missing or empty session token")
		return
	}

	res, err := h.svc.Finalize(r.Context(), tok)
	if err != nil {
		h.writeOperationError(rw, tok, "finalize", err)
		return
	}
	rw.Success(res)
}

// Health handles GET /api/v1/health: a summary combining liveness and the
// dependency probe, plus the session schema version clients can pin.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	status := "ok"
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			status = "degraded"
		}
	}
	rw.Success(map[string]string{
		"status":  status,
		"version": models.SchemaVersion,
	})
}

// HealthLive handles GET /api/v1/health/live. Liveness is process-up.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady handles GET /api/v1/health/ready. Readiness additionally
// checks the configured dependency probe.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			rw.ServiceUnavailable("dependency not ready: " + err.Error())
			return
		}
	}
	rw.Success(map[string]string{"status": "ready"})
}

// writeOperationError maps controller errors onto the HTTP taxonomy:
// upstream unavailability is 503, everything else is a 500.
func (h *Handler) writeOperationError(rw *ResponseWriter, tok models.Token, operation string, err error) {
	logging.Error().
		Err(err).
		Str("operation", operation).
		Str("token_head", tok.Head).
		Msg("elicitation operation failed")

	if errors.Is(err, graph.ErrUnavailable) {
		rw.ServiceUnavailable("recommendation backend unavailable, try again shortly")
		return
	}
	rw.InternalError("internal error")
}
