// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

package api

import (
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/mindreader-tech/mindreader/internal/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// FeedbackRequest is the body of POST /api/v1/elicitation/feedback.
//
// All three lists must be present; empty lists are valid (a page where the
// user skipped everything still advances the loop). Pointer slices
// distinguish a missing key from an empty list.
type FeedbackRequest struct {
	Liked    *[]string `json:"liked" validate:"required"`
	Disliked *[]string `json:"disliked" validate:"required"`
	Unknown  *[]string `json:"unknown" validate:"required"`
}

// decodeFeedback parses and validates a feedback body.
func decodeFeedback(r *http.Request) (*FeedbackRequest, error) {
	var req FeedbackRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, fmt.Errorf("malformed JSON body: %w", err)
	}
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	for _, list := range [][]string{*req.Liked, *req.Disliked, *req.Unknown} {
		for _, uri := range list {
			if uri == "" {
				return nil, fmt.Errorf("entity uri must not be empty")
			}
		}
	}
	return &req, nil
}

// validationDetails flattens validator errors into field/tag pairs clients
// can act on.
func validationDetails(err error) interface{} {
	var verrs validator.ValidationErrors
	if !asValidationErrors(err, &verrs) {
		return nil
	}
	details := make([]map[string]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, map[string]string{
			"field": fe.Field(),
			"tag":   fe.Tag(),
		})
	}
	return details
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors) //nolint:errorlint // validator returns the slice directly
	if ok {
		*target = verrs
	}
	return ok
}

// tokenFromRequest extracts the session token from the Authorization
// header. The raw header value is the token; there is no auth scheme here,
// the token only names the session.
func tokenFromRequest(r *http.Request) (models.Token, error) {
	return models.ParseToken(r.Header.Get("Authorization"))
}
