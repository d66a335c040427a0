// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

// Package api exposes the elicitation loop over HTTP.
//
// The session token travels in the Authorization header verbatim; it names
// the session and carries no credential semantics. All responses share the
// APIResponse envelope. Backend trouble surfaces as 503 so clients can
// retry; malformed requests are 400.
package api
