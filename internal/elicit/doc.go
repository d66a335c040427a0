// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

// Package elicit drives the preference-elicitation loop.
//
// The Controller answers three questions per request: what to ask next,
// whether enough has been asked, and what to probe with at the end. While
// eliciting, each batch mixes graph neighbors of the rated seed with
// filler movies; once the rated count crosses the configured threshold the
// Aggregator takes over and builds the two final prediction probes.
package elicit
