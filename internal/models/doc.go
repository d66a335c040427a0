// MindReader - Conversational Preference Elicitation for Movie Recommendations
// Copyright 2026 The MindReader Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mindreader-tech/mindreader

// Package models defines the shared data types of the elicitation core:
// entities, feedback sessions, and compound session tokens.
//
// This package has no dependencies on other internal packages so that the
// store, sampler, controller, and API layers can all share these types
// without import cycles.
package models
