/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package summary

import "errors"

var (
	ErrOllamaNotConfigured = errors.New("Ollama configuration incomplete: OLLAMA_URL and OLLAMA_MODEL must be set")
	ErrEmptyResponse       = errors.New("Ollama returned no content")
)
