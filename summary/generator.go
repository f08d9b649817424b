/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package summary

import (
	"context"
	"sync/atomic"
)

// Generator turns a prompt into summary text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	// Model names the model used, for record keeping.
	Model() string
}

// Static returns the same text for every prompt. Tests use it in place of a
// language model; it is safe for concurrent use.
type Static struct {
	Text string
	Name string

	calls atomic.Int64
}

func (s *Static) Generate(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.calls.Add(1)

	return s.Text, nil
}

// Calls reports how many prompts were answered.
func (s *Static) Calls() int {
	return int(s.calls.Load())
}

func (s *Static) Model() string {
	if s.Name == "" {
		return "static"
	}

	return s.Name
}
