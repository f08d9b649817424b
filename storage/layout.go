/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package storage

import (
	"path"
	"strings"
)

// Key prefixes of the object layout
const (
	RawPrefix       = "raw/"
	ProcessedPrefix = "processed/"
	TriggerPrefix   = "to-process/"
	SummaryPrefix   = "summaries/"

	triggerSuffix = ".txt"
	summarySuffix = "-summary.txt"
)

// CleanName reduces an uploaded file name to a single safe path segment.
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	name = path.Base(name)

	if name == "" || name == "." || name == ".." || name == "/" {
		return "", ErrInvalidName
	}

	return name, nil
}

// RawKey is where an uploaded table is stored as received
func RawKey(name string) string {
	return RawPrefix + name
}

// ProcessedKey is where the enriched table is stored
func ProcessedKey(name string) string {
	return ProcessedPrefix + name
}

// TriggerKey marks name as awaiting summarization.
func TriggerKey(name string) string {
	return TriggerPrefix + name + triggerSuffix
}

// SummaryKey is where the generated summary text is stored
func SummaryKey(name string) string {
	return SummaryPrefix + name + summarySuffix
}

// TriggerName returns the upload name a trigger key refers to. Keys outside
// the trigger prefix or without the .txt suffix are not triggers.
func TriggerName(key string) (string, bool) {
	if !strings.HasPrefix(key, TriggerPrefix) || !strings.HasSuffix(key, triggerSuffix) {
		return "", false
	}

	name := strings.TrimSuffix(strings.TrimPrefix(key, TriggerPrefix), triggerSuffix)
	if name == "" || strings.Contains(name, "/") {
		return "", false
	}

	return name, true
}

func validKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.HasSuffix(key, "/") {
		return false
	}

	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}

	return true
}
