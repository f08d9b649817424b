/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package storage

import "errors"

var (
	ErrNotFound             = errors.New("object not found")
	ErrInvalidKey           = errors.New("invalid object key")
	ErrInvalidName          = errors.New("invalid file name")
	ErrWebDAVNotConfigured  = errors.New("WebDAV storage not configured: WEBDAV_URL must be set")
	ErrUnexpectedObjectSize = errors.New("stored object size mismatch")
)
