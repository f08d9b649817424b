/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import "errors"

var (
	errUploadTooLarge = errors.New("file exceeds the upload size limit")
	errNoFile         = errors.New("no file selected")
	errInvalidID      = errors.New("invalid upload id")
)
