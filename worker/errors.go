/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package worker

import "errors"

var ErrIncompleteConfig = errors.New("worker requires a store, a pipeline and a generator")
