/*
 * Copyright 2025 Humaid Alqasimi
 * SPDX-License-Identifier: Apache-2.0
 */
package routes

import (
	"os"
	"strings"

	"github.com/flamego/template"
)

const (
	defaultSiteTitle = "LabInsight"
	siteTitleEnvVar  = "SITE_TITLE"
)

func setSiteTitle(data template.Data) {
	title := strings.TrimSpace(os.Getenv(siteTitleEnvVar))
	if title == "" {
		title = defaultSiteTitle
	}

	data["SiteTitle"] = title
}
