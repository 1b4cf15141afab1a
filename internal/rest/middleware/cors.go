// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package middleware

import (
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/cors"
)

// Cors allows browser clients of given origins, credentials are only allowed for explicitly listed origins
func Cors(allowedOrigins []string) func(next http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Origin", "X-Correlation-Id"},
		ExposedHeaders:   []string{"Content-Length", "X-Correlation-Id"},
		AllowCredentials: !slices.Contains(allowedOrigins, "*"),
		MaxAge:           int((12 * time.Hour).Seconds()),
	})
}
