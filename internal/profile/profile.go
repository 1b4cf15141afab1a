// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package profile

import (
	"fmt"
	"os"
	"strings"
)

type ProfileType string

var Current = DEV // dev profile as default

const (
	DEV  ProfileType = "DEV"
	TEST ProfileType = "TEST"
	PROD ProfileType = "PROD"
)

// Parse returns the profile for name, unknown names resolve to DEV
func Parse(name string) ProfileType {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "TEST":
		return TEST
	case "PROD":
		return PROD
	default:
		return DEV
	}
}

func InitProfile() {
	Current = Parse(os.Getenv("PROFILE"))
	fmt.Printf("Current profile: %s\n", Current)
}

// DefaultLogFormat is used when LOG_FORMAT is not set
func (p ProfileType) DefaultLogFormat() string {
	if p == PROD {
		return "json"
	}
	return "text"
}
