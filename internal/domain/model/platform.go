// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
)

// Platform identifies an external coding platform.
type Platform string

// Supported platforms.
const (
	LeetCode   Platform = "leetcode"
	CodeChef   Platform = "codechef"
	Codeforces Platform = "codeforces"
	HackerRank Platform = "hackerrank"
	GitHub     Platform = "github"
)

// Platforms lists every supported platform in display order.
var Platforms = []Platform{LeetCode, CodeChef, Codeforces, HackerRank, GitHub}

// Valid reports whether p is a supported platform.
func (p Platform) Valid() bool {
	switch p {
	case LeetCode, CodeChef, Codeforces, HackerRank, GitHub:
		return true
	}
	return false
}

// ParsePlatform normalizes and validates a platform name.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown platform %q", ErrInvalidInput, s)
	}
	return p, nil
}

func (p Platform) String() string { return string(p) }
