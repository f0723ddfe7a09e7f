// Package platform implements the external coding-platform adapters. Every
// adapter fetches one profile and normalizes it into the metric catalogue.
package platform

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/okian/codeboard/internal/domain/model"
)

// Adapter fetches normalized metrics for one username on one platform.
type Adapter interface {
	Platform() model.Platform
	Fetch(ctx context.Context, username string) (model.PlatformMetrics, error)
}

var usernamePatterns = map[model.Platform]*regexp.Regexp{
	model.LeetCode:   regexp.MustCompile(`^[A-Za-z0-9_.-]{1,40}$`),
	model.CodeChef:   regexp.MustCompile(`^[A-Za-z0-9_]{1,30}$`),
	model.Codeforces: regexp.MustCompile(`^[A-Za-z0-9_.-]{3,24}$`),
	model.HackerRank: regexp.MustCompile(`^[A-Za-z0-9_.-]{1,40}$`),
	model.GitHub:     regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9]|-[A-Za-z0-9]){0,38}$`),
}

// ValidateUsername checks username against the platform pattern.
func ValidateUsername(p model.Platform, username string) error {
	if strings.TrimSpace(username) == "" {
		return invalidUsername(p, username, ErrEmptyUsername)
	}
	re, ok := usernamePatterns[p]
	if !ok {
		return fmt.Errorf("%w: platform %q", model.ErrInvalidInput, p)
	}
	if !re.MatchString(username) {
		return invalidUsername(p, username, ErrMalformedUsername)
	}
	return nil
}

// Registry maps platforms to adapters.
type Registry map[model.Platform]Adapter

// NewRegistry indexes adapters by platform.
func NewRegistry(adapters ...Adapter) Registry {
	r := make(Registry, len(adapters))
	for _, a := range adapters {
		r[a.Platform()] = a
	}
	return r
}

// Get returns the adapter of p.
func (r Registry) Get(p model.Platform) (Adapter, bool) {
	a, ok := r[p]
	return a, ok
}

// Defaults builds the five concrete adapters over one shared client.
func Defaults(c *Client, githubToken string) Registry {
	return NewRegistry(
		NewLeetCode(c),
		NewCodeChef(c),
		NewCodeforces(c),
		NewHackerRank(c),
		NewGitHub(c, WithGitHubToken(githubToken)),
	)
}

func platformMetrics(p model.Platform, values map[model.Metric]int64) model.PlatformMetrics {
	return model.PlatformMetrics{Platform: p, Values: values}
}
