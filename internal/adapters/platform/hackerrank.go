package platform

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/okian/codeboard/internal/domain/model"
)

// HackerRank reads the badges endpoint.
type HackerRank struct {
	client *Client
	cfg    settings
}

// NewHackerRank creates the HackerRank adapter.
func NewHackerRank(c *Client, opts ...Option) *HackerRank {
	return &HackerRank{client: c, cfg: apply(settings{baseURL: "https://www.hackerrank.com"}, opts)}
}

// Platform implements Adapter.
func (a *HackerRank) Platform() model.Platform { return model.HackerRank }

// Fetch implements Adapter.
func (a *HackerRank) Fetch(ctx context.Context, username string) (model.PlatformMetrics, error) {
	if err := ValidateUsername(model.HackerRank, username); err != nil {
		return model.PlatformMetrics{}, err
	}
	var out struct {
		Models []struct {
			BadgeName string `json:"badge_name"`
			Stars     int64  `json:"stars"`
		} `json:"models"`
	}
	err := a.client.doJSON(ctx, request{
		platform: model.HackerRank,
		username: username,
		method:   http.MethodGet,
		url:      strings.TrimRight(a.cfg.baseURL, "/") + "/rest/hackers/" + url.PathEscape(username) + "/badges",
	}, &out)
	if err != nil {
		return model.PlatformMetrics{}, err
	}

	var stars int64
	for _, b := range out.Models {
		stars += b.Stars
	}
	return platformMetrics(model.HackerRank, map[model.Metric]int64{
		model.BadgesHR: int64(len(out.Models)),
		model.StarsHR:  stars,
	}), nil
}
