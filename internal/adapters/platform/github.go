package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/okian/codeboard/internal/domain/model"
)

const gitHubContributionsQuery = `query($login: String!) {
  user(login: $login) {
    contributionsCollection { contributionCalendar { totalContributions } }
  }
}`

// GitHub reads public repositories and, with a token, the contribution total.
type GitHub struct {
	client *Client
	cfg    settings
}

// NewGitHub creates the GitHub adapter.
func NewGitHub(c *Client, opts ...Option) *GitHub {
	return &GitHub{client: c, cfg: apply(settings{
		baseURL:    "https://api.github.com",
		graphqlURL: "https://api.github.com/graphql",
	}, opts)}
}

// Platform implements Adapter.
func (a *GitHub) Platform() model.Platform { return model.GitHub }

// Fetch implements Adapter.
func (a *GitHub) Fetch(ctx context.Context, username string) (model.PlatformMetrics, error) {
	if err := ValidateUsername(model.GitHub, username); err != nil {
		return model.PlatformMetrics{}, err
	}

	headers := map[string]string{"X-GitHub-Api-Version": "2022-11-28"}
	if a.cfg.token != "" {
		headers["Authorization"] = "Bearer " + a.cfg.token
	}

	var user struct {
		Login       string `json:"login"`
		PublicRepos int64  `json:"public_repos"`
	}
	err := a.client.doJSON(ctx, request{
		platform: model.GitHub,
		username: username,
		method:   http.MethodGet,
		url:      strings.TrimRight(a.cfg.baseURL, "/") + "/users/" + url.PathEscape(username),
		headers:  copyHeaders(headers),
	}, &user)
	if err != nil {
		return model.PlatformMetrics{}, err
	}

	values := map[model.Metric]int64{model.ReposGH: user.PublicRepos}
	if a.cfg.token == "" {
		return platformMetrics(model.GitHub, values), nil
	}

	body, err := json.Marshal(map[string]any{
		"query":     gitHubContributionsQuery,
		"variables": map[string]string{"login": username},
	})
	if err != nil {
		return model.PlatformMetrics{}, transient(model.GitHub, username, err)
	}
	var contrib struct {
		Data struct {
			User *struct {
				ContributionsCollection struct {
					ContributionCalendar struct {
						TotalContributions int64 `json:"totalContributions"`
					} `json:"contributionCalendar"`
				} `json:"contributionsCollection"`
			} `json:"user"`
		} `json:"data"`
	}
	gh := copyHeaders(headers)
	gh["Content-Type"] = "application/json"
	err = a.client.doJSON(ctx, request{
		platform: model.GitHub,
		username: username,
		method:   http.MethodPost,
		url:      a.cfg.graphqlURL,
		body:     bytes.NewReader(body),
		headers:  gh,
	}, &contrib)
	if err != nil {
		return model.PlatformMetrics{}, err
	}
	if contrib.Data.User != nil {
		values[model.ContributionsGH] = contrib.Data.User.ContributionsCollection.ContributionCalendar.TotalContributions
	}
	return platformMetrics(model.GitHub, values), nil
}

func copyHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h)+1)
	for k, v := range h {
		out[k] = v
	}
	return out
}
