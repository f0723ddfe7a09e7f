package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/codeboard/internal/domain/model"
)

const leetCodeQuery = `query userProfile($username: String!) {
  matchedUser(username: $username) {
    submitStatsGlobal { acSubmissionNum { difficulty count } }
    badges { id }
  }
  userContestRanking(username: $username) { attendedContestsCount }
}`

type leetCodeResponse struct {
	Data struct {
		MatchedUser *struct {
			SubmitStatsGlobal struct {
				AcSubmissionNum []struct {
					Difficulty string `json:"difficulty"`
					Count      int64  `json:"count"`
				} `json:"acSubmissionNum"`
			} `json:"submitStatsGlobal"`
			Badges []struct {
				ID string `json:"id"`
			} `json:"badges"`
		} `json:"matchedUser"`
		UserContestRanking *struct {
			AttendedContestsCount int64 `json:"attendedContestsCount"`
		} `json:"userContestRanking"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// missingUser classifies a 200 answer without a user. GraphQL reports unknown
// profiles as a "does not exist" error; any other error or an empty answer is
// an upstream fault.
func (r *leetCodeResponse) missingUser(username string) error {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		if strings.Contains(strings.ToLower(e.Message), "does not exist") {
			return notFound(model.LeetCode, username)
		}
		msgs = append(msgs, e.Message)
	}
	if len(msgs) == 0 {
		return transient(model.LeetCode, username, errors.New("leetcode: empty matchedUser"))
	}
	return transient(model.LeetCode, username, fmt.Errorf("leetcode: %s", strings.Join(msgs, "; ")))
}

// LeetCode reads solved counts, contests and badges through GraphQL.
type LeetCode struct {
	client *Client
	cfg    settings
}

// NewLeetCode creates the LeetCode adapter.
func NewLeetCode(c *Client, opts ...Option) *LeetCode {
	return &LeetCode{client: c, cfg: apply(settings{graphqlURL: "https://leetcode.com/graphql"}, opts)}
}

// Platform implements Adapter.
func (a *LeetCode) Platform() model.Platform { return model.LeetCode }

// Fetch implements Adapter.
func (a *LeetCode) Fetch(ctx context.Context, username string) (model.PlatformMetrics, error) {
	if err := ValidateUsername(model.LeetCode, username); err != nil {
		return model.PlatformMetrics{}, err
	}
	body, err := json.Marshal(map[string]any{
		"query":     leetCodeQuery,
		"variables": map[string]string{"username": username},
	})
	if err != nil {
		return model.PlatformMetrics{}, transient(model.LeetCode, username, err)
	}

	var out leetCodeResponse
	err = a.client.doJSON(ctx, request{
		platform: model.LeetCode,
		username: username,
		method:   http.MethodPost,
		url:      a.cfg.graphqlURL,
		body:     bytes.NewReader(body),
		headers:  map[string]string{"Content-Type": "application/json", "Referer": "https://leetcode.com"},
	}, &out)
	if err != nil {
		return model.PlatformMetrics{}, err
	}

	user := out.Data.MatchedUser
	if user == nil {
		return model.PlatformMetrics{}, out.missingUser(username)
	}

	values := map[model.Metric]int64{}
	for _, row := range user.SubmitStatsGlobal.AcSubmissionNum {
		switch strings.ToLower(row.Difficulty) {
		case "easy":
			values[model.EasyLC] = row.Count
		case "medium":
			values[model.MediumLC] = row.Count
		case "hard":
			values[model.HardLC] = row.Count
		}
	}
	values[model.BadgesLC] = int64(len(user.Badges))
	if out.Data.UserContestRanking != nil {
		values[model.ContestsLC] = out.Data.UserContestRanking.AttendedContestsCount
	}
	return platformMetrics(model.LeetCode, values), nil
}
