package platform

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/okian/codeboard/internal/domain/model"
)

type codeforcesEnvelope[T any] struct {
	Status  string `json:"status"`
	Comment string `json:"comment"`
	Result  T      `json:"result"`
}

type codeforcesSubmission struct {
	Verdict string `json:"verdict"`
	Problem struct {
		ContestID int    `json:"contestId"`
		Index     string `json:"index"`
		Name      string `json:"name"`
	} `json:"problem"`
}

// Codeforces reads the public REST API.
type Codeforces struct {
	client *Client
	cfg    settings
}

// NewCodeforces creates the Codeforces adapter.
func NewCodeforces(c *Client, opts ...Option) *Codeforces {
	return &Codeforces{client: c, cfg: apply(settings{baseURL: "https://codeforces.com/api"}, opts)}
}

// Platform implements Adapter.
func (a *Codeforces) Platform() model.Platform { return model.Codeforces }

// Fetch implements Adapter.
func (a *Codeforces) Fetch(ctx context.Context, username string) (model.PlatformMetrics, error) {
	if err := ValidateUsername(model.Codeforces, username); err != nil {
		return model.PlatformMetrics{}, err
	}
	handle := url.QueryEscape(username)

	var info codeforcesEnvelope[[]struct {
		Handle string `json:"handle"`
	}]
	if err := a.call(ctx, username, "user.info?handles="+handle, &info); err != nil {
		return model.PlatformMetrics{}, err
	}

	var subs codeforcesEnvelope[[]codeforcesSubmission]
	if err := a.call(ctx, username, "user.status?handle="+handle, &subs); err != nil {
		return model.PlatformMetrics{}, err
	}
	solved := make(map[string]struct{})
	for _, s := range subs.Result {
		if s.Verdict != "OK" {
			continue
		}
		key := fmt.Sprintf("%d/%s", s.Problem.ContestID, s.Problem.Index)
		if s.Problem.ContestID == 0 {
			key = s.Problem.Name
		}
		solved[key] = struct{}{}
	}

	var rating codeforcesEnvelope[[]struct {
		ContestID int `json:"contestId"`
	}]
	if err := a.call(ctx, username, "user.rating?handle="+handle, &rating); err != nil {
		return model.PlatformMetrics{}, err
	}

	return platformMetrics(model.Codeforces, map[model.Metric]int64{
		model.ProblemsCF: int64(len(solved)),
		model.ContestsCF: int64(len(rating.Result)),
	}), nil
}

// call performs one API method. The API reports unknown handles as a 400
// with status FAILED and a "not found" comment.
func (a *Codeforces) call(ctx context.Context, username, method string, out interface {
	status() (string, string)
}) error {
	err := a.client.doJSON(ctx, request{
		platform:   model.Codeforces,
		username:   username,
		method:     http.MethodGet,
		url:        strings.TrimRight(a.cfg.baseURL, "/") + "/" + method,
		passStatus: http.StatusBadRequest,
	}, out)
	if err != nil {
		return err
	}
	status, comment := out.status()
	if status == "OK" {
		return nil
	}
	if strings.Contains(strings.ToLower(comment), "not found") {
		return notFound(model.Codeforces, username)
	}
	return transient(model.Codeforces, username, fmt.Errorf("%w: %s", ErrUpstreamStatus, comment))
}

func (e *codeforcesEnvelope[T]) status() (string, string) { return e.Status, e.Comment }
