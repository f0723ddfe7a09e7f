package platform

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/codeboard/internal/domain/model"
	"github.com/okian/codeboard/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

// upstreamSamples returns the observation count of the per-request latency
// histogram for platform and status class.
func upstreamSamples(platform, class string) uint64 {
	families, err := metrics.GetRegistry().Gather()
	if err != nil {
		return 0
	}
	for _, f := range families {
		if f.GetName() != "codeboard_sync_upstream_request_latency_milliseconds" {
			continue
		}
		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["platform"] == platform && labels["status_class"] == class {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func fastClient() *Client {
	opts := []ClientOption{WithTimeout(2 * time.Second)}
	for _, p := range model.Platforms {
		opts = append(opts, WithRateLimit(p, 1000, 100))
	}
	return NewClient(opts...)
}

func TestValidateUsername(t *testing.T) {
	Convey("Given per-platform username patterns", t, func() {
		Convey("Then valid usernames pass", func() {
			So(ValidateUsername(model.LeetCode, "neal_wu"), ShouldBeNil)
			So(ValidateUsername(model.GitHub, "octo-cat"), ShouldBeNil)
			So(ValidateUsername(model.Codeforces, "tourist"), ShouldBeNil)
		})

		Convey("Then empty and malformed usernames are InvalidUsername", func() {
			for _, tc := range []struct {
				p    model.Platform
				user string
			}{
				{model.LeetCode, ""},
				{model.LeetCode, "   "},
				{model.GitHub, "-leading"},
				{model.GitHub, "double--dash"},
				{model.Codeforces, "ab"},
				{model.CodeChef, "has space"},
				{model.HackerRank, "semi;colon"},
			} {
				err := ValidateUsername(tc.p, tc.user)
				So(KindOf(err), ShouldEqual, KindInvalidUsername)
				So(IsRetryable(err), ShouldBeFalse)
			}
		})

		Convey("Then an unknown platform is invalid input", func() {
			err := ValidateUsername(model.Platform("topcoder"), "x")
			So(errors.Is(err, model.ErrInvalidInput), ShouldBeTrue)
		})
	})
}

func TestLeetCode(t *testing.T) {
	Convey("Given a fake LeetCode GraphQL endpoint", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Variables map[string]string `json:"variables"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			switch req.Variables["username"] {
			case "ghost":
				_, _ = io.WriteString(w, `{"data":{"matchedUser":null,"userContestRanking":null},"errors":[{"message":"That user does not exist."}]}`)
				return
			case "throttled":
				_, _ = io.WriteString(w, `{"data":{"matchedUser":null,"userContestRanking":null},"errors":[{"message":"too many requests, please slow down"}]}`)
				return
			case "blank":
				_, _ = io.WriteString(w, `{"data":{"matchedUser":null}}`)
				return
			}
			_, _ = io.WriteString(w, `{"data":{"matchedUser":{"submitStatsGlobal":{"acSubmissionNum":[
				{"difficulty":"All","count":60},{"difficulty":"Easy","count":30},
				{"difficulty":"Medium","count":25},{"difficulty":"Hard","count":5}]},
				"badges":[{"id":"1"},{"id":"2"}]},
				"userContestRanking":{"attendedContestsCount":7}}}`)
		}))
		defer srv.Close()
		a := NewLeetCode(fastClient(), WithGraphQLURL(srv.URL))

		Convey("When fetching an existing user", func() {
			pm, err := a.Fetch(context.Background(), "alice")

			Convey("Then metrics are normalized", func() {
				So(err, ShouldBeNil)
				So(pm.Platform, ShouldEqual, model.LeetCode)
				So(pm.Values[model.EasyLC], ShouldEqual, int64(30))
				So(pm.Values[model.MediumLC], ShouldEqual, int64(25))
				So(pm.Values[model.HardLC], ShouldEqual, int64(5))
				So(pm.Values[model.ContestsLC], ShouldEqual, int64(7))
				So(pm.Values[model.BadgesLC], ShouldEqual, int64(2))
			})
		})

		Convey("When fetching an unknown user", func() {
			_, err := a.Fetch(context.Background(), "ghost")

			Convey("Then the error is NotFound", func() {
				So(KindOf(err), ShouldEqual, KindNotFound)
			})
		})

		Convey("When GraphQL reports another error with a null user", func() {
			_, errThrottled := a.Fetch(context.Background(), "throttled")
			_, errBlank := a.Fetch(context.Background(), "blank")

			Convey("Then the errors are transient and retryable", func() {
				So(KindOf(errThrottled), ShouldEqual, KindTransient)
				So(errThrottled.Error(), ShouldContainSubstring, "too many requests")
				So(KindOf(errBlank), ShouldEqual, KindTransient)
			})
		})
	})
}

func TestCodeChef(t *testing.T) {
	Convey("Given a fake CodeChef profile page", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasSuffix(r.URL.Path, "/nobody") {
				_, _ = io.WriteString(w, `<html><body><div class="home"></div></body></html>`)
				return
			}
			_, _ = io.WriteString(w, `<html><body><div class="user-profile-container">
				<div class="rating-star"><span>★</span><span>★</span><span>★</span></div>
				<div class="contest-participated-count">Contests Participated: <b>12</b></div>
				<section class="rating-data-section problems-solved">
					<h3>Contests (12)</h3>
					<h3>Total Problems Solved: 148</h3>
				</section></div></body></html>`)
		}))
		defer srv.Close()
		a := NewCodeChef(fastClient(), WithBaseURL(srv.URL))

		Convey("When fetching an existing user", func() {
			pm, err := a.Fetch(context.Background(), "chef_1")

			Convey("Then the page is parsed", func() {
				So(err, ShouldBeNil)
				So(pm.Values[model.ProblemsCC], ShouldEqual, int64(148))
				So(pm.Values[model.ContestsCC], ShouldEqual, int64(12))
				So(pm.Values[model.StarsCC], ShouldEqual, int64(3))
			})
		})

		Convey("When the profile is missing", func() {
			_, err := a.Fetch(context.Background(), "nobody")

			Convey("Then the error is NotFound", func() {
				So(KindOf(err), ShouldEqual, KindNotFound)
			})
		})
	})
}

func TestCodeforces(t *testing.T) {
	Convey("Given a fake Codeforces API", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.RawQuery, "ghost") {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"status":"FAILED","comment":"handles: User with handle ghost not found"}`)
				return
			}
			switch r.URL.Path {
			case "/user.info":
				_, _ = io.WriteString(w, `{"status":"OK","result":[{"handle":"tourist"}]}`)
			case "/user.status":
				_, _ = io.WriteString(w, `{"status":"OK","result":[
					{"verdict":"OK","problem":{"contestId":1,"index":"A"}},
					{"verdict":"OK","problem":{"contestId":1,"index":"A"}},
					{"verdict":"WRONG_ANSWER","problem":{"contestId":1,"index":"B"}},
					{"verdict":"OK","problem":{"contestId":2,"index":"C"}}]}`)
			case "/user.rating":
				_, _ = io.WriteString(w, `{"status":"OK","result":[{"contestId":1},{"contestId":2},{"contestId":3}]}`)
			}
		}))
		defer srv.Close()
		a := NewCodeforces(fastClient(), WithBaseURL(srv.URL))

		Convey("When fetching an existing handle", func() {
			pm, err := a.Fetch(context.Background(), "tourist")

			Convey("Then distinct accepted problems and rated contests are counted", func() {
				So(err, ShouldBeNil)
				So(pm.Values[model.ProblemsCF], ShouldEqual, int64(2))
				So(pm.Values[model.ContestsCF], ShouldEqual, int64(3))
			})
		})

		Convey("When one fetch issues three requests", func() {
			before := upstreamSamples("codeforces", "2xx")
			_, err := a.Fetch(context.Background(), "tourist")

			Convey("Then each request is observed once on the upstream histogram", func() {
				So(err, ShouldBeNil)
				So(upstreamSamples("codeforces", "2xx")-before, ShouldEqual, uint64(3))
			})
		})

		Convey("When the handle does not exist", func() {
			_, err := a.Fetch(context.Background(), "ghost")

			Convey("Then the error is NotFound", func() {
				So(KindOf(err), ShouldEqual, KindNotFound)
			})
		})
	})
}

func TestHackerRankAndStatusMapping(t *testing.T) {
	Convey("Given a fake HackerRank endpoint", t, func() {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			switch {
			case strings.Contains(r.URL.Path, "/busy/"):
				w.WriteHeader(http.StatusTooManyRequests)
			case strings.Contains(r.URL.Path, "/broken/"):
				w.WriteHeader(http.StatusBadGateway)
			case strings.Contains(r.URL.Path, "/garbage/"):
				_, _ = io.WriteString(w, `{"models": [`)
			case strings.Contains(r.URL.Path, "/missing/"):
				w.WriteHeader(http.StatusNotFound)
			default:
				_, _ = io.WriteString(w, `{"models":[{"badge_name":"Python","stars":5},{"badge_name":"SQL","stars":3},{"badge_name":"C"}]}`)
			}
		}))
		defer srv.Close()
		a := NewHackerRank(fastClient(), WithBaseURL(srv.URL))
		ctx := context.Background()

		Convey("When the profile exists", func() {
			pm, err := a.Fetch(ctx, "hacker")

			Convey("Then badges and stars are summed, missing fields default to zero", func() {
				So(err, ShouldBeNil)
				So(pm.Values[model.BadgesHR], ShouldEqual, int64(3))
				So(pm.Values[model.StarsHR], ShouldEqual, int64(8))
			})
		})

		Convey("When upstream throttles, fails or sends garbage", func() {
			Convey("Then the errors are transient", func() {
				for _, u := range []string{"busy", "broken", "garbage"} {
					_, err := a.Fetch(ctx, u)
					So(KindOf(err), ShouldEqual, KindTransient)
					So(IsRetryable(err), ShouldBeTrue)
				}
			})
		})

		Convey("When upstream answers 404", func() {
			_, err := a.Fetch(ctx, "missing")

			Convey("Then the error is NotFound and not retryable", func() {
				var fe *FetchError
				So(errors.As(err, &fe), ShouldBeTrue)
				So(fe.Kind, ShouldEqual, KindNotFound)
				So(fe.Retryable(), ShouldBeFalse)
				So(fe.Platform, ShouldEqual, model.HackerRank)
			})
		})

		Convey("When the username is malformed", func() {
			_, err := a.Fetch(ctx, "no way")

			Convey("Then no request is made", func() {
				So(KindOf(err), ShouldEqual, KindInvalidUsername)
				So(calls.Load(), ShouldEqual, int32(0))
			})
		})
	})
}

func TestGitHub(t *testing.T) {
	Convey("Given a fake GitHub API", t, func() {
		var auth atomic.Value
		auth.Store("")
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth.Store(r.Header.Get("Authorization"))
			if r.URL.Path == "/graphql" {
				_, _ = io.WriteString(w, `{"data":{"user":{"contributionsCollection":{"contributionCalendar":{"totalContributions":321}}}}}`)
				return
			}
			_, _ = io.WriteString(w, `{"login":"octocat","public_repos":8}`)
		}))
		defer srv.Close()

		Convey("When no token is configured", func() {
			a := NewGitHub(fastClient(), WithBaseURL(srv.URL), WithGraphQLURL(srv.URL+"/graphql"))
			pm, err := a.Fetch(context.Background(), "octocat")

			Convey("Then only repositories are reported", func() {
				So(err, ShouldBeNil)
				So(pm.Values[model.ReposGH], ShouldEqual, int64(8))
				So(pm.Values[model.ContributionsGH], ShouldEqual, int64(0))
			})
		})

		Convey("When a token is configured", func() {
			a := NewGitHub(fastClient(), WithBaseURL(srv.URL), WithGraphQLURL(srv.URL+"/graphql"), WithGitHubToken("t0k"))
			pm, err := a.Fetch(context.Background(), "octocat")

			Convey("Then contributions are read with the bearer token", func() {
				So(err, ShouldBeNil)
				So(pm.Values[model.ContributionsGH], ShouldEqual, int64(321))
				So(auth.Load(), ShouldEqual, "Bearer t0k")
			})
		})
	})
}

func TestClientCancellation(t *testing.T) {
	Convey("Given a slow upstream", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()
		a := NewHackerRank(fastClient(), WithBaseURL(srv.URL))

		Convey("When the context is cancelled mid-request", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer cancel()
			_, err := a.Fetch(ctx, "slow")

			Convey("Then a transient error is returned", func() {
				So(err, ShouldNotBeNil)
				So(KindOf(err), ShouldEqual, KindTransient)
			})
		})
	})
}

func TestRegistry(t *testing.T) {
	Convey("Given the default registry", t, func() {
		r := Defaults(fastClient(), "")

		Convey("Then every platform has an adapter", func() {
			for _, p := range model.Platforms {
				a, ok := r.Get(p)
				So(ok, ShouldBeTrue)
				So(a.Platform(), ShouldEqual, p)
			}
		})
	})
}
