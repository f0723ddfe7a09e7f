package platform

import (
	"context"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/okian/codeboard/internal/domain/model"
)

var lastNumber = regexp.MustCompile(`(\d+)\D*$`)

// CodeChef scrapes the public profile page.
type CodeChef struct {
	client *Client
	cfg    settings
}

// NewCodeChef creates the CodeChef adapter.
func NewCodeChef(c *Client, opts ...Option) *CodeChef {
	return &CodeChef{client: c, cfg: apply(settings{baseURL: "https://www.codechef.com"}, opts)}
}

// Platform implements Adapter.
func (a *CodeChef) Platform() model.Platform { return model.CodeChef }

// Fetch implements Adapter.
func (a *CodeChef) Fetch(ctx context.Context, username string) (model.PlatformMetrics, error) {
	if err := ValidateUsername(model.CodeChef, username); err != nil {
		return model.PlatformMetrics{}, err
	}
	doc, err := a.client.doHTML(ctx, request{
		platform: model.CodeChef,
		username: username,
		method:   http.MethodGet,
		url:      strings.TrimRight(a.cfg.baseURL, "/") + "/users/" + url.PathEscape(username),
	})
	if err != nil {
		return model.PlatformMetrics{}, err
	}
	// Unknown users are redirected to a page without a profile container.
	if doc.Find(".user-profile-container").Length() == 0 {
		return model.PlatformMetrics{}, notFound(model.CodeChef, username)
	}
	return platformMetrics(model.CodeChef, parseCodeChef(doc)), nil
}

func parseCodeChef(doc *goquery.Document) map[model.Metric]int64 {
	values := map[model.Metric]int64{}

	doc.Find(".rating-data-section.problems-solved h3").Each(func(_ int, s *goquery.Selection) {
		if strings.Contains(s.Text(), "Total Problems Solved") {
			values[model.ProblemsCC] = trailingNumber(s.Text())
		}
	})
	values[model.ContestsCC] = trailingNumber(doc.Find(".contest-participated-count b").First().Text())

	stars := int64(doc.Find(".rating-star span").Length())
	if stars == 0 {
		if t := doc.Find(".rating").First().Text(); strings.Contains(t, "★") {
			stars, _ = strconv.ParseInt(strings.TrimSpace(strings.Split(t, "★")[0]), 10, 64)
		}
	}
	values[model.StarsCC] = stars
	return values
}

func trailingNumber(s string) int64 {
	m := lastNumber.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0
	}
	n, _ := strconv.ParseInt(m[1], 10, 64)
	return n
}
