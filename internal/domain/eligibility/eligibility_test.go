package eligibility

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/codeboard/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

type staticLinks struct {
	links []model.PlatformLink
	err   error
}

func (s staticLinks) ListLinks(context.Context) ([]model.PlatformLink, error) { return s.links, s.err }

func link(id string, p model.Platform, user string, st model.LinkStatus, last *time.Time) model.PlatformLink {
	l := model.NewLink(id, p)
	if user != "" {
		l.Username = model.StringPtr(user)
	}
	l.Status = st
	l.LastScrapeAttempt = last
	return l
}

func TestSelect(t *testing.T) {
	Convey("Given links in every status", t, func() {
		now := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
		recent := now.Add(-2 * time.Hour)
		old := now.Add(-25 * time.Hour)
		lister := staticLinks{links: []model.PlatformLink{
			link("s2", model.LeetCode, "bob", model.StatusAccepted, nil),
			link("s1", model.GitHub, "alice", model.StatusAccepted, &recent),
			link("s1", model.GitHub, "alice", model.StatusAccepted, &recent),
			link("s3", model.Codeforces, "carol", model.StatusSuspended, &old),
			link("s4", model.Codeforces, "dave", model.StatusSuspended, &recent),
			link("s5", model.CodeChef, "erin", model.StatusSuspended, nil),
			link("s6", model.HackerRank, "frank", model.StatusPending, nil),
			link("s7", model.HackerRank, "gina", model.StatusRejected, nil),
			link("s8", model.LeetCode, "", model.StatusAccepted, nil),
			link("s9", model.LeetCode, "", model.StatusSuspended, nil),
		}}
		sel := New(lister)

		Convey("When selecting in full mode", func() {
			tasks, err := sel.Select(context.Background(), now, ModeFull)

			Convey("Then only accepted links with usernames qualify, once each", func() {
				So(err, ShouldBeNil)
				So(tasks, ShouldResemble, []model.SyncTask{
					{StudentID: "s1", Platform: model.GitHub, Username: "alice"},
					{StudentID: "s2", Platform: model.LeetCode, Username: "bob"},
				})
			})
		})

		Convey("When selecting in cooldown-retry mode", func() {
			tasks, err := sel.Select(context.Background(), now, ModeCooldownRetry)

			Convey("Then suspended links past the cooldown or never attempted qualify", func() {
				So(err, ShouldBeNil)
				So(tasks, ShouldResemble, []model.SyncTask{
					{StudentID: "s3", Platform: model.Codeforces, Username: "carol"},
					{StudentID: "s5", Platform: model.CodeChef, Username: "erin"},
				})
			})
		})

		Convey("When selecting with both rules", func() {
			tasks, err := sel.Select(context.Background(), now, ModeAll)

			Convey("Then the union is returned", func() {
				So(err, ShouldBeNil)
				So(len(tasks), ShouldEqual, 4)
			})
		})

		Convey("When the cooldown is shortened", func() {
			tasks, err := New(lister, WithCooldown(time.Hour)).Select(context.Background(), now, ModeCooldownRetry)

			Convey("Then recently attempted suspended links qualify too", func() {
				So(err, ShouldBeNil)
				So(len(tasks), ShouldEqual, 3)
			})
		})
	})

	Convey("Given a failing lister", t, func() {
		sel := New(staticLinks{err: errors.New("db down")})

		Convey("Then the error is returned", func() {
			_, err := sel.Select(context.Background(), time.Now(), ModeAll)
			So(err, ShouldNotBeNil)
		})
	})
}

func TestEligibleBoundary(t *testing.T) {
	Convey("Given a suspended link attempted exactly one cooldown ago", t, func() {
		now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		at := now.Add(-DefaultCooldown)
		l := link("s", model.GitHub, "u", model.StatusSuspended, &at)

		Convey("Then it is not yet due", func() {
			So(Eligible(&l, now, DefaultCooldown, ModeCooldownRetry), ShouldBeFalse)
			So(Eligible(&l, now.Add(time.Second), DefaultCooldown, ModeCooldownRetry), ShouldBeTrue)
		})
	})
}
