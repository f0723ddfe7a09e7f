package postgres

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/codeboard/internal/domain/model"
)

func newStoreMock(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
	}
	return New(sqlxDB), mock, cleanup
}

var linkCols = []string{"student_id", "platform", "username", "status", "verified", "verified_by", "rejection_reason", "last_scrape_attempt", "updated_at"}

func TestDSN(t *testing.T) {
	cfg := Config{Host: "db", Port: 5432, User: "u", Password: "p", Name: "codeboard"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=codeboard sslmode=disable", cfg.DSN())
}

func TestMigrate(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	for range schema() {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Contains(t, schema()[1], "easy_lc BIGINT NOT NULL DEFAULT 0")
}

func TestCreateStudent(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO students`)).
		WithArgs("s1", "Ada", "cse", "2026", 0, 0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO performance_records (student_id) VALUES ($1)`)).
		WithArgs("s1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.CreateStudent(context.Background(), model.Student{ID: "s1", Name: "Ada", Department: "cse", Batch: "2026"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateStudentDuplicate(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO students`)).
		WillReturnError(&pq.Error{Code: pqUniqueViolation})
	mock.ExpectRollback()

	err := store.CreateStudent(context.Background(), model.Student{ID: "s1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidInput))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetStudentNotFound(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name, department, batch, score, rank FROM students WHERE id = $1`)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "department", "batch", "score", "rank"}))

	_, err := store.GetStudent(context.Background(), "ghost")
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLink(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	updated := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM platform_links WHERE student_id = $1 AND platform = $2`)).
		WithArgs("s1", "github").
		WillReturnRows(sqlmock.NewRows(linkCols).
			AddRow("s1", "github", "octo", "suspended", true, "rev", nil, updated, updated))

	l, err := store.GetLink(context.Background(), "s1", model.GitHub)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSuspended, l.Status)
	assert.Equal(t, "octo", l.User())
	require.NotNil(t, l.VerifiedBy)
	assert.Equal(t, "rev", *l.VerifiedBy)
	assert.Nil(t, l.RejectionReason)
	require.NotNil(t, l.LastScrapeAttempt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutateLinkCreatesMissing(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()
	store.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).WithArgs("s1", "leetcode").
		WillReturnRows(sqlmock.NewRows(linkCols))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO platform_links`)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	l, err := store.MutateLink(context.Background(), "s1", model.LeetCode, func(l *model.PlatformLink) error {
		l.Username = model.StringPtr("ada")
		return l.Apply(model.EventSubmitForReview, time.Now())
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, l.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMutateLinkUnknownStudent(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT EXISTS`)).WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	_, err := store.MutateLink(context.Background(), "ghost", model.LeetCode, func(*model.PlatformLink) error { return nil })
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func recordRow(studentID string, values map[model.Metric]int64) *sqlmock.Rows {
	cols := append([]string{"student_id", "last_updated"}, metricColumns()...)
	row := []driver.Value{studentID, nil}
	for _, m := range model.AllMetrics() {
		row = append(row, values[m])
	}
	return sqlmock.NewRows(cols).AddRow(row...)
}

func TestApplySync(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()
	updated := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).WithArgs("s1", "leetcode").
		WillReturnRows(sqlmock.NewRows(linkCols).AddRow("s1", "leetcode", "ada", "accepted", true, nil, nil, nil, updated))
	rec := recordRow("s1", map[model.Metric]int64{model.StarsHR: 3})
	mock.ExpectQuery(regexp.QuoteMeta(`FROM performance_records WHERE student_id = $1 FOR UPDATE`)).WithArgs("s1").
		WillReturnRows(rec)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO platform_links`)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE performance_records SET badges_lc = $1, contests_lc = $2, easy_lc = $3, hard_lc = $4, medium_lc = $5, last_updated = $6 WHERE student_id = $7`)).
		WithArgs(1, 2, 10, 0, 5, sqlmock.AnyArg(), "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.ApplySync(context.Background(), "s1", model.LeetCode, func(l *model.PlatformLink, r *model.PerformanceRecord) error {
		assert.Equal(t, int64(3), r.Value(model.StarsHR))
		r.Merge(model.PlatformMetrics{Platform: model.LeetCode, Values: map[model.Metric]int64{
			model.EasyLC: 10, model.MediumLC: 5, model.ContestsLC: 2, model.BadgesLC: 1,
		}}, time.Now())
		l.LastScrapeAttempt = model.TimePtr(time.Now())
		return nil
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplySyncRollsBackOnMutatorError(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FOR UPDATE`)).WithArgs("s1", "github").
		WillReturnRows(sqlmock.NewRows(linkCols).AddRow("s1", "github", "new-name", "accepted", true, nil, nil, nil, time.Now()))
	rec := recordRow("s1", nil)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM performance_records`)).WithArgs("s1").WillReturnRows(rec)
	mock.ExpectRollback()

	stale := errors.New("stale")
	err := store.ApplySync(context.Background(), "s1", model.GitHub, func(*model.PlatformLink, *model.PerformanceRecord) error {
		return stale
	})
	assert.True(t, errors.Is(err, stale))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshot(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	cols := append([]string{"id", "name", "department", "batch", "score", "rank", "last_updated"}, metricColumns()...)
	rowA := []driver.Value{"a", "Ada", "cse", "2026", int64(40), int64(1), time.Now()}
	rowB := []driver.Value{"b", "Bob", "ece", "2025", int64(0), int64(2), nil}
	for _, m := range model.AllMetrics() {
		if m == model.EasyLC {
			rowA = append(rowA, int64(20))
		} else {
			rowA = append(rowA, int64(0))
		}
		rowB = append(rowB, int64(0))
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`FROM students s LEFT JOIN performance_records r`)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(rowA...).AddRow(rowB...))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT student_id, platform, status FROM platform_links`)).
		WillReturnRows(sqlmock.NewRows([]string{"student_id", "platform", "status"}).
			AddRow("a", "leetcode", "accepted").
			AddRow("b", "github", "pending"))
	mock.ExpectCommit()

	snaps, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "Ada", snaps[0].Student.Name)
	assert.Equal(t, int64(20), snaps[0].Record.Value(model.EasyLC))
	assert.NotNil(t, snaps[0].Record.LastUpdated)
	assert.Nil(t, snaps[1].Record.LastUpdated)
	assert.Equal(t, model.StatusAccepted, snaps[0].Status(model.LeetCode))
	assert.Equal(t, model.StatusPending, snaps[1].Status(model.GitHub))
	assert.Equal(t, model.StatusNone, snaps[1].Status(model.LeetCode))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRanking(t *testing.T) {
	standings := []model.Standing{{StudentID: "a", Score: 40, Rank: 1}, {StudentID: "b", Rank: 2}}

	t.Run("writes every row in one statement", func(t *testing.T) {
		store, mock, cleanup := newStoreMock(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE students AS s SET score = v.score, rank = v.rank`)).
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		require.NoError(t, store.SaveRanking(context.Background(), standings))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when a student vanished", func(t *testing.T) {
		store, mock, cleanup := newStoreMock(t)
		defer cleanup()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`UPDATE students AS s`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectRollback()

		err := store.SaveRanking(context.Background(), standings)
		assert.True(t, errors.Is(err, model.ErrNotFound))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPoints(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT metric, points FROM grading_points`)).
		WillReturnRows(sqlmock.NewRows([]string{"metric", "points"}).AddRow("easy_lc", int64(2)).AddRow("stars_hr", int64(5)))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO grading_points (metric, points) VALUES ($1, $2)`)).
		WithArgs("stars_hr", 10).
		WillReturnResult(sqlmock.NewResult(0, 1))

	points, err := store.Points(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), points[model.EasyLC])
	require.NoError(t, store.SetPoints(context.Background(), model.StarsHR, 10))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotifications(t *testing.T) {
	store, mock, cleanup := newStoreMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO notifications`)).
		WillReturnError(&pq.Error{Code: pqForeignKeyViolation})
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE notifications SET read = TRUE`)).
		WithArgs("n1", "s1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.AppendNotification(context.Background(), model.Notification{ID: "n0", StudentID: "ghost", CreatedAt: time.Now()})
	assert.True(t, errors.Is(err, model.ErrNotFound))
	err = store.MarkNotificationRead(context.Background(), "s1", "n1")
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
