package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/okian/codeboard/internal/adapters/repository"
	"github.com/okian/codeboard/internal/domain/model"
	"github.com/okian/codeboard/pkg/metrics"
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

const linkColumns = `student_id, platform, username, status, verified, verified_by, rejection_reason, last_scrape_attempt, updated_at`

// Store implements repository.Store.
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithClock overrides the time source used for created links.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New wraps an open database.
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ repository.Store = (*Store)(nil)

// Close closes the pool.
func (s *Store) Close() error { return s.db.Close() }

func pgCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func rollback(tx *sqlx.Tx, err *error) {
	if *err != nil {
		_ = tx.Rollback()
	}
}

// CreateStudent implements repository.Store.
func (s *Store) CreateStudent(ctx context.Context, st model.Student) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create student: %w", err)
	}
	defer rollback(tx, &err)

	const insertStudent = `INSERT INTO students (id, name, department, batch, score, rank) VALUES (:id, :name, :department, :batch, :score, :rank)`
	if _, err = tx.NamedExecContext(ctx, insertStudent, st); err != nil {
		if pgCode(err) == pqUniqueViolation {
			return repository.ErrDuplicateStudent
		}
		return fmt.Errorf("insert student: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `INSERT INTO performance_records (student_id) VALUES ($1)`, st.ID); err != nil {
		return fmt.Errorf("insert performance record: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create student: %w", err)
	}
	return nil
}

// GetStudent implements repository.Store.
func (s *Store) GetStudent(ctx context.Context, id string) (model.Student, error) {
	var st model.Student
	const query = `SELECT id, name, department, batch, score, rank FROM students WHERE id = $1`
	if err := s.db.GetContext(ctx, &st, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Student{}, fmt.Errorf("%w: student %s", model.ErrNotFound, id)
		}
		return model.Student{}, fmt.Errorf("get student: %w", err)
	}
	return st, nil
}

// GetLink implements repository.Store.
func (s *Store) GetLink(ctx context.Context, studentID string, p model.Platform) (model.PlatformLink, error) {
	var l model.PlatformLink
	query := `SELECT ` + linkColumns + ` FROM platform_links WHERE student_id = $1 AND platform = $2`
	if err := s.db.GetContext(ctx, &l, query, studentID, p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PlatformLink{}, fmt.Errorf("%w: link %s/%s", model.ErrNotFound, studentID, p)
		}
		return model.PlatformLink{}, fmt.Errorf("get link: %w", err)
	}
	return l, nil
}

// ListLinks implements repository.Store.
func (s *Store) ListLinks(ctx context.Context) ([]model.PlatformLink, error) {
	var out []model.PlatformLink
	query := `SELECT ` + linkColumns + ` FROM platform_links ORDER BY student_id, platform`
	if err := s.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	return out, nil
}

// ListStudentLinks implements repository.Store.
func (s *Store) ListStudentLinks(ctx context.Context, studentID string) ([]model.PlatformLink, error) {
	var out []model.PlatformLink
	query := `SELECT ` + linkColumns + ` FROM platform_links WHERE student_id = $1 ORDER BY platform`
	if err := s.db.SelectContext(ctx, &out, query, studentID); err != nil {
		return nil, fmt.Errorf("list student links: %w", err)
	}
	return out, nil
}

func lockLink(ctx context.Context, tx *sqlx.Tx, studentID string, p model.Platform) (model.PlatformLink, error) {
	var l model.PlatformLink
	query := `SELECT ` + linkColumns + ` FROM platform_links WHERE student_id = $1 AND platform = $2 FOR UPDATE`
	err := tx.GetContext(ctx, &l, query, studentID, p)
	return l, err
}

func saveLink(ctx context.Context, tx *sqlx.Tx, l *model.PlatformLink) error {
	const upsert = `INSERT INTO platform_links (` + linkColumns + `)
VALUES (:student_id, :platform, :username, :status, :verified, :verified_by, :rejection_reason, :last_scrape_attempt, :updated_at)
ON CONFLICT (student_id, platform) DO UPDATE SET
	username = EXCLUDED.username,
	status = EXCLUDED.status,
	verified = EXCLUDED.verified,
	verified_by = EXCLUDED.verified_by,
	rejection_reason = EXCLUDED.rejection_reason,
	last_scrape_attempt = EXCLUDED.last_scrape_attempt,
	updated_at = EXCLUDED.updated_at`
	_, err := tx.NamedExecContext(ctx, upsert, l)
	return err
}

// MutateLink implements repository.Store.
func (s *Store) MutateLink(ctx context.Context, studentID string, p model.Platform, fn repository.LinkMutator) (l model.PlatformLink, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.PlatformLink{}, fmt.Errorf("begin mutate link: %w", err)
	}
	defer rollback(tx, &err)

	var exists bool
	if err = tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM students WHERE id = $1)`, studentID); err != nil {
		return model.PlatformLink{}, fmt.Errorf("check student: %w", err)
	}
	if !exists {
		err = fmt.Errorf("%w: student %s", model.ErrNotFound, studentID)
		return model.PlatformLink{}, err
	}

	l, err = lockLink(ctx, tx, studentID, p)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		l = model.NewLink(studentID, p)
		l.UpdatedAt = s.now()
		err = nil
	case err != nil:
		return model.PlatformLink{}, fmt.Errorf("lock link: %w", err)
	}

	if err = fn(&l); err != nil {
		return model.PlatformLink{}, err
	}
	if err = saveLink(ctx, tx, &l); err != nil {
		return model.PlatformLink{}, fmt.Errorf("save link: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return model.PlatformLink{}, fmt.Errorf("commit mutate link: %w", err)
	}
	return l, nil
}

// ApplySync implements repository.Store.
func (s *Store) ApplySync(ctx context.Context, studentID string, p model.Platform, fn repository.SyncMutator) (err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("apply_sync", metrics.Since(start)) }()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin apply sync: %w", err)
	}
	defer rollback(tx, &err)

	l, err := lockLink(ctx, tx, studentID, p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = fmt.Errorf("%w: link %s/%s", model.ErrNotFound, studentID, p)
			return err
		}
		return fmt.Errorf("lock link: %w", err)
	}
	rec, err := readRecord(ctx, tx, studentID, true)
	if err != nil {
		return err
	}

	if err = fn(&l, &rec); err != nil {
		return err
	}
	if err = saveLink(ctx, tx, &l); err != nil {
		return fmt.Errorf("save link: %w", err)
	}
	if err = writeRecord(ctx, tx, &rec, p); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit apply sync: %w", err)
	}
	return nil
}

func recordQuery(forUpdate bool) string {
	q := `SELECT student_id, last_updated, ` + strings.Join(metricColumns(), ", ") +
		` FROM performance_records WHERE student_id = $1`
	if forUpdate {
		q += ` FOR UPDATE`
	}
	return q
}

func readRecord(ctx context.Context, q sqlx.QueryerContext, studentID string, forUpdate bool) (model.PerformanceRecord, error) {
	row := q.QueryRowxContext(ctx, recordQuery(forUpdate), studentID)
	values := map[string]any{}
	if err := row.MapScan(values); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.PerformanceRecord{}, fmt.Errorf("%w: student %s", model.ErrNotFound, studentID)
		}
		return model.PerformanceRecord{}, fmt.Errorf("read performance record: %w", err)
	}
	return recordFromMap(studentID, values), nil
}

func recordFromMap(studentID string, values map[string]any) model.PerformanceRecord {
	rec := model.NewPerformanceRecord(studentID)
	for _, m := range model.AllMetrics() {
		rec.Values[m] = asInt64(values[string(m)])
	}
	if t, ok := values["last_updated"].(time.Time); ok {
		rec.LastUpdated = model.TimePtr(t)
	}
	return rec
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case []byte:
		var out int64
		_, _ = fmt.Sscan(string(n), &out)
		return out
	}
	return 0
}

// writeRecord updates the columns owned by p plus last_updated.
func writeRecord(ctx context.Context, tx *sqlx.Tx, rec *model.PerformanceRecord, p model.Platform) error {
	owned := model.MetricsFor(p)
	sets := make([]string, 0, len(owned)+1)
	args := make([]any, 0, len(owned)+2)
	for i, m := range owned {
		sets = append(sets, fmt.Sprintf("%s = $%d", m, i+1))
		args = append(args, rec.Value(m))
	}
	sets = append(sets, fmt.Sprintf("last_updated = $%d", len(owned)+1))
	args = append(args, rec.LastUpdated, rec.StudentID)

	query := `UPDATE performance_records SET ` + strings.Join(sets, ", ") +
		fmt.Sprintf(` WHERE student_id = $%d`, len(owned)+2)
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("write performance record: %w", err)
	}
	return nil
}

// GetRecord implements repository.Store.
func (s *Store) GetRecord(ctx context.Context, studentID string) (model.PerformanceRecord, error) {
	return readRecord(ctx, s.db, studentID, false)
}

// Snapshot implements repository.Store inside a read-only REPEATABLE READ
// transaction: one query for students and records, one for link statuses.
func (s *Store) Snapshot(ctx context.Context) (out []model.StudentSnapshot, err error) {
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("snapshot", metrics.Since(start)) }()

	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer rollback(tx, &err)

	query := `SELECT s.id, s.name, s.department, s.batch, s.score, s.rank, r.last_updated, ` +
		prefixed("r.", metricColumns()) +
		` FROM students s LEFT JOIN performance_records r ON r.student_id = s.id ORDER BY s.id`
	rows, err := tx.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("snapshot students: %w", err)
	}
	index := map[string]int{}
	for rows.Next() {
		values := map[string]any{}
		if err = rows.MapScan(values); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		id := asString(values["id"])
		snap := model.StudentSnapshot{
			Student: model.Student{
				ID:         id,
				Name:       asString(values["name"]),
				Department: asString(values["department"]),
				Batch:      asString(values["batch"]),
				Score:      asInt64(values["score"]),
				Rank:       int(asInt64(values["rank"])),
			},
			Record: recordFromMap(id, values),
			Links:  map[model.Platform]model.LinkStatus{},
		}
		index[id] = len(out)
		out = append(out, snap)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot: %w", err)
	}
	_ = rows.Close()

	var links []struct {
		StudentID string           `db:"student_id"`
		Platform  model.Platform   `db:"platform"`
		Status    model.LinkStatus `db:"status"`
	}
	if err = tx.SelectContext(ctx, &links, `SELECT student_id, platform, status FROM platform_links`); err != nil {
		return nil, fmt.Errorf("snapshot links: %w", err)
	}
	for _, l := range links {
		if i, ok := index[l.StudentID]; ok {
			out[i].Links[l.Platform] = l.Status
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot: %w", err)
	}
	return out, nil
}

func prefixed(prefix string, cols []string) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = prefix + c
	}
	return strings.Join(out, ", ")
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}

// SaveRanking implements repository.Store with one UPDATE over unnested
// arrays. A missing student aborts the transaction.
func (s *Store) SaveRanking(ctx context.Context, standings []model.Standing) (err error) {
	if len(standings) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { metrics.RecordStoreLatency("save_ranking", metrics.Since(start)) }()

	ids := make([]string, len(standings))
	scores := make([]int64, len(standings))
	ranks := make([]int64, len(standings))
	for i, st := range standings {
		ids[i], scores[i], ranks[i] = st.StudentID, st.Score, int64(st.Rank)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save ranking: %w", err)
	}
	defer rollback(tx, &err)

	const update = `UPDATE students AS s SET score = v.score, rank = v.rank
FROM unnest($1::text[], $2::bigint[], $3::int[]) AS v(id, score, rank)
WHERE s.id = v.id`
	res, err := tx.ExecContext(ctx, update, pq.Array(ids), pq.Array(scores), pq.Array(ranks))
	if err != nil {
		return fmt.Errorf("save ranking: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save ranking rows: %w", err)
	}
	if int(n) != len(standings) {
		err = fmt.Errorf("%w: %d of %d ranked students exist", model.ErrNotFound, n, len(standings))
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save ranking: %w", err)
	}
	return nil
}

// Points implements repository.Store.
func (s *Store) Points(ctx context.Context) (map[model.Metric]int64, error) {
	var rows []struct {
		Metric model.Metric `db:"metric"`
		Points int64        `db:"points"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT metric, points FROM grading_points`); err != nil {
		return nil, fmt.Errorf("load grading points: %w", err)
	}
	out := make(map[model.Metric]int64, len(rows))
	for _, r := range rows {
		out[r.Metric] = r.Points
	}
	return out, nil
}

// SetPoints implements repository.Store.
func (s *Store) SetPoints(ctx context.Context, metric model.Metric, points int64) error {
	const upsert = `INSERT INTO grading_points (metric, points) VALUES ($1, $2)
ON CONFLICT (metric) DO UPDATE SET points = EXCLUDED.points`
	if _, err := s.db.ExecContext(ctx, upsert, metric, points); err != nil {
		return fmt.Errorf("set grading points: %w", err)
	}
	return nil
}

// SeedPoints implements repository.Store.
func (s *Store) SeedPoints(ctx context.Context, defaults map[model.Metric]int64) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed points: %w", err)
	}
	defer rollback(tx, &err)

	for _, m := range model.AllMetrics() {
		p, ok := defaults[m]
		if !ok {
			continue
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO grading_points (metric, points) VALUES ($1, $2) ON CONFLICT (metric) DO NOTHING`, m, p); err != nil {
			return fmt.Errorf("seed %s: %w", m, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit seed points: %w", err)
	}
	return nil
}

// AppendNotification implements repository.Store.
func (s *Store) AppendNotification(ctx context.Context, n model.Notification) error {
	const insert = `INSERT INTO notifications (id, student_id, title, message, status_tag, read, created_at)
VALUES (:id, :student_id, :title, :message, :status_tag, :read, :created_at)`
	if _, err := s.db.NamedExecContext(ctx, insert, n); err != nil {
		if pgCode(err) == pqForeignKeyViolation {
			return fmt.Errorf("%w: student %s", model.ErrNotFound, n.StudentID)
		}
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

// ListNotifications implements repository.Store.
func (s *Store) ListNotifications(ctx context.Context, studentID string) ([]model.Notification, error) {
	out := []model.Notification{}
	const query = `SELECT id, student_id, title, message, status_tag, read, created_at
FROM notifications WHERE student_id = $1 ORDER BY created_at DESC, id DESC`
	if err := s.db.SelectContext(ctx, &out, query, studentID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

// MarkNotificationRead implements repository.Store.
func (s *Store) MarkNotificationRead(ctx context.Context, studentID, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE notifications SET read = TRUE WHERE id = $1 AND student_id = $2`, id, studentID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notification read rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: notification %s", model.ErrNotFound, id)
	}
	return nil
}

// Stats implements repository.Store.
func (s *Store) Stats(ctx context.Context) (repository.Stats, error) {
	st := repository.Stats{Links: map[model.LinkStatus]int{}}
	if err := s.db.GetContext(ctx, &st.Students, `SELECT COUNT(*) FROM students`); err != nil {
		return st, fmt.Errorf("count students: %w", err)
	}
	var rows []struct {
		Status model.LinkStatus `db:"status"`
		Count  int              `db:"count"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM platform_links GROUP BY status`); err != nil {
		return st, fmt.Errorf("count links: %w", err)
	}
	for _, r := range rows {
		st.Links[r.Status] = r.Count
	}
	if err := s.db.GetContext(ctx, &st.Notifications, `SELECT COUNT(*) FROM notifications`); err != nil {
		return st, fmt.Errorf("count notifications: %w", err)
	}
	return st, nil
}
