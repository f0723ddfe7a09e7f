package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/codeboard/internal/domain/model"
	"github.com/okian/codeboard/pkg/metrics"
)

// MemoryStore is an in-process Store guarded by one RWMutex. Mutators run
// on copies and are committed only when they succeed.
type MemoryStore struct {
	mu            sync.RWMutex
	students      map[string]model.Student
	records       map[string]model.PerformanceRecord
	links         map[model.LinkKey]model.PlatformLink
	points        map[model.Metric]int64
	notifications map[string][]model.Notification

	now                   func() time.Time
	metricsUpdateInterval time.Duration

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewMemoryStore creates an empty store and starts its metrics updater.
func NewMemoryStore(ctx context.Context, opts ...Option) *MemoryStore {
	s := &MemoryStore{
		students:              make(map[string]model.Student),
		records:               make(map[string]model.PerformanceRecord),
		links:                 make(map[model.LinkKey]model.PlatformLink),
		points:                make(map[model.Metric]int64),
		notifications:         make(map[string][]model.Notification),
		now:                   time.Now,
		metricsUpdateInterval: metrics.RefreshInterval(),
		stopChan:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

func (s *MemoryStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.metricsUpdateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.updateMetrics()
			}
		}
	}()
}

func (s *MemoryStore) updateMetrics() {
	st, _ := s.Stats(context.Background())
	metrics.UpdateStoredStudents(st.Students)
	for _, status := range []model.LinkStatus{
		model.StatusNone, model.StatusPending, model.StatusAccepted, model.StatusRejected, model.StatusSuspended,
	} {
		metrics.UpdateStoredLinks(string(status), st.Links[status])
	}
}

// Close stops the metrics updater.
func (s *MemoryStore) Close() error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// CreateStudent implements Store.
func (s *MemoryStore) CreateStudent(_ context.Context, st model.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[st.ID]; ok {
		return ErrDuplicateStudent
	}
	s.students[st.ID] = st
	s.records[st.ID] = model.NewPerformanceRecord(st.ID)
	return nil
}

// GetStudent implements Store.
func (s *MemoryStore) GetStudent(_ context.Context, id string) (model.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.students[id]
	if !ok {
		return model.Student{}, studentNotFound(id)
	}
	return st, nil
}

// GetLink implements Store.
func (s *MemoryStore) GetLink(_ context.Context, studentID string, p model.Platform) (model.PlatformLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.links[model.LinkKey{StudentID: studentID, Platform: p}]
	if !ok {
		return model.PlatformLink{}, linkNotFound(studentID, p)
	}
	return copyLink(l), nil
}

// ListLinks implements Store.
func (s *MemoryStore) ListLinks(_ context.Context) ([]model.PlatformLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.PlatformLink, 0, len(s.links))
	for _, l := range s.links {
		out = append(out, copyLink(l))
	}
	sortLinks(out)
	return out, nil
}

// ListStudentLinks implements Store.
func (s *MemoryStore) ListStudentLinks(_ context.Context, studentID string) ([]model.PlatformLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.students[studentID]; !ok {
		return nil, studentNotFound(studentID)
	}
	var out []model.PlatformLink
	for _, p := range model.Platforms {
		if l, ok := s.links[model.LinkKey{StudentID: studentID, Platform: p}]; ok {
			out = append(out, copyLink(l))
		}
	}
	return out, nil
}

// MutateLink implements Store.
func (s *MemoryStore) MutateLink(ctx context.Context, studentID string, p model.Platform, fn LinkMutator) (model.PlatformLink, error) {
	if err := ctx.Err(); err != nil {
		return model.PlatformLink{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[studentID]; !ok {
		return model.PlatformLink{}, studentNotFound(studentID)
	}
	key := model.LinkKey{StudentID: studentID, Platform: p}
	l, ok := s.links[key]
	if !ok {
		l = model.NewLink(studentID, p)
		l.UpdatedAt = s.now()
	}
	l = copyLink(l)
	if err := fn(&l); err != nil {
		return model.PlatformLink{}, err
	}
	s.links[key] = l
	return copyLink(l), nil
}

// ApplySync implements Store.
func (s *MemoryStore) ApplySync(ctx context.Context, studentID string, p model.Platform, fn SyncMutator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := model.LinkKey{StudentID: studentID, Platform: p}
	l, ok := s.links[key]
	if !ok {
		return linkNotFound(studentID, p)
	}
	rec, ok := s.records[studentID]
	if !ok {
		return studentNotFound(studentID)
	}
	l = copyLink(l)
	rec = rec.Clone()
	if err := fn(&l, &rec); err != nil {
		return err
	}
	s.links[key] = l
	s.records[studentID] = rec
	return nil
}

// GetRecord implements Store.
func (s *MemoryStore) GetRecord(_ context.Context, studentID string) (model.PerformanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[studentID]
	if !ok {
		return model.PerformanceRecord{}, studentNotFound(studentID)
	}
	return rec.Clone(), nil
}

// Snapshot implements Store. The whole join is read under one read lock.
func (s *MemoryStore) Snapshot(_ context.Context) ([]model.StudentSnapshot, error) {
	start := time.Now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.StudentSnapshot, 0, len(s.students))
	for id, st := range s.students {
		snap := model.StudentSnapshot{
			Student: st,
			Record:  s.records[id].Clone(),
			Links:   make(map[model.Platform]model.LinkStatus),
		}
		for _, p := range model.Platforms {
			if l, ok := s.links[model.LinkKey{StudentID: id, Platform: p}]; ok {
				snap.Links[p] = l.Status
			}
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Student.ID < out[j].Student.ID })
	metrics.RecordStoreLatency("snapshot", metrics.Since(start))
	return out, nil
}

// SaveRanking implements Store. Unknown students fail the whole write.
func (s *MemoryStore) SaveRanking(_ context.Context, standings []model.Standing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range standings {
		if _, ok := s.students[st.StudentID]; !ok {
			return studentNotFound(st.StudentID)
		}
	}
	for _, st := range standings {
		stu := s.students[st.StudentID]
		stu.Score = st.Score
		stu.Rank = st.Rank
		s.students[st.StudentID] = stu
	}
	return nil
}

// Points implements Store.
func (s *MemoryStore) Points(_ context.Context) (map[model.Metric]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.Metric]int64, len(s.points))
	for m, p := range s.points {
		out[m] = p
	}
	return out, nil
}

// SetPoints implements Store.
func (s *MemoryStore) SetPoints(_ context.Context, metric model.Metric, points int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points[metric] = points
	return nil
}

// SeedPoints implements Store.
func (s *MemoryStore) SeedPoints(_ context.Context, defaults map[model.Metric]int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for m, p := range defaults {
		if _, ok := s.points[m]; !ok {
			s.points[m] = p
		}
	}
	return nil
}

// AppendNotification implements Store.
func (s *MemoryStore) AppendNotification(_ context.Context, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.students[n.StudentID]; !ok {
		return studentNotFound(n.StudentID)
	}
	s.notifications[n.StudentID] = append(s.notifications[n.StudentID], n)
	return nil
}

// ListNotifications implements Store.
func (s *MemoryStore) ListNotifications(_ context.Context, studentID string) ([]model.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.students[studentID]; !ok {
		return nil, studentNotFound(studentID)
	}
	list := s.notifications[studentID]
	out := make([]model.Notification, len(list))
	for i := range list {
		out[len(list)-1-i] = list[i]
	}
	return out, nil
}

// MarkNotificationRead implements Store.
func (s *MemoryStore) MarkNotificationRead(_ context.Context, studentID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.notifications[studentID]
	for i := range list {
		if list[i].ID == id {
			list[i].Read = true
			return nil
		}
	}
	return notificationNotFound(id)
}

// Stats implements Store.
func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{Students: len(s.students), Links: make(map[model.LinkStatus]int)}
	for _, l := range s.links {
		st.Links[l.Status]++
	}
	for _, list := range s.notifications {
		st.Notifications += len(list)
	}
	return st, nil
}

func copyLink(l model.PlatformLink) model.PlatformLink {
	if l.Username != nil {
		l.Username = model.StringPtr(*l.Username)
	}
	if l.VerifiedBy != nil {
		l.VerifiedBy = model.StringPtr(*l.VerifiedBy)
	}
	if l.RejectionReason != nil {
		l.RejectionReason = model.StringPtr(*l.RejectionReason)
	}
	if l.LastScrapeAttempt != nil {
		l.LastScrapeAttempt = model.TimePtr(*l.LastScrapeAttempt)
	}
	return l
}

func sortLinks(links []model.PlatformLink) {
	sort.Slice(links, func(i, j int) bool {
		if links[i].StudentID != links[j].StudentID {
			return links[i].StudentID < links[j].StudentID
		}
		return links[i].Platform < links[j].Platform
	})
}

var _ Store = (*MemoryStore)(nil)
