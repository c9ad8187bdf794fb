package repository

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/tutoria-backend/internal/model"
)

// MemoryStore is a process-local Store for development and tests. A unit of
// work holds the store lock for its whole duration and edits a copy of the
// data that replaces the live copy only on success.
type MemoryStore struct {
	mu   sync.RWMutex
	data *memData
	now  func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData(), now: time.Now}
}

type membershipKey struct {
	learnerID uuid.UUID
	productID uuid.UUID
}

type memData struct {
	classes      map[uuid.UUID]model.ScheduledClass
	reservations map[uuid.UUID]model.Reservation
	learners     map[uuid.UUID]model.Learner
	instructors  map[uuid.UUID]model.Instructor
	products     map[uuid.UUID]model.CourseProduct
	memberships  map[membershipKey]model.CourseMembership
}

func newMemData() *memData {
	return &memData{
		classes:      map[uuid.UUID]model.ScheduledClass{},
		reservations: map[uuid.UUID]model.Reservation{},
		learners:     map[uuid.UUID]model.Learner{},
		instructors:  map[uuid.UUID]model.Instructor{},
		products:     map[uuid.UUID]model.CourseProduct{},
		memberships:  map[membershipKey]model.CourseMembership{},
	}
}

func (d *memData) clone() *memData {
	return &memData{
		classes:      maps.Clone(d.classes),
		reservations: maps.Clone(d.reservations),
		learners:     maps.Clone(d.learners),
		instructors:  maps.Clone(d.instructors),
		products:     maps.Clone(d.products),
		memberships:  maps.Clone(d.memberships),
	}
}

// WithTx implements Store.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(&memQueries{d: work, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = work
	return nil
}

// Read implements Store. fn sees the committed data and must not write.
func (s *MemoryStore) Read(ctx context.Context, fn func(q Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&memQueries{d: s.data, now: s.now})
}

type memQueries struct {
	d   *memData
	now func() time.Time
}

func (q *memQueries) GetClass(_ context.Context, id uuid.UUID) (*model.ScheduledClass, error) {
	c, ok := q.d.classes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

// The store lock already serializes units of work.
func (q *memQueries) GetClassForUpdate(ctx context.Context, id uuid.UUID) (*model.ScheduledClass, error) {
	return q.GetClass(ctx, id)
}

func (q *memQueries) CreateClass(_ context.Context, c *model.ScheduledClass) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := q.now()
	c.Status = model.ClassStatusScheduled
	c.SeatsOccupied = 0
	c.Version = 1
	c.CreatedAt, c.UpdatedAt = now, now
	q.d.classes[c.ID] = *c
	return nil
}

func (q *memQueries) AddOccupancy(_ context.Context, id uuid.UUID, delta int) (*model.ScheduledClass, error) {
	c, ok := q.d.classes[id]
	if !ok {
		return nil, ErrOccupancyBounds
	}
	next := c.SeatsOccupied + delta
	if next < 0 || next > c.SeatsMax {
		return nil, ErrOccupancyBounds
	}
	c.SeatsOccupied = next
	c.Version++
	c.UpdatedAt = q.now()
	q.d.classes[id] = c
	return &c, nil
}

func (q *memQueries) MarkCancelled(_ context.Context, id uuid.UUID) (*model.ScheduledClass, error) {
	c, ok := q.d.classes[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.Status = model.ClassStatusCancelled
	c.SeatsOccupied = 0
	c.Version++
	c.UpdatedAt = q.now()
	q.d.classes[id] = c
	return &c, nil
}

func (q *memQueries) DeleteClass(_ context.Context, id uuid.UUID) (bool, error) {
	if _, ok := q.d.classes[id]; !ok {
		return false, nil
	}
	delete(q.d.classes, id)
	for rid, r := range q.d.reservations {
		if r.ClassID == id {
			delete(q.d.reservations, rid)
		}
	}
	return true, nil
}

func (q *memQueries) GetReservation(_ context.Context, id uuid.UUID) (*model.Reservation, error) {
	r, ok := q.d.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (q *memQueries) ListReservationsByClass(_ context.Context, classID uuid.UUID) ([]model.Reservation, error) {
	out := []model.Reservation{}
	for _, r := range q.d.reservations {
		if r.ClassID == classID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b model.Reservation) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	return out, nil
}

func (q *memQueries) ReservedLearnerIDs(_ context.Context, classID uuid.UUID, learnerIDs []uuid.UUID) ([]uuid.UUID, error) {
	held := map[uuid.UUID]bool{}
	for _, r := range q.d.reservations {
		if r.ClassID == classID {
			held[r.LearnerID] = true
		}
	}
	var ids []uuid.UUID
	for _, id := range learnerIDs {
		if held[id] {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (q *memQueries) CreateReservation(_ context.Context, res *model.Reservation) error {
	if _, ok := q.d.classes[res.ClassID]; !ok {
		return ErrNotFound
	}
	for _, r := range q.d.reservations {
		if r.ClassID == res.ClassID && r.LearnerID == res.LearnerID {
			return ErrDuplicateReservation
		}
	}
	if res.ID == uuid.Nil {
		res.ID = uuid.New()
	}
	res.CreatedAt = q.now()
	q.d.reservations[res.ID] = *res
	return nil
}

func (q *memQueries) DeleteReservation(_ context.Context, id uuid.UUID) (bool, error) {
	if _, ok := q.d.reservations[id]; !ok {
		return false, nil
	}
	delete(q.d.reservations, id)
	return true, nil
}

func (q *memQueries) DeleteReservationsByClass(_ context.Context, classID uuid.UUID) (int64, error) {
	var n int64
	for id, r := range q.d.reservations {
		if r.ClassID == classID {
			delete(q.d.reservations, id)
			n++
		}
	}
	return n, nil
}

func (q *memQueries) GetLearner(_ context.Context, id uuid.UUID) (*model.Learner, error) {
	l, ok := q.d.learners[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (q *memQueries) ListLearners(_ context.Context, ids []uuid.UUID) ([]model.Learner, error) {
	var out []model.Learner
	for _, id := range ids {
		if l, ok := q.d.learners[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (q *memQueries) CreateLearner(_ context.Context, l *model.Learner) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	l.CreatedAt = q.now()
	q.d.learners[l.ID] = *l
	return nil
}

func (q *memQueries) InstructorExists(_ context.Context, id uuid.UUID) (bool, error) {
	_, ok := q.d.instructors[id]
	return ok, nil
}

func (q *memQueries) CreateInstructor(_ context.Context, i *model.Instructor) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	i.CreatedAt = q.now()
	q.d.instructors[i.ID] = *i
	return nil
}

func (q *memQueries) GetCourseProduct(_ context.Context, id uuid.UUID) (*model.CourseProduct, error) {
	p, ok := q.d.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (q *memQueries) CreateCourseProduct(_ context.Context, p *model.CourseProduct) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = q.now()
	q.d.products[p.ID] = *p
	return nil
}

func (q *memQueries) HasActiveMembership(_ context.Context, learnerID, productID uuid.UUID) (bool, error) {
	m, ok := q.d.memberships[membershipKey{learnerID, productID}]
	return ok && m.Status == model.MembershipStatusActive, nil
}

func (q *memQueries) CreateMembership(_ context.Context, m *model.CourseMembership) error {
	m.CreatedAt = q.now()
	q.d.memberships[membershipKey{m.LearnerID, m.ProductID}] = *m
	return nil
}
