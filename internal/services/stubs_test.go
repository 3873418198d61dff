package services

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"tutorly-backend/internal/models"
	"tutorly-backend/internal/repository"
	"tutorly-backend/internal/srs"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func copyProgress(p *models.ReviewProgress) *models.ReviewProgress {
	cp := *p
	cp.State = p.State.Clone()
	return &cp
}

type memProgress struct {
	mu             sync.Mutex
	rows           map[models.ItemKey]*models.ReviewProgress
	conflictOnSave bool
	lastLimit      int
}

func newMemProgress() *memProgress {
	return &memProgress{rows: map[models.ItemKey]*models.ReviewProgress{}}
}

func (m *memProgress) put(p *models.ReviewProgress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Version == 0 {
		p.Version = 1
	}
	m.rows[p.Key()] = copyProgress(p)
}

func (m *memProgress) row(key models.ItemKey) *models.ReviewProgress {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.rows[key]; ok {
		return copyProgress(p)
	}
	return nil
}

func (m *memProgress) Get(_ context.Context, key models.ItemKey) (*models.ReviewProgress, error) {
	if p := m.row(key); p != nil {
		return p, nil
	}
	return nil, repository.ErrNotFound
}

func (m *memProgress) Create(_ context.Context, p *models.ReviewProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[p.Key()]; ok {
		return repository.ErrVersionConflict
	}
	p.ID = uuid.New()
	p.Version = 1
	m.rows[p.Key()] = copyProgress(p)
	return nil
}

func (m *memProgress) Save(_ context.Context, p *models.ReviewProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[p.Key()]
	if m.conflictOnSave || !ok || cur.Version != p.Version {
		return repository.ErrVersionConflict
	}
	p.Version++
	m.rows[p.Key()] = copyProgress(p)
	return nil
}

func (m *memProgress) list(keep func(*models.ReviewProgress) bool) []*models.ReviewProgress {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.ReviewProgress
	for _, p := range m.rows {
		if keep(p) {
			out = append(out, copyProgress(p))
		}
	}
	slices.SortFunc(out, func(a, b *models.ReviewProgress) int { return a.DueAt.Compare(b.DueAt) })
	return out
}

func (m *memProgress) ListDue(_ context.Context, userID uuid.UUID, now time.Time, limit int) ([]*models.ReviewProgress, error) {
	m.lastLimit = limit
	out := m.list(func(p *models.ReviewProgress) bool { return p.UserID == userID && !p.DueAt.After(now) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memProgress) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.ReviewProgress, error) {
	return m.list(func(p *models.ReviewProgress) bool { return p.UserID == userID }), nil
}

func (m *memProgress) ListByItem(_ context.Context, userID uuid.UUID, itemType string, itemID uuid.UUID) ([]*models.ReviewProgress, error) {
	return m.list(func(p *models.ReviewProgress) bool {
		return p.UserID == userID && p.ItemType == itemType && p.ItemID == itemID
	}), nil
}

func (m *memProgress) MasteryDistribution(_ context.Context, userID uuid.UUID, now time.Time) (*models.MasteryDistribution, error) {
	d := &models.MasteryDistribution{ByAlgorithm: map[string]int{}}
	for _, p := range m.list(func(p *models.ReviewProgress) bool { return p.UserID == userID }) {
		d.Total++
		d.ByAlgorithm[string(p.Algorithm)]++
		if !p.DueAt.After(now) {
			d.DueNow++
		}
	}
	return d, nil
}

type stubCards struct {
	mu        sync.Mutex
	decks     map[uuid.UUID]*models.FlashcardDeck
	cards     map[uuid.UUID]*models.FlashcardCard
	schedules map[uuid.UUID]srs.State
}

func newStubCards() *stubCards {
	return &stubCards{
		decks:     map[uuid.UUID]*models.FlashcardDeck{},
		cards:     map[uuid.UUID]*models.FlashcardCard{},
		schedules: map[uuid.UUID]srs.State{},
	}
}

func (s *stubCards) addDeck(userID uuid.UUID, alg string, n int) (*models.FlashcardDeck, []uuid.UUID) {
	deck := &models.FlashcardDeck{ID: uuid.New(), UserID: userID, Algorithm: alg, CardCount: n}
	s.decks[deck.ID] = deck
	var ids []uuid.UUID
	for i := 0; i < n; i++ {
		c := &models.FlashcardCard{ID: uuid.New(), DeckID: deck.ID}
		s.cards[c.ID] = c
		ids = append(ids, c.ID)
	}
	return deck, ids
}

func (s *stubCards) GetDeckByID(_ context.Context, id uuid.UUID) (*models.FlashcardDeck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.decks[id]; ok {
		cp := *d
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubCards) GetCardByID(_ context.Context, id uuid.UUID) (*models.FlashcardCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.cards[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubCards) GetCardsByDeck(_ context.Context, deckID uuid.UUID) ([]models.FlashcardCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.FlashcardCard
	for _, c := range s.cards {
		if c.DeckID == deckID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *stubCards) UpdateCardSchedule(_ context.Context, cardID uuid.UUID, state srs.State, _ float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[cardID] = state
	return nil
}

func (s *stubCards) SetDeckAlgorithm(_ context.Context, id uuid.UUID, alg srs.Algorithm) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.decks[id]; ok {
		d.Algorithm = string(alg)
	}
	return nil
}

type stubQuizzes map[uuid.UUID]*models.Quiz

func (s stubQuizzes) GetByID(_ context.Context, id uuid.UUID) (*models.Quiz, error) {
	if q, ok := s[id]; ok {
		return q, nil
	}
	return nil, repository.ErrNotFound
}

type sessionCall struct {
	sessionID uuid.UUID
	timeSpent int
}

type stubSessions struct {
	mu    sync.Mutex
	calls []sessionCall
}

func (s *stubSessions) AddReview(_ context.Context, sessionID, _ uuid.UUID, timeSpent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sessionCall{sessionID, timeSpent})
	return nil
}

type stubJobs struct {
	mu      sync.Mutex
	created []*models.Job
}

func (s *stubJobs) Create(_ context.Context, j *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j.ID = uuid.New()
	j.Status = models.JobStatusPending
	s.created = append(s.created, j)
	return nil
}

type stubBroker struct {
	mu        sync.Mutex
	locks     map[string]string
	marks     map[string]bool
	published []models.WSMessage
	recipient []uuid.UUID
	enqueued  []*models.Job
}

func newStubBroker() *stubBroker {
	return &stubBroker{locks: map[string]string{}, marks: map[string]bool{}}
}

func (b *stubBroker) PublishUpdate(_ context.Context, userID uuid.UUID, msg models.WSMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, msg)
	b.recipient = append(b.recipient, userID)
}

func (b *stubBroker) Enqueue(_ context.Context, job *models.Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enqueued = append(b.enqueued, job)
	return nil
}

func (b *stubBroker) AcquireLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, held := b.locks[key]; held {
		return "", false, nil
	}
	token := uuid.NewString()
	b.locks[key] = token
	return token, true, nil
}

func (b *stubBroker) ReleaseLock(_ context.Context, key, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.locks[key] == token {
		delete(b.locks, key)
	}
	return nil
}

func (b *stubBroker) MarkOnce(_ context.Context, key string, _ time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.marks[key] {
		return false, nil
	}
	b.marks[key] = true
	return true, nil
}

func (b *stubBroker) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, m := range b.published {
		out = append(out, m.Type)
	}
	return out
}
