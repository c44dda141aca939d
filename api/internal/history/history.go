package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"kisan-mitra/api/internal/diagnose"
)

const (
	Key          = "diagnosisHistory"
	DefaultLimit = 5
	HealthyLabel = "Healthy Crop"
	DateLayout   = "2/1/2006"
)

var ErrNoRepository = errors.New("history: repository is nil")

// Entry is one past diagnosis shown in the history list.
type Entry struct {
	ID        int64  `json:"id"`
	IssueName string `json:"issueName"`
	Date      string `json:"date"`
	Image     string `json:"image"`
}

// Repository persists the whole history list of one client.
// Implementations treat a missing or corrupt list as empty.
type Repository interface {
	Load(ctx context.Context, key string) ([]Entry, error)
	Save(ctx context.Context, key string, entries []Entry) error
	Delete(ctx context.Context, key string) error
}

// StorageKey is the repository key for a client. An empty client id maps to
// the bare Key, which is what a single-user client uses.
func StorageKey(clientID string) string {
	if clientID == "" {
		return Key
	}
	return Key + ":" + clientID
}

type Store struct {
	repo  Repository
	limit int
	now   func() time.Time
	loc   *time.Location

	mu sync.Mutex
}

type Option func(*Store)

func WithLimit(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.limit = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func New(repo Repository, opts ...Option) *Store {
	s := &Store{
		repo:  repo,
		limit: DefaultLimit,
		now:   time.Now,
		loc:   time.Local,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) Limit() int { return s.limit }

// Record prepends an entry for res and trims the list to the limit.
func (s *Store) Record(ctx context.Context, clientID string, res diagnose.Result, image string) (Entry, error) {
	if s.repo == nil {
		return Entry{}, ErrNoRepository
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := StorageKey(clientID)
	cur, err := s.repo.Load(ctx, key)
	if err != nil {
		return Entry{}, err
	}

	now := s.now()
	e := Entry{
		ID:        now.UnixMilli(),
		IssueName: label(res),
		Date:      now.In(s.loc).Format(DateLayout),
		Image:     image,
	}
	if len(cur) > 0 && e.ID <= cur[0].ID {
		e.ID = cur[0].ID + 1
	}

	next := make([]Entry, 0, s.limit)
	next = append(next, e)
	for _, old := range cur {
		if len(next) == s.limit {
			break
		}
		next = append(next, old)
	}
	if err := s.repo.Save(ctx, key, next); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// List returns the client's entries, most recent first.
func (s *Store) List(ctx context.Context, clientID string) ([]Entry, error) {
	if s.repo == nil {
		return nil, ErrNoRepository
	}
	cur, err := s.repo.Load(ctx, StorageKey(clientID))
	if err != nil {
		return nil, err
	}
	if len(cur) > s.limit {
		cur = cur[:s.limit]
	}
	out := make([]Entry, len(cur))
	copy(out, cur)
	return out, nil
}

func (s *Store) Clear(ctx context.Context, clientID string) error {
	if s.repo == nil {
		return ErrNoRepository
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.Delete(ctx, StorageKey(clientID))
}

func label(res diagnose.Result) string {
	if res.IsHealthy {
		return HealthyLabel
	}
	return res.IssueName
}
