package observations

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

const MaxTextLength = 280

var (
	ErrTextRequired = errors.New("text is required")
	ErrTextTooLong  = fmt.Errorf("text must be %d characters or fewer", MaxTextLength)
)

type Observation struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is an append-only observation log held in memory for the lifetime
// of one panel process.
type Store struct {
	mu     sync.RWMutex
	items  []Observation
	nextID int
	now    func() time.Time
}

// StoreOption customizes a Store.
type StoreOption func(*Store)

func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// WithoutSeed starts the store empty.
func WithoutSeed() StoreOption {
	return func(s *Store) {
		s.items = s.items[:0]
		s.nextID = 1
	}
}

// NewStore returns a store seeded with the two calibration entries a fresh
// panel shows.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.nextID == 0 {
		now := s.now().UTC()
		s.items = []Observation{
			{ID: "obs_1", Text: "Refraction stable. No interference detected.", CreatedAt: now.Add(-20 * time.Minute)},
			{ID: "obs_2", Text: "Mirror lattice calibrated to 98.7%.", CreatedAt: now.Add(-8 * time.Minute)},
		}
		s.nextID = 3
	}
	return s
}

// Add appends a trimmed observation.
func (s *Store) Add(text string) (Observation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Observation{}, ErrTextRequired
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return Observation{}, ErrTextTooLong
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	obs := Observation{
		ID:        fmt.Sprintf("obs_%d", s.nextID),
		Text:      text,
		CreatedAt: s.now().UTC(),
	}
	s.nextID++
	s.items = append(s.items, obs)
	return obs, nil
}

// List returns observations newest first.
func (s *Store) List() []Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Observation, len(s.items))
	for i, obs := range s.items {
		out[len(s.items)-1-i] = obs
	}
	return out
}
