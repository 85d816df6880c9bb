package observations

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/lookingglass/internal/testutil/testlog"
)

func TestNewStoreIsSeeded(t *testing.T) {
	testlog.Start(t)
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	s := NewStore(WithClock(func() time.Time { return now }))

	items := s.List()
	if len(items) != 2 {
		t.Fatalf("expected 2 seeded observations, got %d", len(items))
	}
	if items[0].ID != "obs_2" || items[1].ID != "obs_1" {
		t.Fatalf("expected newest first, got %s,%s", items[0].ID, items[1].ID)
	}
	if !items[0].CreatedAt.Equal(now.Add(-8 * time.Minute)) {
		t.Fatalf("unexpected seed timestamp %v", items[0].CreatedAt)
	}

	obs, err := s.Add("Beam nominal.")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if obs.ID != "obs_3" {
		t.Fatalf("expected ids to continue after seed, got %s", obs.ID)
	}
}

func TestAddAndListNewestFirst(t *testing.T) {
	testlog.Start(t)
	s := NewStore(WithoutSeed())
	for _, text := range []string{"first", "  second  ", "third"} {
		if _, err := s.Add(text); err != nil {
			t.Fatalf("add %q: %v", text, err)
		}
	}
	items := s.List()
	got := []string{items[0].Text, items[1].Text, items[2].Text}
	want := []string{"third", "second", "first"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order: got=%v want=%v", got, want)
		}
	}
	if items[2].ID != "obs_1" {
		t.Fatalf("expected unseeded store to start at obs_1, got %s", items[2].ID)
	}
}

func TestAddValidation(t *testing.T) {
	testlog.Start(t)
	s := NewStore(WithoutSeed())
	if _, err := s.Add(" \n "); !errors.Is(err, ErrTextRequired) {
		t.Fatalf("expected ErrTextRequired, got %v", err)
	}
	if _, err := s.Add(strings.Repeat("x", MaxTextLength+1)); !errors.Is(err, ErrTextTooLong) {
		t.Fatalf("expected ErrTextTooLong, got %v", err)
	}
	if _, err := s.Add(strings.Repeat("é", MaxTextLength)); err != nil {
		t.Fatalf("expected %d multibyte characters to fit, got %v", MaxTextLength, err)
	}
	if len(s.List()) != 1 {
		t.Fatalf("rejected observations must not be stored")
	}
}

func TestListReturnsCopy(t *testing.T) {
	testlog.Start(t)
	s := NewStore(WithoutSeed())
	_, _ = s.Add("original")
	items := s.List()
	items[0].Text = "mutated"
	if s.List()[0].Text != "original" {
		t.Fatalf("List must not expose internal storage")
	}
}
