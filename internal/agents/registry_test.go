package agents

import (
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/lookingglass/internal/testutil/testlog"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestCreateAssignsSequentialIDsAndTokens(t *testing.T) {
	testlog.Start(t)
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(WithClock(fixedClock(created)))

	a, err := r.Create("  Frankfurt  ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b, err := r.Create("Tokyo")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.ID != "agent_1" || b.ID != "agent_2" {
		t.Fatalf("unexpected ids: %q %q", a.ID, b.ID)
	}
	if a.Name != "Frankfurt" {
		t.Fatalf("expected trimmed name, got %q", a.Name)
	}
	if a.Status != StatusOffline || a.LastSeen != nil || a.LastIP != nil {
		t.Fatalf("new agent should be offline and unseen: %+v", a)
	}
	if !a.CreatedAt.Equal(created) {
		t.Fatalf("unexpected createdAt %v", a.CreatedAt)
	}
	raw, err := hex.DecodeString(a.Token)
	if err != nil || len(raw) != tokenBytes {
		t.Fatalf("token should be %d hex-encoded bytes, got %q", tokenBytes, a.Token)
	}
	if a.Token == b.Token {
		t.Fatalf("tokens must be unique")
	}
}

func TestCreateRequiresName(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	if _, err := r.Create("   "); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	if len(r.List()) != 0 {
		t.Fatalf("failed create must not register an agent")
	}
}

func TestCreateTokenFailure(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry(WithTokenSource(func() (string, error) {
		return "", errors.New("entropy unavailable")
	}))
	if _, err := r.Create("edge"); err == nil || !strings.Contains(err.Error(), "entropy unavailable") {
		t.Fatalf("expected token error, got %v", err)
	}
}

func TestHeartbeatUpdatesAgent(t *testing.T) {
	testlog.Start(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry(WithClock(func() time.Time { return now }))
	agent, _ := r.Create("edge")

	now = now.Add(time.Minute)
	got, err := r.Heartbeat(agent.Token, "198.51.100.7", "")
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if got.Status != StatusOnline {
		t.Fatalf("empty status should record online, got %q", got.Status)
	}
	if got.LastSeen == nil || !got.LastSeen.Equal(now) {
		t.Fatalf("unexpected lastSeen %v", got.LastSeen)
	}
	if got.LastIP == nil || *got.LastIP != "198.51.100.7" {
		t.Fatalf("unexpected lastIp %v", got.LastIP)
	}

	if _, err := r.Heartbeat(agent.Token, "198.51.100.7", "degraded"); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	stored, _ := r.Get(agent.ID)
	if stored.Status != "degraded" {
		t.Fatalf("expected custom status to be stored, got %q", stored.Status)
	}
}

func TestHeartbeatTokenErrors(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	if _, err := r.Heartbeat("", "", ""); !errors.Is(err, ErrTokenRequired) {
		t.Fatalf("expected ErrTokenRequired, got %v", err)
	}
	if _, err := r.Heartbeat("deadbeef", "", ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRename(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	agent, _ := r.Create("edge")

	if _, err := r.Rename("agent_9", "x"); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
	if _, err := r.Rename(agent.ID, " "); !errors.Is(err, ErrNameRequired) {
		t.Fatalf("expected ErrNameRequired, got %v", err)
	}
	got, err := r.Rename(agent.ID, " Amsterdam ")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if got.Name != "Amsterdam" {
		t.Fatalf("unexpected name %q", got.Name)
	}
	// Token lookup must see the rename.
	hb, err := r.Heartbeat(agent.Token, "", "online")
	if err != nil || hb.Name != "Amsterdam" {
		t.Fatalf("token index out of sync: %+v %v", hb, err)
	}
}

func TestListCreationOrderAndSummaries(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	for i := 0; i < 12; i++ {
		if _, err := r.Create(fmt.Sprintf("node-%d", i)); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	var ids []string
	for _, s := range r.Summaries() {
		ids = append(ids, s.ID)
	}
	want := make([]string, 0, 12)
	for i := 1; i <= 12; i++ {
		want = append(want, fmt.Sprintf("agent_%d", i))
	}
	if !reflect.DeepEqual(ids, want) {
		t.Fatalf("agents not in creation order: got=%v want=%v", ids, want)
	}
}

func TestReturnedAgentsAreCopies(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	agent, _ := r.Create("edge")
	agent.Name = "mutated"
	stored, _ := r.Get(agent.ID)
	if stored.Name != "edge" {
		t.Fatalf("caller mutation leaked into registry")
	}
}

func TestConcurrentHeartbeats(t *testing.T) {
	testlog.Start(t)
	r := NewRegistry()
	agent, _ := r.Create("edge")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = r.Heartbeat(agent.Token, fmt.Sprintf("192.0.2.%d", i), StatusOnline)
			_ = r.Summaries()
		}(i)
	}
	wg.Wait()
	got, _ := r.Get(agent.ID)
	if got.Status != StatusOnline || got.LastIP == nil {
		t.Fatalf("unexpected agent after concurrent heartbeats: %+v", got)
	}
}

func TestInstallCommand(t *testing.T) {
	testlog.Start(t)
	agent := Agent{ID: "agent_3", Token: "abc123"}
	got := InstallCommand(agent, "https://panel.example.com", "")
	want := `docker run -d --name agent_3 -e PANEL_URL="https://panel.example.com" -e AGENT_TOKEN="abc123" ` + DefaultImage
	if got != want {
		t.Fatalf("unexpected command:\n got=%s\nwant=%s", got, want)
	}
}
