package agents

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	StatusOffline = "offline"
	StatusOnline  = "online"

	tokenBytes = 24
)

var (
	ErrAgentNotFound = errors.New("agent not found")
	ErrNameRequired  = errors.New("name is required")
	ErrTokenRequired = errors.New("missing token")
	ErrInvalidToken  = errors.New("invalid token")
)

// Agent is a remote looking-glass backend that reports to this panel.
type Agent struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Token     string     `json:"token"`
	CreatedAt time.Time  `json:"createdAt"`
	LastSeen  *time.Time `json:"lastSeen"`
	LastIP    *string    `json:"lastIp"`
	Status    string     `json:"status"`

	seq uint64
}

// Summary is the public view of an agent; it never carries the token.
type Summary struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	LastSeen *time.Time `json:"lastSeen"`
	Status   string     `json:"status"`
}

func (a Agent) Summary() Summary {
	return Summary{ID: a.ID, Name: a.Name, LastSeen: a.LastSeen, Status: a.Status}
}

// Registry stores agents by id and by token for the lifetime of one panel
// process. Nothing is persisted.
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*Agent
	byToken map[string]*Agent
	nextSeq uint64
	now     func() time.Time
	token   func() (string, error)
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithClock sets the time source used for createdAt and lastSeen.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		r.now = now
	}
}

// WithTokenSource replaces the random token generator.
func WithTokenSource(fn func() (string, error)) RegistryOption {
	return func(r *Registry) {
		r.token = fn
	}
}

// NewRegistry creates an empty agent registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		byID:    make(map[string]*Agent),
		byToken: make(map[string]*Agent),
		nextSeq: 1,
		now:     time.Now,
		token:   newToken,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new offline agent with a fresh token.
func (r *Registry) Create(name string) (Agent, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Agent{}, ErrNameRequired
	}
	token, err := r.token()
	if err != nil {
		return Agent{}, fmt.Errorf("generate agent token: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byToken[token]; ok {
		return Agent{}, fmt.Errorf("generate agent token: duplicate token")
	}
	agent := &Agent{
		ID:        fmt.Sprintf("agent_%d", r.nextSeq),
		Name:      name,
		Token:     token,
		CreatedAt: r.now().UTC(),
		Status:    StatusOffline,
		seq:       r.nextSeq,
	}
	r.nextSeq++
	r.byID[agent.ID] = agent
	r.byToken[token] = agent
	return *agent, nil
}

// Rename sets a new display name for id.
func (r *Registry) Rename(id, name string) (Agent, error) {
	name = strings.TrimSpace(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.byID[id]
	if !ok {
		return Agent{}, ErrAgentNotFound
	}
	if name == "" {
		return Agent{}, ErrNameRequired
	}
	agent.Name = name
	return *agent, nil
}

// Heartbeat records that the agent holding token is alive at ip. An empty
// status is recorded as online.
func (r *Registry) Heartbeat(token, ip, status string) (Agent, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Agent{}, ErrTokenRequired
	}
	if status == "" {
		status = StatusOnline
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	agent, ok := r.byToken[token]
	if !ok {
		return Agent{}, ErrInvalidToken
	}
	seen := r.now().UTC()
	agent.LastSeen = &seen
	agent.LastIP = &ip
	agent.Status = status
	return *agent, nil
}

// Get returns a copy of the agent with id.
func (r *Registry) Get(id string) (Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	agent, ok := r.byID[id]
	if !ok {
		return Agent{}, false
	}
	return *agent, true
}

// List returns copies of all agents in creation order.
func (r *Registry) List() []Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]Agent, 0, len(r.byID))
	for _, agent := range r.byID {
		list = append(list, *agent)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].seq < list[j].seq
	})
	return list
}

// Summaries returns the public view of List.
func (r *Registry) Summaries() []Summary {
	agents := r.List()
	out := make([]Summary, 0, len(agents))
	for _, agent := range agents {
		out = append(out, agent.Summary())
	}
	return out
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
