package main

import (
	"sync"
	"time"
)

// Player holds the data we store server-side for one participant.
// At most one player has IsAI set; it is created lazily when the first
// human joins and survives round resets.
type Player struct {
	ID        string
	Name      string
	IsAI      bool
	IsReady   bool
	Connected bool
	JoinedAt  time.Time
}

// Registry tracks every player in the lobby, in join order. The AI player
// counts toward neither capacity nor the human tally. All methods are safe
// for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	players  []*Player
	capacity int
}

func newRegistry(capacity int) *Registry {
	return &Registry{
		capacity: capacity,
	}
}

func (r *Registry) findLocked(id string) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}

	return nil
}

func (r *Registry) humanCountLocked() int {
	count := 0
	for _, p := range r.players {
		if !p.IsAI {
			count++
		}
	}

	return count
}

// CanAdmit reports whether another human player fits under the lobby cap.
func (r *Registry) CanAdmit() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.humanCountLocked() < r.capacity
}

// Register creates a human player record. Registering an ID that already
// exists updates the display name and marks the player connected again,
// so a returning cookie picks up where it left off.
func (r *Registry) Register(id, name string) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p := r.findLocked(id); p != nil {
		p.Name = name
		p.Connected = true

		return p, nil
	}

	if r.humanCountLocked() >= r.capacity {
		return nil, errLobbyFull
	}

	p := &Player{
		ID:        id,
		Name:      name,
		Connected: true,
		JoinedAt:  time.Now(),
	}
	r.players = append(r.players, p)

	return p, nil
}

// EnsureAIPlayer creates the single AI player on first call and returns
// the existing record on every call after that.
func (r *Registry) EnsureAIPlayer(id, name string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.players {
		if p.IsAI {
			return p
		}
	}

	p := &Player{
		ID:        id,
		Name:      name,
		IsAI:      true,
		IsReady:   true,
		Connected: true,
		JoinedAt:  time.Now(),
	}
	r.players = append(r.players, p)

	return p
}

// AIPlayer returns the AI player, or nil if one has not been created yet.
func (r *Registry) AIPlayer() *Player {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.players {
		if p.IsAI {
			return p
		}
	}

	return nil
}

// Remove deletes a human player record. Unknown IDs and the AI player are
// left alone.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dst := r.players[:0]
	for _, p := range r.players {
		if p.ID == id && !p.IsAI {
			continue
		}
		dst = append(dst, p)
	}
	r.players = dst
}

// Get returns the player with the given ID, or nil.
func (r *Registry) Get(id string) *Player {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.findLocked(id)
}

// All returns the players in join order.
func (r *Registry) All() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Player, len(r.players))
	copy(out, r.players)

	return out
}

// Count returns the number of registered players, AI included.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.players)
}

// HumanCount returns the number of registered players, AI excluded.
func (r *Registry) HumanCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.humanCountLocked()
}

// SetReady flips a player's ready flag, reporting whether the ID was known.
func (r *Registry) SetReady(id string, ready bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.findLocked(id)
	if p == nil {
		return false
	}
	p.IsReady = ready

	return true
}

// ClearReady drops every human player back to not-ready, for a fresh
// lobby after a reset.
func (r *Registry) ClearReady() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.players {
		if !p.IsAI {
			p.IsReady = false
		}
	}
}

// SetConnected records whether a player currently has a live connection.
func (r *Registry) SetConnected(id string, connected bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.findLocked(id)
	if p == nil {
		return false
	}
	p.Connected = connected

	return true
}
