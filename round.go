package main

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Phase describes where the single round slot currently is. The zero state
// is the lobby; a round moves answering → voting → complete, and a reset
// returns the slot to the lobby.
type Phase string

const (
	PhaseLobby     Phase = "lobby"
	PhaseAnswering Phase = "answering"
	PhaseVoting    Phase = "voting"
	PhaseComplete  Phase = "complete"
)

// Response is one player's answer to the round prompt.
type Response struct {
	PlayerID   string    `json:"player_id"`
	PlayerName string    `json:"player_name"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	IsAI       bool      `json:"is_ai"`
}

// Vote records one player's guess about who wrote a response. IsAIGuess
// distinguishes "I think they are the AI" from "I think they are human".
type Vote struct {
	VoterID   string `json:"voter_id"`
	VotedID   string `json:"voted_id"`
	IsAIGuess bool   `json:"is_ai_guess"`
}

// VoteResults summarizes the voting phase. A vote counts as correct when
// its guess flag agrees with whether the voted-for player really is the AI.
type VoteResults struct {
	Correct      int    `json:"correct_count"`
	Total        int    `json:"total_votes"`
	AIPlayerName string `json:"ai_player_name"`
}

// RoundSummary is the completion snapshot handed back to the transport.
type RoundSummary struct {
	RoundID   string      `json:"round_id"`
	Prompt    string      `json:"prompt"`
	Responses []Response  `json:"responses"`
	Results   VoteResults `json:"results"`
}

// Round is the state for one prompt. Responses and votes are keyed by
// submitter, so resubmitting overwrites instead of duplicating.
type Round struct {
	ID        string
	Prompt    string
	Phase     Phase
	Responses map[string]Response
	Votes     map[string]Vote
	StartTime time.Time
}

// Complete reports whether the round has produced its summary.
func (rd *Round) Complete() bool {
	return rd.Phase == PhaseComplete
}

// Coordinator owns the single active round. There is never more than one:
// starting fails while the slot is occupied, and only a reset empties it.
// All methods are safe for concurrent use.
type Coordinator struct {
	mu       sync.RWMutex
	registry *Registry
	ai       AIResponder
	round    *Round
}

func newCoordinator(registry *Registry, ai AIResponder) *Coordinator {
	return &Coordinator{
		registry: registry,
		ai:       ai,
	}
}

// StartRound opens a new round for the given prompt. If the AI player has
// joined, its answer is fetched and recorded before the round becomes
// visible, so the response tally can never complete without it. The fetch
// happens outside the lock; the slot is only claimed once the round is
// fully built, and a competing start that wins the slot in the meantime
// causes this one to fail.
func (c *Coordinator) StartRound(ctx context.Context, prompt string) (string, error) {
	c.mu.RLock()
	occupied := c.round != nil
	c.mu.RUnlock()

	if occupied {
		return "", errRoundInProgress
	}

	round := &Round{
		ID:        uuid.New().String(),
		Prompt:    prompt,
		Phase:     PhaseAnswering,
		Responses: make(map[string]Response),
		Votes:     make(map[string]Vote),
		StartTime: time.Now(),
	}

	if ai := c.registry.AIPlayer(); ai != nil {
		round.Responses[ai.ID] = Response{
			PlayerID:   ai.ID,
			PlayerName: ai.Name,
			Text:       c.ai.Respond(ctx, prompt),
			Timestamp:  time.Now(),
			IsAI:       true,
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.round != nil {
		return "", errRoundInProgress
	}
	c.round = round

	return round.ID, nil
}

// SubmitResponse records a player's answer, replacing any earlier one from
// the same player. Answers are refused once the round is complete, but a
// straggler may still amend theirs during the voting phase.
func (c *Coordinator) SubmitResponse(playerID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.round == nil || c.round.Complete() {
		return errNoActiveRound
	}

	resp := Response{
		PlayerID:  playerID,
		Text:      text,
		Timestamp: time.Now(),
	}
	if p := c.registry.Get(playerID); p != nil {
		resp.PlayerName = p.Name
		resp.IsAI = p.IsAI
	}
	c.round.Responses[playerID] = resp

	return nil
}

// ResponsePhaseComplete reports whether every currently registered player,
// AI included, has a response in. This is a snapshot: callers check it
// after each submission rather than waiting on an event.
func (c *Coordinator) ResponsePhaseComplete() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.round == nil {
		return false
	}

	return len(c.round.Responses) >= c.registry.Count()
}

// BeginVoting moves an answering round into the voting phase. Calling it
// again once voting has begun changes nothing.
func (c *Coordinator) BeginVoting() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.round == nil {
		return errNoActiveRound
	}
	if c.round.Phase == PhaseAnswering {
		c.round.Phase = PhaseVoting
	}

	return nil
}

// SubmitVote records a voter's guess, replacing any earlier one from the
// same voter. The voted-for ID is deliberately not checked against the
// roster: clients only ever offer revealed responses to vote on, and a
// stray ID simply scores as an incorrect (or trivially correct) guess.
func (c *Coordinator) SubmitVote(voterID, votedID string, isAIGuess bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.round == nil {
		return errNoActiveRound
	}

	c.round.Votes[voterID] = Vote{
		VoterID:   voterID,
		VotedID:   votedID,
		IsAIGuess: isAIGuess,
	}

	return nil
}

// VotingPhaseComplete reports whether every currently registered human has
// voted. The AI player never votes and is excluded from the threshold.
func (c *Coordinator) VotingPhaseComplete() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.round == nil {
		return false
	}

	return len(c.round.Votes) >= c.registry.HumanCount()
}

// VoteResults tallies the current votes against the AI player's identity.
func (c *Coordinator) VoteResults() (VoteResults, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.round == nil {
		return VoteResults{}, errNoActiveRound
	}

	return c.voteResultsLocked()
}

func (c *Coordinator) voteResultsLocked() (VoteResults, error) {
	ai := c.registry.AIPlayer()
	if ai == nil {
		return VoteResults{}, errNoAIPlayer
	}

	results := VoteResults{
		Total:        len(c.round.Votes),
		AIPlayerName: ai.Name,
	}
	for _, v := range c.round.Votes {
		if (v.VotedID == ai.ID) == v.IsAIGuess {
			results.Correct++
		}
	}

	return results, nil
}

// CompleteRound snapshots the round and marks it complete, or returns nil
// when the slot is empty. Until the slot is reset, calling it again
// rebuilds the snapshot from the same round.
func (c *Coordinator) CompleteRound() *RoundSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.round == nil {
		return nil
	}

	results, err := c.voteResultsLocked()
	if err != nil {
		results = VoteResults{Total: len(c.round.Votes)}
	}

	summary := &RoundSummary{
		RoundID:   c.round.ID,
		Prompt:    c.round.Prompt,
		Responses: c.responsesLocked(),
		Results:   results,
	}
	c.round.Phase = PhaseComplete

	return summary
}

// ResetRound empties the round slot, returning the game to the lobby.
func (c *Coordinator) ResetRound() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.round = nil
}

// Phase returns the current phase of the round slot.
func (c *Coordinator) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.round == nil {
		return PhaseLobby
	}

	return c.round.Phase
}

// RoundInfo returns the active round's ID and prompt, with ok false when
// the slot is empty.
func (c *Coordinator) RoundInfo() (id, prompt string, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.round == nil {
		return "", "", false
	}

	return c.round.ID, c.round.Prompt, true
}

// Responses returns the current responses in submission order.
func (c *Coordinator) Responses() []Response {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.round == nil {
		return nil
	}

	return c.responsesLocked()
}

func (c *Coordinator) responsesLocked() []Response {
	out := make([]Response, 0, len(c.round.Responses))
	for _, resp := range c.round.Responses {
		out = append(out, resp)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].PlayerID < out[j].PlayerID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	return out
}

// ResponseProgress returns how many answers are in against how many are
// expected from the current roster.
func (c *Coordinator) ResponseProgress() (submitted, expected int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.round == nil {
		return 0, c.registry.Count()
	}

	return len(c.round.Responses), c.registry.Count()
}

// VoteProgress returns how many votes are in against how many are expected
// from the current human roster.
func (c *Coordinator) VoteProgress() (submitted, expected int) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.round == nil {
		return 0, c.registry.HumanCount()
	}

	return len(c.round.Votes), c.registry.HumanCount()
}
