package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

// stubResponder is a canned AIResponder for coordinator tests.
type stubResponder struct {
	text       string
	calls      int
	lastPrompt string
}

func (s *stubResponder) Respond(_ context.Context, prompt string) string {
	s.calls++
	s.lastPrompt = prompt

	return s.text
}

func newTestCoordinator(capacity int) (*Coordinator, *Registry, *stubResponder) {
	registry := newRegistry(capacity)
	stub := &stubResponder{text: "beep boop"}

	return newCoordinator(registry, stub), registry, stub
}

// TestStartRoundRecordsAIResponseFirst ensures the AI answer is already in
// the round before any human has a chance to submit.
func TestStartRoundRecordsAIResponseFirst(t *testing.T) {
	c, registry, stub := newTestCoordinator(16)

	registry.Register("p1", "Pat")
	registry.EnsureAIPlayer("ai-player", "Alex")

	roundID, err := c.StartRound(context.Background(), "What's for lunch?")
	if err != nil {
		t.Fatalf("StartRound returned error: %v", err)
	}
	if roundID == "" {
		t.Fatalf("expected a round ID")
	}
	if stub.calls != 1 {
		t.Fatalf("responder calls = %d, want 1", stub.calls)
	}
	if stub.lastPrompt != "What's for lunch?" {
		t.Fatalf("responder prompt = %q, want the round prompt", stub.lastPrompt)
	}

	responses := c.Responses()
	if len(responses) != 1 {
		t.Fatalf("len(responses) = %d, want 1", len(responses))
	}
	if responses[0].PlayerID != "ai-player" || !responses[0].IsAI {
		t.Fatalf("response = %+v, want the AI player's answer", responses[0])
	}
	if responses[0].Text != "beep boop" {
		t.Fatalf("AI answer = %q, want %q", responses[0].Text, "beep boop")
	}
	if responses[0].PlayerName != "Alex" {
		t.Fatalf("AI answer name = %q, want Alex", responses[0].PlayerName)
	}
}

func TestStartRoundWithoutAIPlayer(t *testing.T) {
	c, registry, stub := newTestCoordinator(16)

	registry.Register("p1", "Pat")

	if _, err := c.StartRound(context.Background(), "prompt"); err != nil {
		t.Fatalf("StartRound returned error: %v", err)
	}
	if stub.calls != 0 {
		t.Fatalf("responder calls = %d, want 0", stub.calls)
	}
	if got := c.Responses(); len(got) != 0 {
		t.Fatalf("len(responses) = %d, want 0", len(got))
	}
}

func TestStartRoundWhileActiveFails(t *testing.T) {
	c, registry, _ := newTestCoordinator(16)

	registry.Register("p1", "Pat")

	if _, err := c.StartRound(context.Background(), "first"); err != nil {
		t.Fatalf("StartRound returned error: %v", err)
	}
	if _, err := c.StartRound(context.Background(), "second"); !errors.Is(err, errRoundInProgress) {
		t.Fatalf("StartRound error = %v, want %v", err, errRoundInProgress)
	}

	// A completed round still occupies the slot until reset.
	c.CompleteRound()
	if _, err := c.StartRound(context.Background(), "third"); !errors.Is(err, errRoundInProgress) {
		t.Fatalf("StartRound after complete error = %v, want %v", err, errRoundInProgress)
	}

	c.ResetRound()
	if _, err := c.StartRound(context.Background(), "fourth"); err != nil {
		t.Fatalf("StartRound after reset returned error: %v", err)
	}
}

func TestSubmitResponseLastWriteWins(t *testing.T) {
	c, registry, _ := newTestCoordinator(16)

	registry.Register("p1", "Pat")
	if _, err := c.StartRound(context.Background(), "prompt"); err != nil {
		t.Fatalf("StartRound returned error: %v", err)
	}

	if err := c.SubmitResponse("p1", "first draft"); err != nil {
		t.Fatalf("SubmitResponse returned error: %v", err)
	}
	if err := c.SubmitResponse("p1", "final answer"); err != nil {
		t.Fatalf("SubmitResponse returned error: %v", err)
	}

	responses := c.Responses()
	if len(responses) != 1 {
		t.Fatalf("len(responses) = %d, want 1", len(responses))
	}
	if responses[0].Text != "final answer" {
		t.Fatalf("response = %q, want the resubmitted text", responses[0].Text)
	}
	if responses[0].PlayerName != "Pat" {
		t.Fatalf("response name = %q, want Pat", responses[0].PlayerName)
	}
}

func TestSubmitResponseRequiresRound(t *testing.T) {
	c, registry, _ := newTestCoordinator(16)

	registry.Register("p1", "Pat")

	if err := c.SubmitResponse("p1", "too early"); !errors.Is(err, errNoActiveRound) {
		t.Fatalf("SubmitResponse error = %v, want %v", err, errNoActiveRound)
	}

	c.StartRound(context.Background(), "prompt")
	c.CompleteRound()

	if err := c.SubmitResponse("p1", "too late"); !errors.Is(err, errNoActiveRound) {
		t.Fatalf("SubmitResponse after complete error = %v, want %v", err, errNoActiveRound)
	}
}

// TestResponsePhaseThreshold ensures the answer tally tracks the live
// roster, AI included, and that a mid-round join raises the bar.
func TestResponsePhaseThreshold(t *testing.T) {
	c, registry, _ := newTestCoordinator(16)

	registry.Register("p1", "Pat")
	registry.Register("p2", "Sam")
	registry.EnsureAIPlayer("ai-player", "Alex")

	if c.ResponsePhaseComplete() {
		t.Fatalf("expected no round to be incomplete")
	}

	if _, err := c.StartRound(context.Background(), "prompt"); err != nil {
		t.Fatalf("StartRound returned error: %v", err)
	}

	// AI answer is in; two humans outstanding.
	if c.ResponsePhaseComplete() {
		t.Fatalf("expected 1/3 answers to be incomplete")
	}

	c.SubmitResponse("p1", "one")
	if c.ResponsePhaseComplete() {
		t.Fatalf("expected 2/3 answers to be incomplete")
	}

	c.SubmitResponse("p2", "two")
	if !c.ResponsePhaseComplete() {
		t.Fatalf("expected 3/3 answers to be complete")
	}

	submitted, expected := c.ResponseProgress()
	if submitted != 3 || expected != 3 {
		t.Fatalf("progress = %d/%d, want 3/3", submitted, expected)
	}

	// A player joining mid-round pushes the threshold back up.
	registry.Register("p3", "Kim")
	if c.ResponsePhaseComplete() {
		t.Fatalf("expected a new joiner to reopen the answer phase")
	}
}

func TestBeginVoting(t *testing.T) {
	c, registry, _ := newTestCoordinator(16)

	registry.Register("p1", "Pat")

	if err := c.BeginVoting(); !errors.Is(err, errNoActiveRound) {
		t.Fatalf("BeginVoting error = %v, want %v", err, errNoActiveRound)
	}

	c.StartRound(context.Background(), "prompt")

	if err := c.BeginVoting(); err != nil {
		t.Fatalf("BeginVoting returned error: %v", err)
	}
	if got := c.Phase(); got != PhaseVoting {
		t.Fatalf("phase = %q, want %q", got, PhaseVoting)
	}

	// Calling it again changes nothing.
	if err := c.BeginVoting(); err != nil {
		t.Fatalf("repeat BeginVoting returned error: %v", err)
	}
	if got := c.Phase(); got != PhaseVoting {
		t.Fatalf("phase after repeat = %q, want %q", got, PhaseVoting)
	}
}

// TestVotingPhaseThreshold ensures vote completion counts humans only; the
// AI player never votes.
func TestVotingPhaseThreshold(t *testing.T) {
	c, registry, _ := newTestCoordinator(16)

	registry.Register("p1", "Pat")
	registry.Register("p2", "Sam")
	registry.EnsureAIPlayer("ai-player", "Alex")

	c.StartRound(context.Background(), "prompt")
	c.BeginVoting()

	if c.VotingPhaseComplete() {
		t.Fatalf("expected 0/2 votes to be incomplete")
	}

	c.SubmitVote("p1", "ai-player", true)
	if c.VotingPhaseComplete() {
		t.Fatalf("expected 1/2 votes to be incomplete")
	}

	c.SubmitVote("p2", "p1", false)
	if !c.VotingPhaseComplete() {
		t.Fatalf("expected 2/2 votes to be complete")
	}

	submitted, expected := c.VoteProgress()
	if submitted != 2 || expected != 2 {
		t.Fatalf("progress = %d/%d, want 2/2", submitted, expected)
	}
}

func TestSubmitVoteLastWriteWins(t *testing.T) {
	c, registry, _ := newTestCoordinator(16)

	registry.Register("p1", "Pat")
	registry.EnsureAIPlayer("ai-player", "Alex")

	if err := c.SubmitVote("p1", "ai-player", true); !errors.Is(err, errNoActiveRound) {
		t.Fatalf("SubmitVote error = %v, want %v", err, errNoActiveRound)
	}

	c.StartRound(context.Background(), "prompt")
	c.BeginVoting()

	c.SubmitVote("p1", "ai-player", false)
	c.SubmitVote("p1", "ai-player", true)

	results, err := c.VoteResults()
	if err != nil {
		t.Fatalf("VoteResults returned error: %v", err)
	}
	if results.Total != 1 {
		t.Fatalf("total votes = %d, want 1", results.Total)
	}
	if results.Correct != 1 {
		t.Fatalf("correct votes = %d, want the replacement vote to count", results.Correct)
	}
}

// TestVoteCorrectness walks the four guess combinations: a vote is correct
// exactly when its flag agrees with who the target really is.
func TestVoteCorrectness(t *testing.T) {
	tcs := []struct {
		name        string
		votedID     string
		isAIGuess   bool
		wantCorrect bool
	}{
		{"ai accused of being ai", "ai-player", true, true},
		{"ai mistaken for human", "ai-player", false, false},
		{"human accused of being ai", "p2", true, false},
		{"human called human", "p2", false, true},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			c, registry, _ := newTestCoordinator(16)

			registry.Register("p1", "Pat")
			registry.Register("p2", "Sam")
			registry.EnsureAIPlayer("ai-player", "Alex")

			c.StartRound(context.Background(), "prompt")
			c.BeginVoting()
			c.SubmitVote("p1", tc.votedID, tc.isAIGuess)

			results, err := c.VoteResults()
			if err != nil {
				t.Fatalf("VoteResults returned error: %v", err)
			}

			wantCorrect := 0
			if tc.wantCorrect {
				wantCorrect = 1
			}
			if results.Correct != wantCorrect || results.Total != 1 {
				t.Fatalf("results = %d/%d, want %d/1", results.Correct, results.Total, wantCorrect)
			}
			if results.AIPlayerName != "Alex" {
				t.Fatalf("AI name = %q, want Alex", results.AIPlayerName)
			}
		})
	}
}

func TestVoteResultsTally(t *testing.T) {
	c, registry, _ := newTestCoordinator(16)

	registry.Register("v1", "Ada")
	registry.Register("v2", "Ben")
	registry.Register("v3", "Cal")
	registry.Register("p2", "Dee")
	registry.EnsureAIPlayer("ai-player", "Alex")

	c.StartRound(context.Background(), "prompt")
	c.BeginVoting()

	c.SubmitVote("v1", "ai-player", true)
	c.SubmitVote("v2", "p2", false)
	c.SubmitVote("v3", "ai-player", false)

	results, err := c.VoteResults()
	if err != nil {
		t.Fatalf("VoteResults returned error: %v", err)
	}
	if results.Correct != 2 || results.Total != 3 {
		t.Fatalf("results = %d/%d, want 2/3", results.Correct, results.Total)
	}
}

func TestVoteResultsWithoutAIPlayer(t *testing.T) {
	c, registry, _ := newTestCoordinator(16)

	registry.Register("p1", "Pat")

	c.StartRound(context.Background(), "prompt")
	c.BeginVoting()
	c.SubmitVote("p1", "p1", false)

	if _, err := c.VoteResults(); !errors.Is(err, errNoAIPlayer) {
		t.Fatalf("VoteResults error = %v, want %v", err, errNoAIPlayer)
	}

	// Completion still works; the tally just carries no verdicts.
	summary := c.CompleteRound()
	if summary == nil {
		t.Fatalf("expected a summary")
	}
	if summary.Results.Correct != 0 || summary.Results.Total != 1 || summary.Results.AIPlayerName != "" {
		t.Fatalf("results = %+v, want zeroed tally with total 1", summary.Results)
	}
}

func TestCompleteRoundRepeatableUntilReset(t *testing.T) {
	c, registry, _ := newTestCoordinator(16)

	registry.Register("p1", "Pat")
	registry.EnsureAIPlayer("ai-player", "Alex")

	if got := c.CompleteRound(); got != nil {
		t.Fatalf("CompleteRound on empty slot = %+v, want nil", got)
	}

	c.StartRound(context.Background(), "prompt")
	c.SubmitResponse("p1", "an answer")
	c.BeginVoting()
	c.SubmitVote("p1", "ai-player", true)

	first := c.CompleteRound()
	if first == nil {
		t.Fatalf("expected a summary")
	}
	if got := c.Phase(); got != PhaseComplete {
		t.Fatalf("phase = %q, want %q", got, PhaseComplete)
	}

	second := c.CompleteRound()
	if second == nil {
		t.Fatalf("expected a repeated summary")
	}
	if first.RoundID != second.RoundID || first.Results != second.Results {
		t.Fatalf("repeated summary differs: %+v vs %+v", first, second)
	}

	c.ResetRound()
	if got := c.CompleteRound(); got != nil {
		t.Fatalf("CompleteRound after reset = %+v, want nil", got)
	}
	if got := c.Phase(); got != PhaseLobby {
		t.Fatalf("phase after reset = %q, want %q", got, PhaseLobby)
	}
}

// TestVotesAcceptedAfterComplete pins down the asymmetry between the two
// submission paths: answers are refused once the round completes, but
// votes keep landing until the slot is reset.
func TestVotesAcceptedAfterComplete(t *testing.T) {
	c, registry, _ := newTestCoordinator(16)

	registry.Register("p1", "Pat")
	registry.Register("p2", "Sam")
	registry.EnsureAIPlayer("ai-player", "Alex")

	c.StartRound(context.Background(), "prompt")
	c.BeginVoting()
	c.SubmitVote("p1", "ai-player", true)
	c.CompleteRound()

	if err := c.SubmitResponse("p2", "straggler"); !errors.Is(err, errNoActiveRound) {
		t.Fatalf("SubmitResponse error = %v, want %v", err, errNoActiveRound)
	}
	if err := c.SubmitVote("p2", "ai-player", true); err != nil {
		t.Fatalf("SubmitVote after complete returned error: %v", err)
	}

	summary := c.CompleteRound()
	if summary.Results.Correct != 2 || summary.Results.Total != 2 {
		t.Fatalf("results = %d/%d, want 2/2 after the late vote", summary.Results.Correct, summary.Results.Total)
	}
}

func TestSummaryCarriesResponsesVerbatim(t *testing.T) {
	c, registry, stub := newTestCoordinator(16)
	stub.text = "I would simply nap."

	registry.Register("p1", "Pat")
	registry.EnsureAIPlayer("ai-player", "Alex")

	c.StartRound(context.Background(), "Describe your perfect Sunday morning.")
	c.SubmitResponse("p1", "Coffee, then more coffee.")
	c.BeginVoting()
	c.SubmitVote("p1", "ai-player", true)

	summary := c.CompleteRound()
	if summary.Prompt != "Describe your perfect Sunday morning." {
		t.Fatalf("prompt = %q, want the round prompt", summary.Prompt)
	}
	if len(summary.Responses) != 2 {
		t.Fatalf("len(responses) = %d, want 2", len(summary.Responses))
	}

	byID := make(map[string]Response, len(summary.Responses))
	for _, resp := range summary.Responses {
		byID[resp.PlayerID] = resp
	}
	if got := byID["p1"]; got.Text != "Coffee, then more coffee." || got.IsAI {
		t.Fatalf("p1 response = %+v, want the submitted text, human", got)
	}
	if got := byID["ai-player"]; got.Text != "I would simply nap." || !got.IsAI {
		t.Fatalf("AI response = %+v, want the model text, flagged AI", got)
	}
}

// TestResponsesOrdering ensures the reveal order is by submission time,
// with IDs breaking exact ties.
func TestResponsesOrdering(t *testing.T) {
	registry := newRegistry(16)
	base := time.Now()

	c := &Coordinator{
		registry: registry,
		ai:       &stubResponder{},
		round: &Round{
			ID:    "round-1",
			Phase: PhaseVoting,
			Votes: make(map[string]Vote),
			Responses: map[string]Response{
				"c": {PlayerID: "c", Timestamp: base.Add(2 * time.Second)},
				"a": {PlayerID: "a", Timestamp: base},
				"b": {PlayerID: "b", Timestamp: base},
			},
		},
	}

	got := c.Responses()
	wantOrder := []string{"a", "b", "c"}
	if len(got) != len(wantOrder) {
		t.Fatalf("len(responses) = %d, want %d", len(got), len(wantOrder))
	}
	for i, want := range wantOrder {
		if got[i].PlayerID != want {
			t.Fatalf("responses[%d] = %q, want %q", i, got[i].PlayerID, want)
		}
	}
}

func TestRoundInfo(t *testing.T) {
	c, registry, _ := newTestCoordinator(16)

	registry.Register("p1", "Pat")

	if id, prompt, ok := c.RoundInfo(); ok || id != "" || prompt != "" {
		t.Fatalf("RoundInfo on empty slot = %q/%q/%t, want empty", id, prompt, ok)
	}
	if got := c.Phase(); got != PhaseLobby {
		t.Fatalf("phase = %q, want %q", got, PhaseLobby)
	}

	roundID, err := c.StartRound(context.Background(), "a prompt")
	if err != nil {
		t.Fatalf("StartRound returned error: %v", err)
	}

	id, prompt, ok := c.RoundInfo()
	if !ok || id != roundID || prompt != "a prompt" {
		t.Fatalf("RoundInfo = %q/%q/%t, want %q/a prompt/true", id, prompt, ok, roundID)
	}
	if got := c.Phase(); got != PhaseAnswering {
		t.Fatalf("phase = %q, want %q", got, PhaseAnswering)
	}
}
