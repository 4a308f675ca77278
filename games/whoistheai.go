package games

// Each round, every connected player answers the same open-ended prompt
// One additional answer is produced by a language model running locally (via Ollama)
// Once every player (and the model) has answered, all answers are revealed in a shuffled, anonymized list
// Players then vote on which answer they believe came from the model
// A vote is correct if it lands on the model's answer, or if the player marks a human answer as human
// After all votes are in, authorship is revealed along with the tally of correct guesses

// Display formats:
// Answer cards in a shuffled grid, each with a "this is the AI" toggle
// Single text field for composing your own answer during the answering phase

// Implementation details:
// - Use websockets to push roster, progress, and reveal updates to all joined players
// - Identify players by cookie on first connection, so refreshes keep their seat
// - The model's answer is requested before the round is shown to anyone, so it can never arrive late(?)

// How to play
// - Each player joins, is assigned a cookie, and prompted for a display name
// - Any player can start a round; a prompt is drawn from the built-in list or supplied by hand
// - Answers are collected until everyone has submitted, then voting opens automatically
// - One vote per player; changing your vote before the reveal replaces the earlier one
// - Scores are per-round only; there is no running tally between rounds
