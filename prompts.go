package main

import (
	"crypto/rand"
)

// prompts seeds rounds that are started without a custom prompt. Questions
// with no one right answer work best: the AI has to improvise just like
// everyone else.
var prompts = []string{
	"What's the best excuse for showing up late?",
	"Describe your perfect Sunday morning.",
	"What would you do with one extra hour every day?",
	"What's the worst superpower to be stuck with?",
	"What food do you refuse to share, and why?",
	"What's the most useless thing you know a lot about?",
	"If animals could talk, which would be the rudest?",
	"What's a smell that instantly takes you back somewhere?",
	"What would your autobiography be called?",
	"What's the strangest thing you've ever eaten?",
	"What habit would you ban if you ruled the world?",
	"What's the best piece of advice you've ever ignored?",
	"If you could uninvent one thing, what would it be?",
	"What's your go-to move when a song you hate comes on?",
	"What would you bring to a deserted island besides the obvious?",
	"What's the weirdest compliment you've ever received?",
}

// randomPrompt picks one of the built-in prompts.
func randomPrompt() string {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return prompts[0]
	}

	return prompts[int(b[0])%len(prompts)]
}
