/*
Copyright © 2026 alanvww
*/

package main

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// Game-flow errors. All of these are recoverable: they are relayed to the
// offending client as an error message and never take the process down.
var (
	errRoundInProgress = errors.New("a round is already in progress")
	errNoActiveRound   = errors.New("no round is currently active")
	errNoAIPlayer      = errors.New("the AI player has not joined yet")
	errLobbyFull       = errors.New("the lobby is full")
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(getFavicon())
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", title))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", body))

	return htmlBody.String()
}
