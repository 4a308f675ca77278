// Who is the AI?
//
// Up to sixteen players join a shared lobby, where a hidden AI player is
// seated among them under an ordinary display name. Each round everyone,
// AI included, answers the same prompt; the answers are then revealed in
// a shuffled line-up and the humans vote on who they think the machine is.
//
// Features:
// - Single lobby, single active round, all state in memory
// - WebSocket transport: /ws, with per-client send queues
// - Players identified by cookie (playerID), so refreshes reconnect
// - The AI answer is fetched from a local Ollama-style endpoint before the
//   round is announced, so it can never arrive after the reveal
// - Votes score as correct when the guess flag matches whether the chosen
//   player really is the AI
// - Disconnected players are kept for a grace period before removal
// - In-browser QR button to share the lobby URL, backed by go-qrcode

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// aiPlayerID keys the AI player's registry record and its responses. Joins
// claiming this ID are ignored, so no human can collide with it.
const aiPlayerID = "ai-player"

// Messages coming from clients
type ClientMessage struct {
	Type   string `json:"type"`             // "join", "ready", "start_round", "response", "vote", "reset"
	Name   string `json:"name,omitempty"`   // join
	Ready  *bool  `json:"ready,omitempty"`  // ready
	Prompt string `json:"prompt,omitempty"` // start_round; empty picks a built-in prompt
	Text   string `json:"text,omitempty"`   // response
	Target string `json:"target,omitempty"` // vote: ID of the player being voted on
	IsAI   *bool  `json:"is_ai,omitempty"`  // vote: true = "I think they're the AI"
}

// PlayerView is the roster entry clients see. The AI player appears here
// under its cover name; nothing in this struct gives it away.
type PlayerView struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsReady   bool   `json:"is_ready"`
	Connected bool   `json:"connected"`
}

// ResponseView is a revealed answer, stripped of the authorship flag.
type ResponseView struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
	Text       string `json:"text"`
}

// SessionInfoMessage is sent immediately on connect so the client knows
// whether this cookie is already registered and where the game stands.
type SessionInfoMessage struct {
	Type       string         `json:"type"`                // "session_info"
	IsExisting bool           `json:"is_existing"`         // true if this cookie already has a player
	Name       string         `json:"name,omitempty"`      // known name for this cookie, if any
	Phase      Phase          `json:"phase"`               // current phase of the round slot
	RoundID    string         `json:"round_id,omitempty"`  // active round, if any
	Prompt     string         `json:"prompt,omitempty"`    // active prompt, if any
	Players    []PlayerView   `json:"players"`             // current roster
	Responses  []ResponseView `json:"responses,omitempty"` // revealed answers, during voting
}

// RosterMessage broadcasts the player list whenever it changes.
type RosterMessage struct {
	Type    string       `json:"type"` // "roster"
	Players []PlayerView `json:"players"`
}

// RoundStartedMessage announces a new round. By the time it is sent, the
// AI player's answer is already recorded.
type RoundStartedMessage struct {
	Type    string `json:"type"` // "round_started"
	RoundID string `json:"round_id"`
	Prompt  string `json:"prompt"`
}

// ProgressMessage reports how many answers or votes are in.
type ProgressMessage struct {
	Type      string `json:"type"` // "response_progress" or "vote_progress"
	Submitted int    `json:"submitted"`
	Expected  int    `json:"expected"`
}

// RevealMessage carries the shuffled answer line-up once everyone has
// submitted.
type RevealMessage struct {
	Type      string         `json:"type"` // "responses_revealed"
	RoundID   string         `json:"round_id"`
	Responses []ResponseView `json:"responses"`
}

// CompleteMessage delivers the final summary: every answer with its true
// authorship, and how the votes scored.
type CompleteMessage struct {
	Type    string       `json:"type"` // "game_complete"
	Summary RoundSummary `json:"summary"`
}

// SimpleMessage is for generic notifications ("error", "round_reset").
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
}

type clientAction struct {
	client *Client
	msg    ClientMessage
}

type Hub struct {
	ctx      context.Context
	cfg      *Config
	registry *Registry
	rounds   *Coordinator

	clients map[*Client]bool

	register chan *Client
	unreg    chan *Client
	joins    chan clientAction
	actions  chan clientAction

	mu sync.RWMutex
}

func newHub(ctx context.Context, cfg *Config, registry *Registry, rounds *Coordinator) *Hub {
	return &Hub{
		ctx:      ctx,
		cfg:      cfg,
		registry: registry,
		rounds:   rounds,
		clients:  make(map[*Client]bool),
		register: make(chan *Client),
		unreg:    make(chan *Client),
		joins:    make(chan clientAction),
		actions:  make(chan clientAction),
	}
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.handleConnect(c)

		case c := <-h.unreg:
			h.handleDisconnect(c)

		case a := <-h.joins:
			h.handleJoin(a)

		case a := <-h.actions:
			h.handleAction(a)
		}
	}
}

// rosterLocked builds the public view of the registry, AI player included
// under its cover name.
func (h *Hub) rosterLocked() []PlayerView {
	players := h.registry.All()

	views := make([]PlayerView, 0, len(players))
	for _, p := range players {
		views = append(views, PlayerView{
			ID:        p.ID,
			Name:      p.Name,
			IsReady:   p.IsReady,
			Connected: p.Connected,
		})
	}

	return views
}

// responseViewsLocked strips and shuffles the current answers so neither
// authorship flags nor submission order give the AI away.
func (h *Hub) responseViewsLocked() []ResponseView {
	responses := h.rounds.Responses()

	views := make([]ResponseView, 0, len(responses))
	for _, resp := range responses {
		views = append(views, ResponseView{
			PlayerID:   resp.PlayerID,
			PlayerName: resp.PlayerName,
			Text:       resp.Text,
		})
	}

	// Fisher-Yates shuffle using crypto/rand
	for i := len(views) - 1; i > 0; i-- {
		var b [1]byte
		if _, err := rand.Read(b[:]); err != nil {
			continue
		}
		j := int(b[0]) % (i + 1)
		views[i], views[j] = views[j], views[i]
	}

	return views
}

func (h *Hub) sendLocked(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) broadcastLocked(msg any) {
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

func (h *Hub) broadcastRosterLocked() {
	h.broadcastLocked(RosterMessage{
		Type:    "roster",
		Players: h.rosterLocked(),
	})
}

func (h *Hub) errorLocked(c *Client, text string) {
	h.sendLocked(c, SimpleMessage{
		Type:    "error",
		Message: text,
	})
}

// advanceLocked fires the phase transitions that submission counts alone
// decide: reveal once every seat has answered, complete once every human
// has voted. Called after anything that changes a tally or the roster.
func (h *Hub) advanceLocked() {
	if h.registry.HumanCount() == 0 {
		return
	}

	switch h.rounds.Phase() {
	case PhaseAnswering:
		if !h.rounds.ResponsePhaseComplete() {
			return
		}
		if err := h.rounds.BeginVoting(); err != nil {
			return
		}

		roundID, _, _ := h.rounds.RoundInfo()
		h.broadcastLocked(RevealMessage{
			Type:      "responses_revealed",
			RoundID:   roundID,
			Responses: h.responseViewsLocked(),
		})
		logf(h.cfg, "GAMES: Round %s revealed", roundID)

	case PhaseVoting:
		if !h.rounds.VotingPhaseComplete() {
			return
		}

		summary := h.rounds.CompleteRound()
		if summary == nil {
			return
		}

		h.broadcastLocked(CompleteMessage{
			Type:    "game_complete",
			Summary: *summary,
		})
		logf(h.cfg, "GAMES: Round %s complete: %d/%d correct, AI was %q",
			summary.RoundID,
			summary.Results.Correct,
			summary.Results.Total,
			summary.Results.AIPlayerName,
		)
	}
}

func (h *Hub) handleConnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c] = true

	info := SessionInfoMessage{
		Type:    "session_info",
		Phase:   h.rounds.Phase(),
		Players: h.rosterLocked(),
	}

	if p := h.registry.Get(c.playerID); p != nil && !p.IsAI {
		info.IsExisting = true
		info.Name = p.Name
		h.registry.SetConnected(c.playerID, true)
	}

	if id, prompt, ok := h.rounds.RoundInfo(); ok {
		info.RoundID = id
		info.Prompt = prompt
	}
	if h.rounds.Phase() == PhaseVoting {
		info.Responses = h.responseViewsLocked()
	}

	h.sendLocked(c, info)

	// A finished round's summary is replayed to late arrivals, so a refresh
	// during the reveal does not lose the scores.
	if h.rounds.Phase() == PhaseComplete {
		if summary := h.rounds.CompleteRound(); summary != nil {
			h.sendLocked(c, CompleteMessage{
				Type:    "game_complete",
				Summary: *summary,
			})
		}
	}

	// A returning player flips back to connected; everyone should see it.
	if info.IsExisting {
		h.broadcastRosterLocked()
	}
}

func (h *Hub) handleDisconnect(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}

	p := h.registry.Get(c.playerID)
	if c.playerID == "" || p == nil || p.IsAI {
		return
	}

	// Another tab may still hold this cookie's connection.
	for client := range h.clients {
		if client.playerID == c.playerID {
			return
		}
	}

	h.registry.SetConnected(c.playerID, false)
	h.broadcastRosterLocked()

	go h.scheduleRemoval(c.playerID, h.cfg.playerTimeout)
}

// scheduleRemoval waits for d, and if no client with this playerID has
// reconnected, removes the player's record. Removal shrinks the phase
// thresholds, so the round may advance as a result.
func (h *Hub) scheduleRemoval(playerID string, d time.Duration) {
	time.Sleep(d)

	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if client.playerID == playerID {
			return
		}
	}

	p := h.registry.Get(playerID)
	if p == nil || p.IsAI {
		return
	}

	h.registry.Remove(playerID)
	logf(h.cfg, "GAMES: Player %q removed after %s offline", p.Name, d)

	if h.registry.HumanCount() == 0 {
		h.rounds.ResetRound()
		h.broadcastRosterLocked()

		return
	}

	h.broadcastRosterLocked()
	h.advanceLocked()
}

// handleJoin processes "join" messages. A crafted cookie matching the AI
// player's ID is ignored, so the AI's record can never be hijacked.
func (h *Hub) handleJoin(a clientAction) {
	c := a.client
	name := strings.TrimSpace(a.msg.Name)

	if name == "" || c.playerID == "" || c.playerID == aiPlayerID {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.registry.Get(c.playerID) == nil && !h.registry.CanAdmit() {
		h.errorLocked(c, errLobbyFull.Error())

		return
	}

	p, err := h.registry.Register(c.playerID, name)
	if err != nil {
		h.errorLocked(c, err.Error())

		return
	}

	// The AI player takes its seat as soon as the lobby has anyone to fool.
	h.registry.EnsureAIPlayer(aiPlayerID, h.cfg.aiName)

	logf(h.cfg, "GAMES: Player %q joined", p.Name)

	h.broadcastRosterLocked()
}

// handleAction processes everything a registered player can do after
// joining: ready flag, round control, answers and votes.
func (h *Hub) handleAction(a clientAction) {
	c := a.client
	msg := a.msg

	h.mu.Lock()
	defer h.mu.Unlock()

	player := h.registry.Get(c.playerID)
	if player == nil || player.IsAI {
		h.errorLocked(c, "join the lobby before playing")

		return
	}

	switch msg.Type {
	case "ready":
		ready := msg.Ready != nil && *msg.Ready
		h.registry.SetReady(c.playerID, ready)
		h.broadcastRosterLocked()

	case "start_round":
		h.startRoundLocked(c, msg.Prompt)

	case "response":
		if strings.TrimSpace(msg.Text) == "" {
			return
		}

		if err := h.rounds.SubmitResponse(c.playerID, msg.Text); err != nil {
			h.errorLocked(c, err.Error())

			return
		}

		submitted, expected := h.rounds.ResponseProgress()
		h.broadcastLocked(ProgressMessage{
			Type:      "response_progress",
			Submitted: submitted,
			Expected:  expected,
		})

		h.advanceLocked()

	case "vote":
		if msg.Target == "" {
			return
		}
		if h.rounds.Phase() == PhaseAnswering {
			h.errorLocked(c, "voting has not started yet")

			return
		}

		isAIGuess := msg.IsAI != nil && *msg.IsAI
		if err := h.rounds.SubmitVote(c.playerID, msg.Target, isAIGuess); err != nil {
			h.errorLocked(c, err.Error())

			return
		}

		submitted, expected := h.rounds.VoteProgress()
		h.broadcastLocked(ProgressMessage{
			Type:      "vote_progress",
			Submitted: submitted,
			Expected:  expected,
		})

		h.advanceLocked()

	case "reset":
		h.rounds.ResetRound()
		h.registry.ClearReady()

		h.broadcastLocked(SimpleMessage{
			Type:    "round_reset",
			Message: "The round was reset.",
		})
		h.broadcastRosterLocked()
		logf(h.cfg, "GAMES: Round reset by %q", player.Name)
	}
}

// startRoundLocked starts a round for the requesting client. A finished
// round is swept aside first; an in-flight one makes the start fail. The
// AI answer is fetched synchronously here, so the round_started broadcast
// never races it.
func (h *Hub) startRoundLocked(c *Client, prompt string) {
	if h.rounds.Phase() == PhaseComplete {
		h.rounds.ResetRound()
		h.registry.ClearReady()
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		prompt = randomPrompt()
	}

	roundID, err := h.rounds.StartRound(h.ctx, prompt)
	if err != nil {
		h.errorLocked(c, err.Error())

		return
	}

	logf(h.cfg, "GAMES: Round %s started: %q", roundID, prompt)

	h.broadcastLocked(RoundStartedMessage{
		Type:    "round_started",
		RoundID: roundID,
		Prompt:  prompt,
	})

	submitted, expected := h.rounds.ResponseProgress()
	h.broadcastLocked(ProgressMessage{
		Type:      "response_progress",
		Submitted: submitted,
		Expected:  expected,
	})

	h.advanceLocked()
}

// closeAll disconnects every client (used on shutdown).
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const playerCookieName = "whoistheai_id"

func getOrSetPlayerID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		log.Println("rand.Read error:", err)
		return ""
	}
	id := hex.EncodeToString(buf)

	http.SetCookie(w, &http.Cookie{
		Name:     playerCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// serveWS upgrades a connection and hands it to the hub.
func serveWS(cfg *Config, h *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		playerID := getOrSetPlayerID(w, r)
		if playerID == "" {
			http.Error(w, "unable to assign player id", http.StatusInternalServerError)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:     conn,
			send:     make(chan any, 8),
			playerID: playerID,
		}

		h.register <- client

		go client.writePump()
		client.readPump(h)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "join":
			h.joins <- clientAction{
				client: c,
				msg:    msg,
			}
		case "ready", "start_round", "response", "vote", "reset":
			h.actions <- clientAction{
				client: c,
				msg:    msg,
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the lobby URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /.../qr; strip the trailing "/qr" to get the lobby URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")
	if path == "" {
		path = "/"
	}

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// registerGame wires the lobby: one registry, one round coordinator, one
// hub, plus the websocket and QR routes.
func registerGame(ctx context.Context, cfg *Config, mux *httprouter.Router) *Hub {
	registry := newRegistry(cfg.maxPlayers)
	rounds := newCoordinator(registry, newOllamaClient(cfg))

	hub := newHub(ctx, cfg, registry, rounds)
	go hub.run()

	mux.GET(cfg.prefix+"/ws", serveWS(cfg, hub))
	mux.GET(cfg.prefix+"/qr", qrHandler)

	return hub
}
