package models

import "encoding/json"

// Command names understood by the server.
const (
	CmdAuth            = "auth"
	CmdLobbies         = "lobbies"
	CmdJoin            = "join"
	CmdPing            = "ping"
	CmdLobbyInfo       = "lobby_info"
	CmdLeave           = "leave"
	CmdStart           = "start"
	CmdStop            = "stop"
	CmdRelay           = "relay"
	CmdReadyBoss       = "ready_boss"
	CmdEliminated      = "eliminated"
	CmdScore           = "score"
	CmdSwapJokers      = "swap_jokers"
	CmdSwapJokersReply = "swap_jokers_reply"
	CmdCollect         = "collect"
	CmdCollectReply    = "collect_reply"
)

// Events pushed by the server that are not replies to a command of the same name.
const (
	EventStartBoss        = "start_boss"
	EventLeaderboard      = "leaderboard"
	EventGameOver         = "game_over"
	EventSwapJokersResult = "swap_jokers_result"
	EventCollectResult    = "collect_result"
)

type AuthRequest struct {
	ID         string         `json:"id" validate:"required_without=Token,max=64"`
	Name       string         `json:"name" validate:"max=32"`
	UnlockHash string         `json:"unlock_hash" validate:"max=512"`
	Stakes     map[string]int `json:"stakes" validate:"max=64,dive,keys,min=1,max=32,endkeys,min=0,max=8"`
	Token      string         `json:"token"`
}

type JoinRequest struct {
	Lobby int `json:"lobby" validate:"gte=0"`
}

type StartRequest struct {
	Stake  int    `json:"stake" validate:"required,min=1,max=8"`
	Deck   string `json:"deck" validate:"required,max=32"`
	Seed   string `json:"seed" validate:"omitempty,alphanum,max=16"`
	Versus bool   `json:"versus"`
}

type RelayRequest struct {
	Event   string          `json:"event" validate:"required,max=64"`
	Payload json.RawMessage `json:"payload"`
}

type ScoreRequest struct {
	Score *float64 `json:"score" validate:"required"`
}

type SwapJokersRequest struct {
	Jokers []json.RawMessage `json:"jokers" validate:"max=16"`
}

type SwapJokersReply struct {
	RequestID string            `json:"request_id" validate:"required,uuid"`
	Jokers    []json.RawMessage `json:"jokers" validate:"max=16"`
}

type CollectRequest struct {
	Kind string `json:"kind" validate:"required,oneof=cards jokers"`
}

type CollectReply struct {
	RequestID string            `json:"request_id" validate:"required,uuid"`
	Items     []json.RawMessage `json:"items" validate:"max=64"`
}

// LoginRequest is the body of the operator login endpoint.
type LoginRequest struct {
	Password string `json:"password" validate:"required,max=128"`
}
