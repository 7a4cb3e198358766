package models

import (
	"encoding/json"
	"fmt"
)

// Inbound is one decoded message received from a peer. Raw holds the whole
// JSON object; command specific fields are decoded from it on demand.
type Inbound struct {
	Raw json.RawMessage
}

// Command returns the message's "cmd" field. ok is false when the field is
// missing, not a string, or the message is not a JSON object.
func (m Inbound) Command() (cmd string, ok bool) {
	var head struct {
		Cmd *string `json:"cmd"`
	}
	if err := json.Unmarshal(m.Raw, &head); err != nil || head.Cmd == nil {
		return "", false
	}
	return *head.Cmd, *head.Cmd != ""
}

// NewInbound builds a message from a command name and its fields. Used by
// tests and by in-process callers that skip the transport.
func NewInbound(cmd string, fields map[string]interface{}) (Inbound, error) {
	body := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["cmd"] = cmd
	raw, err := json.Marshal(body)
	if err != nil {
		return Inbound{}, fmt.Errorf("encode %s message: %w", cmd, err)
	}
	return Inbound{Raw: raw}, nil
}

// LobbyInfo is one row of the lobby listing.
type LobbyInfo struct {
	Number     int    `json:"number"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"max_players"`
	State      string `json:"state"`
	Versus     bool   `json:"versus"`
	Host       string `json:"host,omitempty"`
}

// RosterEntry describes one lobby member to the other members.
type RosterEntry struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	UnlockHash string `json:"unlock_hash"`
	Host       bool   `json:"host"`
	Eliminated bool   `json:"eliminated"`
}
