package models

// GameAction is one journaled event of a run.
type GameAction struct {
	RunID     string                 `bson:"runId" json:"run_id"`
	Lobby     int                    `bson:"lobby" json:"lobby"`
	PlayerID  string                 `bson:"playerId" json:"player_id"`
	Action    string                 `bson:"action" json:"action"`
	Data      map[string]interface{} `bson:"data,omitempty" json:"data,omitempty"`
	Timestamp int64                  `bson:"timestamp" json:"timestamp"`
}

// GameSession represents all actions taken in a single run.
type GameSession struct {
	RunID   string       `bson:"runId" json:"run_id"`
	Actions []GameAction `bson:"actions" json:"actions"`
}
