package models

// ApiResponse is the envelope for every reply and broadcast. Lobby traffic also
// carries a GameState summary.
type ApiResponse struct {
	Success   bool        `json:"success"`
	Cmd       string      `json:"cmd"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	GameState *GameState  `json:"game_state,omitempty"`
}

// GameState is the short run summary attached to lobby traffic.
type GameState struct {
	State      string `json:"state"`
	Remaining  int    `json:"remaining"`
	Eliminated int    `json:"eliminated"`
}

func SuccessResponse(cmd string, data interface{}) ApiResponse {
	return ApiResponse{Success: true, Cmd: cmd, Data: data}
}

func ErrorResponse(cmd string, errorMessage string) ApiResponse {
	return ApiResponse{Success: false, Cmd: cmd, Error: errorMessage}
}

// WithGameState returns a copy of r carrying the given summary.
func (r ApiResponse) WithGameState(state GameState) ApiResponse {
	r.GameState = &state
	return r
}
