package protocol

// HELLO (engine -> agent), once per game. Replay marks a session that feeds
// back a recorded game; its result is never scored or archived.
type HelloMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	GameID          string     `json:"game_id"`
	Player          int        `json:"player"`
	Config          GameConfig `json:"config"`
	Replay          bool       `json:"replay,omitempty"`
}

// GameConfig overrides the agent's tuning for one game. Zero values keep the
// tuning defaults.
type GameConfig struct {
	Size         int     `json:"size,omitempty"`
	EpisodeSteps int     `json:"episode_steps,omitempty"`
	SpawnCost    float64 `json:"spawn_cost,omitempty"`
}

// WELCOME (agent -> engine)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	GameID          string `json:"game_id"`
	AgentName       string `json:"agent_name"`
	Policy          string `json:"policy"`
}

// RESULT (engine -> agent), once at the end of a game. Rewards are indexed by
// player; a null reward (player eliminated) counts as 0.
type ResultMsg struct {
	Type            string     `json:"type"`
	ProtocolVersion string     `json:"protocol_version"`
	GameID          string     `json:"game_id"`
	Rewards         []*float64 `json:"rewards"`
}

// ERROR (agent -> engine) for messages the agent could not act on.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message,omitempty"`
	Step            int    `json:"step,omitempty"`
}

func NewError(code, msg string, step int) ErrorMsg {
	return ErrorMsg{Type: TypeError, ProtocolVersion: Version, Code: code, Message: msg, Step: step}
}
