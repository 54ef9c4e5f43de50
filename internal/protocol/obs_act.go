package protocol

import (
	"encoding/json"
	"fmt"
)

// OBS (engine -> agent), once per turn.
type ObsMsg struct {
	Type            string    `json:"type"`
	ProtocolVersion string    `json:"protocol_version"`
	Step            int       `json:"step"`
	Player          PlayerObs `json:"player"`
	Halite          []float64 `json:"halite"` // row-major, size*size
}

type PlayerObs struct {
	Halite    float64            `json:"halite"`
	Shipyards map[string]int     `json:"shipyards"` // id -> board index
	Ships     map[string]ShipObs `json:"ships"`
}

// ShipObs is encoded as the engine's [index, cargo] pair.
type ShipObs struct {
	Index int
	Cargo float64
}

func (s ShipObs) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{float64(s.Index), s.Cargo})
}

func (s *ShipObs) UnmarshalJSON(b []byte) error {
	var pair []float64
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("ship: want [index, cargo], got %d values", len(pair))
	}
	if pair[0] != float64(int(pair[0])) {
		return fmt.Errorf("ship: non-integer index %v", pair[0])
	}
	s.Index = int(pair[0])
	s.Cargo = pair[1]
	return nil
}

// ACT (agent -> engine). Units and bases taking the default action are
// absent from Actions.
type ActMsg struct {
	Type            string            `json:"type"`
	ProtocolVersion string            `json:"protocol_version"`
	Step            int               `json:"step"`
	Actions         map[string]string `json:"actions"`
}

func NewAct(step int, actions map[string]string) ActMsg {
	if actions == nil {
		actions = map[string]string{}
	}
	return ActMsg{Type: TypeAct, ProtocolVersion: Version, Step: step, Actions: actions}
}
