package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Action tokens.
const (
	ActionNorth   = "NORTH"
	ActionSouth   = "SOUTH"
	ActionEast    = "EAST"
	ActionWest    = "WEST"
	ActionConvert = "CONVERT"
	ActionSpawn   = "SPAWN"
)

var ErrUnknownAction = errors.New("unknown action")

var actionTokens = []string{ActionNorth, ActionSouth, ActionEast, ActionWest, ActionConvert, ActionSpawn}

func IsUnitAction(tok string) bool {
	switch tok {
	case ActionNorth, ActionSouth, ActionEast, ActionWest, ActionConvert:
		return true
	}
	return false
}

func IsBaseAction(tok string) bool { return tok == ActionSpawn }

// ParseAction returns the canonical token for s. Unknown tokens get the
// closest known token as a suggestion when one is within edit distance 2.
func ParseAction(s string) (string, error) {
	tok := strings.ToUpper(strings.TrimSpace(s))
	for _, known := range actionTokens {
		if tok == known {
			return known, nil
		}
	}
	if sug := suggestAction(tok); sug != "" {
		return "", fmt.Errorf("%w %q (did you mean %s?)", ErrUnknownAction, s, sug)
	}
	return "", fmt.Errorf("%w %q", ErrUnknownAction, s)
}

func suggestAction(tok string) string {
	best, bestDist := "", 3
	for _, known := range actionTokens {
		if d := levenshtein.ComputeDistance(tok, known); d < bestDist {
			best, bestDist = known, d
		}
	}
	return best
}
