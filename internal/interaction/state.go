package interaction

import (
	"encoding/json"
	"fmt"

	"archtdea/internal/model"
)

type State int

const (
	Idle State = iota
	AwaitingUserReady
	ShowingCandidate
	AwaitingPreferenceSelection
	AwaitingConfirmation
	ErrorDialog
	AwaitingReport
)

var stateNames = [...]string{
	"idle",
	"awaiting_user_ready",
	"showing_candidate",
	"awaiting_preference_selection",
	"awaiting_confirmation",
	"error_dialog",
	"awaiting_report",
}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// ShownCandidate is the read-only view of the candidate under review.
type ShownCandidate struct {
	ID         string           `json:"id"`
	Objectives []float64        `json:"objectives"`
	Feasible   bool             `json:"feasible"`
	Frozen     []int            `json:"frozen,omitempty"`
	View       model.StaticView `json:"view"`
}

// Snapshot is a consistent copy of the protocol state for UI bindings. Seq
// increases on every change.
type Snapshot struct {
	Seq        uint64          `json:"seq"`
	State      State           `json:"state"`
	Generation int             `json:"generation"`
	Index      int             `json:"index"`
	Total      int             `json:"total"`
	Candidate  *ShownCandidate `json:"candidate,omitempty"`
	Draft      *Draft          `json:"draft,omitempty"`
	Error      string          `json:"error,omitempty"`
	Added      int             `json:"added"`
	Stopped    bool            `json:"stopped"`
}
