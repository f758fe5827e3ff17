package session

import (
	"time"

	"github.com/raysh454/cyra/internal/analyzer"
	"github.com/raysh454/cyra/internal/model"
)

// Phase is the lifecycle position of a session.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePending   Phase = "pending"
	PhaseSucceeded Phase = "succeeded"
	PhaseFailed    Phase = "failed"
)

// State is a snapshot of a session. RequestID is set in every phase but
// idle; Outcome only when succeeded; ErrorKind and Error only when failed.
type State struct {
	Surface    string             `json:"surface"`
	Phase      Phase              `json:"phase"`
	RequestID  string             `json:"requestId,omitempty"`
	Kind       model.ScanKind     `json:"kind,omitempty"`
	Outcome    *model.ScanOutcome `json:"outcome,omitempty"`
	ErrorKind  analyzer.ErrorKind `json:"errorKind,omitempty"`
	Error      string             `json:"error,omitempty"`
	Generation uint64             `json:"generation"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// Terminal reports whether the state is succeeded or failed.
func (s State) Terminal() bool {
	return s.Phase == PhaseSucceeded || s.Phase == PhaseFailed
}
