package models

import (
	"time"
)

type EventKind string

const (
	EventStanceTransition EventKind = "STANCE_TRANSITION"
	EventThrottleOn       EventKind = "THROTTLE_ON"
	EventThrottleOff      EventKind = "THROTTLE_OFF"
	EventKill             EventKind = "KILL"
	EventKillCleared      EventKind = "KILL_CLEARED"
	EventRiskClip         EventKind = "RISK_CLIP"
	EventFillClip         EventKind = "FILL_CLIP"
)

type Event struct {
	Bar           int       `json:"bar"`
	Timestamp     time.Time `json:"timestamp"`
	Kind          EventKind `json:"kind"`
	From          Stance    `json:"from,omitempty"`
	To            Stance    `json:"to,omitempty"`
	Reason        string    `json:"reason"`
	Requested     int       `json:"requested"`
	Executed      int       `json:"executed"`
	Drawdown      float64   `json:"drawdown"`
	GammaExposure float64   `json:"gamma_exposure"`
}
