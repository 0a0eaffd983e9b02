package models

import (
	"time"
)

// ContractMultiplier is the number of underlying shares one option contract controls.
const ContractMultiplier = 100.0

// Bar is one aligned instant of the underlying and the ATM option proxy.
type Bar struct {
	Timestamp   time.Time
	Spot        float64
	RealizedVol float64
	OptionMid   float64
	ImpliedVol  float64
	Delta       float64
	Gamma       float64
	Vega        float64
	Theta       float64
	ExpiryDays  float64
}

type SignalSnapshot struct {
	Ready         bool
	RVShort       float64
	RVMedium      float64
	Edge          float64
	EdgeVelocity  float64
	VolOfVol      float64
	RVRise        float64
	TrendStrength float64
	JumpAbsReturn float64
	Cheapness     float64
}
