package models

type Stance string

const (
	StanceFlat     Stance = "FLAT"
	StanceShortVol Stance = "SHORT_VOL"
	StanceLongVol  Stance = "LONG_VOL"
	StancePaused   Stance = "PAUSED"
)

// Direction is the sign of the option position the stance asks for.
func (s Stance) Direction() int {
	switch s {
	case StanceShortVol:
		return -1
	case StanceLongVol:
		return 1
	default:
		return 0
	}
}

// IsSide reports whether the stance holds a volatility view.
func (s Stance) IsSide() bool {
	return s == StanceShortVol || s == StanceLongVol
}

type Mode string

const (
	ModeShort    Mode = "short"
	ModeLong     Mode = "long"
	ModeAdaptive Mode = "adaptive"
	ModeBoth     Mode = "both"
	ModeAll      Mode = "all"
)

type GammaZone string

const (
	GammaZoneGreen  GammaZone = "green"
	GammaZoneYellow GammaZone = "yellow"
	GammaZoneRed    GammaZone = "red"
)
