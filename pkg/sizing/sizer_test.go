package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gregtusar/volhedge/pkg/models"
)

func TestGammaBandFactors(t *testing.T) {
	s := NewSizer(DefaultConfig())

	// 100000 * 0.20 / (2.0 * 100) = 100 contracts at full size, so bar gamma g puts the
	// candidate at 100 * g * 100 of book gamma
	tests := []struct {
		name      string
		gamma     float64
		exposure  float64
		zone      models.GammaZone
		factor    float64
		contracts int
	}{
		{name: "green", gamma: 0.001, exposure: -10, zone: models.GammaZoneGreen, factor: 1.0, contracts: -100},
		{name: "yellow", gamma: 0.005, exposure: -50, zone: models.GammaZoneYellow, factor: 0.50, contracts: -50},
		{name: "red", gamma: 0.009, exposure: -90, zone: models.GammaZoneRed, factor: 0.25, contracts: -25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := models.Bar{OptionMid: 2.0, Vega: 0.1, Gamma: tt.gamma}
			res := s.Size(Request{Stance: models.StanceShortVol, Equity: 100000, Bar: bar})
			assert.Equal(t, tt.zone, res.Zone)
			assert.Equal(t, tt.factor, res.Factor)
			assert.InDelta(t, tt.exposure, res.GammaExposure, 1e-9)
			assert.Equal(t, tt.contracts, res.Contracts)
		})
	}
}

func TestBandBoundariesAreInclusive(t *testing.T) {
	s := NewSizer(DefaultConfig())

	zone, _ := s.Band(40)
	assert.Equal(t, models.GammaZoneGreen, zone)
	zone, _ = s.Band(-75)
	assert.Equal(t, models.GammaZoneYellow, zone)
	zone, _ = s.Band(75.5)
	assert.Equal(t, models.GammaZoneRed, zone)
}

func TestBandIgnoresHeldPosition(t *testing.T) {
	s := NewSizer(DefaultConfig())
	bar := models.Bar{OptionMid: 1.0, Vega: 0.15, Gamma: 0.1}

	// the vega budget allows 10 contracts, 100 of gamma, so the request is red whatever is held
	first := s.Size(Request{Stance: models.StanceLongVol, Equity: 10000, Bar: bar})
	assert.Equal(t, models.GammaZoneRed, first.Zone)
	assert.Equal(t, 2, first.Contracts)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, s.Size(Request{Stance: models.StanceLongVol, Equity: 10000, Bar: bar}))
	}
}

func TestFlatAndPausedRequestZero(t *testing.T) {
	s := NewSizer(DefaultConfig())
	bar := models.Bar{OptionMid: 2.0, Gamma: 0.05}
	for _, st := range []models.Stance{models.StanceFlat, models.StancePaused} {
		res := s.Size(Request{Stance: st, Equity: 10000, Bar: bar})
		assert.Zero(t, res.Contracts)
		assert.Equal(t, models.GammaZoneGreen, res.Zone)
	}
	assert.Zero(t, s.Size(Request{Stance: models.StanceShortVol, Equity: -5, Bar: bar}).Contracts)
}

func TestLongUsesVegaBudget(t *testing.T) {
	s := NewSizer(DefaultConfig())
	bar := models.Bar{OptionMid: 1.0, Vega: 0.5}

	// capital at risk allows 20 contracts, vega budget 10000*0.015/(0.5*100) = 3
	res := s.Size(Request{Stance: models.StanceLongVol, Equity: 10000, Bar: bar})
	assert.Equal(t, 3, res.Contracts)

	res = s.Size(Request{Stance: models.StanceShortVol, Equity: 10000, Bar: bar})
	assert.Equal(t, -20, res.Contracts)
}

func TestSizingFollowsEquity(t *testing.T) {
	s := NewSizer(DefaultConfig())
	bar := models.Bar{OptionMid: 2.0}

	small := s.Size(Request{Stance: models.StanceShortVol, Equity: 5000, Bar: bar})
	large := s.Size(Request{Stance: models.StanceShortVol, Equity: 20000, Bar: bar})
	assert.Equal(t, -5, small.Contracts)
	assert.Equal(t, -20, large.Contracts)
}
