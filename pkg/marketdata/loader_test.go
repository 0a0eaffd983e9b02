package marketdata

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pricesCSV = `date,close,realized_vol
2024-01-02 09:30,100,0.15
2024-01-02 09:31,100.5,0.16
2024-01-02 09:32,100.2,0.15
`

const optionsCSV = `date,option_mid,iv,delta,gamma,vega,expiry_days
2024-01-02 09:30,2.10,0.22,0.51,0.03,0.12,30
2024-01-02 09:31,2.20,0.23,0.52,0.03,0.12,30
2024-01-02 09:32,2.15,0.22,0.51,0.03,0.12,30
`

func TestLoadFilesAlignsSeries(t *testing.T) {
	dir := t.TempDir()
	prices := filepath.Join(dir, "prices.csv")
	options := filepath.Join(dir, "options.csv")
	require.NoError(t, os.WriteFile(prices, []byte(pricesCSV), 0o644))
	require.NoError(t, os.WriteFile(options, []byte(optionsCSV), 0o644))

	bars, err := LoadFiles(prices, options)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, time.Date(2024, 1, 2, 9, 31, 0, 0, time.UTC), bars[1].Timestamp)
	assert.Equal(t, 100.5, bars[1].Spot)
	assert.Equal(t, 0.16, bars[1].RealizedVol)
	assert.Equal(t, 2.20, bars[1].OptionMid)
	assert.Equal(t, 0.23, bars[1].ImpliedVol)
	assert.Equal(t, 0.0, bars[1].Theta)
	assert.Equal(t, 30.0, bars[1].ExpiryDays)
	assert.False(t, IsDaily(bars))
}

func TestMissingColumnIsContractViolation(t *testing.T) {
	csv := strings.Replace(optionsCSV, ",gamma", ",gamma_x", 1)
	_, err := ReadOptions(strings.NewReader(csv), "options.csv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDataContract))

	var ce *ContractError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "gamma", ce.Field)
}

func TestMissingValueIsContractViolation(t *testing.T) {
	csv := strings.Replace(pricesCSV, "100.5,0.16", "100.5,", 1)
	_, err := ReadPrices(strings.NewReader(csv), "prices.csv")
	require.ErrorIs(t, err, ErrDataContract)

	var ce *ContractError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 3, ce.Row)
	assert.Equal(t, "realized_vol", ce.Field)
}

func TestNonMonotonicTimestampsRejected(t *testing.T) {
	csv := `timestamp,close,realized_vol
2024-01-03,100,0.1
2024-01-02,101,0.1
`
	_, err := ReadPrices(strings.NewReader(csv), "prices.csv")
	require.ErrorIs(t, err, ErrDataContract)
	assert.Contains(t, err.Error(), "non-monotonic")

	dup := `timestamp,close,realized_vol
2024-01-02,100,0.1
2024-01-02,101,0.1
`
	_, err = ReadPrices(strings.NewReader(dup), "prices.csv")
	require.ErrorIs(t, err, ErrDataContract)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestAlignRejectsMismatch(t *testing.T) {
	prices, err := ReadPrices(strings.NewReader(pricesCSV), "prices.csv")
	require.NoError(t, err)
	options, err := ReadOptions(strings.NewReader(optionsCSV), "options.csv")
	require.NoError(t, err)

	_, err = Align(prices[:2], options)
	require.ErrorIs(t, err, ErrDataContract)

	options[1].Timestamp = options[1].Timestamp.Add(time.Second)
	_, err = Align(prices, options)
	require.ErrorIs(t, err, ErrDataContract)
}

func TestBetweenAndDaily(t *testing.T) {
	csv := `date,close,realized_vol
2024-01-02,100,0.1
2024-01-03,101,0.1
2024-01-04,102,0.1
`
	opts := `date,option_mid,implied_vol,delta,gamma,vega,theta
2024-01-02,2,0.2,0.5,0.01,0.1,-0.05
2024-01-03,2,0.2,0.5,0.01,0.1,-0.05
2024-01-04,2,0.2,0.5,0.01,0.1,-0.05
`
	prices, err := ReadPrices(strings.NewReader(csv), "p")
	require.NoError(t, err)
	options, err := ReadOptions(strings.NewReader(opts), "o")
	require.NoError(t, err)
	bars, err := Align(prices, options)
	require.NoError(t, err)

	assert.True(t, IsDaily(bars))
	assert.Equal(t, -0.05, bars[0].Theta)

	start, _ := ParseTime("2024-01-03")
	kept := Between(bars, start, time.Time{})
	require.Len(t, kept, 2)
	assert.Equal(t, 101.0, kept[0].Spot)
}

func TestParseTimeFormats(t *testing.T) {
	for _, s := range []string{"2024-01-02T09:30:00Z", "2024-01-02 09:30:00", "2024-01-02 09:30", "1704187800"} {
		ts, err := ParseTime(s)
		require.NoError(t, err, s)
		assert.Equal(t, time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC), ts, s)
	}
	_, err := ParseTime("yesterday")
	assert.Error(t, err)
}
