package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/gregtusar/volhedge/pkg/execution"
	"github.com/gregtusar/volhedge/pkg/models"
	"github.com/gregtusar/volhedge/pkg/replay"
	"github.com/gregtusar/volhedge/pkg/risk"
	"github.com/gregtusar/volhedge/pkg/signal"
	"github.com/gregtusar/volhedge/pkg/sizing"
	"github.com/gregtusar/volhedge/pkg/stance"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func replayConfig() replay.Config {
	st := stance.DefaultConfig()
	st.CooldownBars = 3
	st.Adaptive.CooldownBars = 3
	return replay.Config{
		InitialCapital: 10000,
		Signal:         signal.Config{RVShortWindow: 2, RVMediumWindow: 10, TrendWindow: 5},
		Stance:         st,
		Sizing:         sizing.DefaultConfig(),
		Risk:           risk.DefaultConfig(),
		Execution:      execution.DefaultConfig(),
	}
}

func testBars() []models.Bar {
	start := time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)
	bars := make([]models.Bar, 120)
	for i := range bars {
		x := float64(i)
		b := models.Bar{
			Timestamp:   start.Add(time.Duration(i) * time.Minute),
			Spot:        100 + 0.05*math.Sin(x),
			RealizedVol: 0.15,
			ImpliedVol:  0.20,
			OptionMid:   2.0 + 0.01*math.Cos(x/3),
			Delta:       0.5 + 0.01*math.Sin(x/7),
			Gamma:       0.02,
			Vega:        0.15,
		}
		if i >= 60 {
			b.RealizedVol = 0.15 + 0.002*float64(i-60)
			b.ImpliedVol = 0.10
			b.OptionMid = 1.0
		}
		bars[i] = b
	}
	return bars
}

func runAll(t *testing.T) []*replay.Result {
	t.Helper()
	runner := replay.NewRunner(replayConfig(), quietLogger())
	results, err := runner.RunModes(context.Background(), replay.ExpandModes(models.ModeAll), testBars())
	require.NoError(t, err)
	return results
}

func TestWriteAllIsByteIdenticalAcrossReruns(t *testing.T) {
	meta := Metadata{PricesPath: "prices.csv", OptionsPath: "options.csv"}
	dirA, dirB := t.TempDir(), t.TempDir()

	writtenA, err := NewWriter(dirA, quietLogger()).WriteAll(runAll(t), meta)
	require.NoError(t, err)
	writtenB, err := NewWriter(dirB, quietLogger()).WriteAll(runAll(t), meta)
	require.NoError(t, err)
	require.Len(t, writtenA, 3*6+1)
	require.Len(t, writtenB, len(writtenA))

	for i := range writtenA {
		name := filepath.Base(writtenA[i])
		require.Equal(t, name, filepath.Base(writtenB[i]))

		a, err := os.ReadFile(writtenA[i])
		require.NoError(t, err)
		b, err := os.ReadFile(writtenB[i])
		require.NoError(t, err)

		if strings.HasPrefix(name, "manifest_") {
			var ma, mb Manifest
			require.NoError(t, yaml.Unmarshal(a, &ma))
			require.NoError(t, yaml.Unmarshal(b, &mb))
			assert.NotEqual(t, ma.RunID, mb.RunID)
			ma.RunID, mb.RunID = "", ""
			assert.Equal(t, ma, mb, name)
			continue
		}
		assert.True(t, bytes.Equal(a, b), "%s differs between reruns", name)
	}

	entries, err := os.ReadDir(dirA)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover %s", e.Name())
	}
}

func TestStepsAndComparisonTables(t *testing.T) {
	results := runAll(t)
	dir := t.TempDir()
	_, err := NewWriter(dir, quietLogger()).WriteAll(results, Metadata{})
	require.NoError(t, err)

	steps := readCSV(t, filepath.Join(dir, "steps_adaptive.csv"))
	require.Len(t, steps, len(results[2].Rows)+1)
	assert.Equal(t, stepHeader, steps[0])
	assert.Equal(t, "2024-03-04T14:30:00Z", steps[1][0])
	assert.Equal(t, "FLAT", steps[1][2])

	comparison := readCSV(t, filepath.Join(dir, ComparisonFile))
	require.Len(t, comparison, 4)
	assert.Equal(t, []string{"short", "long", "adaptive"},
		[]string{comparison[1][0], comparison[2][0], comparison[3][0]})

	equity := readCSV(t, filepath.Join(dir, "equity_short.csv"))
	last := results[0].Rows[len(results[0].Rows)-1]
	assert.Equal(t, money(last.Equity), equity[len(equity)-1][1])
}

func TestSingleModeHasNoComparison(t *testing.T) {
	results := runAll(t)[:1]
	dir := t.TempDir()
	written, err := NewWriter(dir, quietLogger()).WriteAll(results, Metadata{})
	require.NoError(t, err)
	assert.Len(t, written, 6)
	_, err = os.Stat(filepath.Join(dir, ComparisonFile))
	assert.True(t, os.IsNotExist(err))
}

func TestNumberFormatting(t *testing.T) {
	assert.Equal(t, "0.000000", money(-1e-9))
	assert.Equal(t, "-1.250000", money(-1.25))
	assert.Equal(t, "9985.000000", money(9985))
	assert.Equal(t, "inf", num(math.Inf(1), factorPlaces))
	assert.Equal(t, "nan", num(math.NaN(), factorPlaces))
	assert.Equal(t, "0.5000", num(0.5, factorPlaces))
}

func TestEventLog(t *testing.T) {
	ts := time.Date(2024, 3, 4, 15, 0, 0, 0, time.UTC)
	events := []models.Event{
		{Bar: 12, Timestamp: ts, Kind: models.EventStanceTransition, From: models.StanceFlat, To: models.StanceShortVol, Reason: "short_filters_pass"},
		{Bar: 40, Timestamp: ts, Kind: models.EventKill, Reason: risk.ReasonGlobalKill, Requested: -9, Drawdown: 0.2272, GammaExposure: -18},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteEvents(&buf, models.ModeShort, nil, events))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "2024-03-04T15:00:00Z STANCE_TRANSITION bar=12 from=FLAT to=SHORT_VOL reason=short_filters_pass drawdown=0.000000 gamma_exposure=0.000000", lines[0])
	assert.Equal(t, "2024-03-04T15:00:00Z KILL bar=40 requested=-9 executed=0 reason=GLOBAL_DRAWDOWN_KILL drawdown=0.227200 gamma_exposure=-18.000000", lines[1])

	buf.Reset()
	rows := []models.StepRow{{Timestamp: ts}}
	require.NoError(t, WriteEvents(&buf, models.ModeLong, rows, nil))
	assert.Equal(t, "2024-03-04T15:00:00Z INFO mode=long NO_EVENTS no stance or risk transitions occurred\n", buf.String())
}

func TestManifest(t *testing.T) {
	res := runAll(t)[0]
	var buf bytes.Buffer
	meta := Metadata{PricesPath: "p.csv", OptionsPath: "o.csv", Config: map[string]int{"cooldown_bars": 3}}
	require.NoError(t, WriteManifest(&buf, NewManifest(res, meta, []string{"steps_short.csv"})))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, res.RunID, decoded["run_id"])
	assert.Equal(t, "short", decoded["mode"])
	assert.Equal(t, 10, decoded["warmup"])
	assert.Equal(t, map[string]any{"prices": "p.csv", "options": "o.csv"}, decoded["inputs"])
	assert.Equal(t, map[string]any{"cooldown_bars": 3}, decoded["config"])
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}
