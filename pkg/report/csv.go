package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/gregtusar/volhedge/pkg/models"
)

var stepHeader = []string{
	"timestamp", "bar", "stance", "spot", "option_mid", "edge", "vol_of_vol", "trend_strength",
	"cheapness", "requested_target_exposure", "executed_target_exposure", "contracts",
	"hedge_shares", "net_delta", "gamma_exposure", "vega_exposure", "leverage", "drawdown",
	"equity", "option_mtm_pnl", "hedge_pnl", "fees", "slippage", "total_pnl", "gamma_zone",
	"size_factor", "throttled", "killed", "risk_reason",
}

var tradeHeader = []string{
	"trade_id", "bar", "timestamp", "instrument", "side", "quantity", "price", "notional", "fee",
	"slippage",
}

var summaryHeader = []string{
	"strategy_mode", "option_mtm_pnl", "hedge_pnl", "fees", "slippage", "total_pnl",
	"ending_equity", "max_drawdown", "bars", "trades", "transitions", "kills",
}

// WriteSteps writes the per-bar audit log.
func WriteSteps(w io.Writer, rows []models.StepRow) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{
			stamp(r.Timestamp),
			itoa(r.Bar),
			string(r.Stance),
			money(r.Spot),
			money(r.OptionMid),
			money(r.Edge),
			money(r.VolOfVol),
			money(r.TrendStrength),
			money(r.Cheapness),
			itoa(r.Requested),
			itoa(r.Executed),
			itoa(r.Contracts),
			itoa(r.Shares),
			money(r.NetDelta),
			money(r.GammaExposure),
			money(r.VegaExposure),
			num(r.Leverage, factorPlaces),
			money(r.Drawdown),
			money(r.Equity),
			money(r.PnL.OptionMTM),
			money(r.PnL.Hedge),
			money(r.PnL.Fees),
			money(r.PnL.Slippage),
			money(r.TotalPnL()),
			string(r.GammaZone),
			num(r.SizeFactor, factorPlaces),
			flag(r.Throttled),
			flag(r.Killed),
			r.RiskReason,
		})
	}
	return writeCSV(w, stepHeader, records)
}

// WriteEquity writes the equity curve with its running drawdown.
func WriteEquity(w io.Writer, rows []models.StepRow) error {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, []string{stamp(r.Timestamp), money(r.Equity), money(r.Drawdown)})
	}
	return writeCSV(w, []string{"timestamp", "equity", "drawdown"}, records)
}

func WriteTrades(w io.Writer, trades []models.TradeRecord) error {
	records := make([][]string, 0, len(trades))
	for _, t := range trades {
		records = append(records, []string{
			t.ID,
			itoa(t.Bar),
			stamp(t.Timestamp),
			string(t.Instrument),
			string(t.Side),
			itoa(t.Quantity),
			money(t.Price),
			money(t.Notional),
			money(t.Fee),
			money(t.Slippage),
		})
	}
	return writeCSV(w, tradeHeader, records)
}

// WriteSummaries writes one row per mode. It serves both summary_<mode>.csv and comparison.csv.
func WriteSummaries(w io.Writer, summaries []models.Summary) error {
	records := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		records = append(records, []string{
			string(s.Mode),
			money(s.PnL.OptionMTM),
			money(s.PnL.Hedge),
			money(s.PnL.Fees),
			money(s.PnL.Slippage),
			money(s.TotalPnL),
			money(s.EndingEquity),
			money(s.MaxDrawdown),
			itoa(s.Bars),
			itoa(s.Trades),
			itoa(s.Transitions),
			itoa(s.Kills),
		})
	}
	return writeCSV(w, summaryHeader, records)
}

func writeCSV(w io.Writer, header []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}
