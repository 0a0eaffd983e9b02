package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/gregtusar/volhedge/pkg/models"
)

// EventLine renders one event as "<timestamp> <KIND> key=value ...".
func EventLine(ev models.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s bar=%d", stamp(ev.Timestamp), ev.Kind, ev.Bar)
	if ev.Kind == models.EventStanceTransition {
		fmt.Fprintf(&b, " from=%s to=%s", ev.From, ev.To)
	} else {
		fmt.Fprintf(&b, " requested=%d executed=%d", ev.Requested, ev.Executed)
	}
	fmt.Fprintf(&b, " reason=%s drawdown=%s gamma_exposure=%s",
		ev.Reason, money(ev.Drawdown), money(ev.GammaExposure))
	return b.String()
}

// WriteEvents writes the structured event log. A run without events still gets one line so an
// empty log is never mistaken for a missing one.
func WriteEvents(w io.Writer, mode models.Mode, rows []models.StepRow, events []models.Event) error {
	bw := bufio.NewWriter(w)
	if len(events) == 0 && len(rows) > 0 {
		fmt.Fprintf(bw, "%s INFO mode=%s NO_EVENTS no stance or risk transitions occurred\n",
			stamp(rows[0].Timestamp), mode)
	}
	for _, ev := range events {
		bw.WriteString(EventLine(ev))
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
