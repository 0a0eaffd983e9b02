package signal

import (
	"github.com/gregtusar/volhedge/pkg/models"
)

// Window keeps the trailing bars the evaluator needs: the warm-up length plus one bar for the
// previous-edge and last-return terms.
type Window struct {
	bars     []models.Bar
	capacity int
}

func NewWindow(cfg Config) *Window {
	capacity := cfg.Warmup() + 1
	return &Window{
		bars:     make([]models.Bar, 0, capacity),
		capacity: capacity,
	}
}

func (w *Window) Push(bar models.Bar) {
	if len(w.bars) == w.capacity {
		copy(w.bars, w.bars[1:])
		w.bars = w.bars[:len(w.bars)-1]
	}
	w.bars = append(w.bars, bar)
}

func (w *Window) Len() int {
	return len(w.bars)
}

// Bars returns the buffered bars oldest first. The slice is reused by the next Push.
func (w *Window) Bars() []models.Bar {
	return w.bars
}
