package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"awsinventory/internal/inventory"
)

// UnitProgress renders one progress bar step per completed unit of work.
// It implements inventory.ProgressSink and is safe for concurrent use.
type UnitProgress struct {
	mu        sync.Mutex
	bar       *progressbar.ProgressBar
	completed int
	failed    int
	resources int
}

// NewUnitProgress creates a progress bar for total units written to w
func NewUnitProgress(total int, w io.Writer) *UnitProgress {
	return &UnitProgress{
		bar: progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("Collecting..."),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		),
	}
}

// UnitCompleted implements inventory.ProgressSink
func (p *UnitProgress) UnitCompleted(event inventory.UnitEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed++
	p.resources += event.Count
	desc := fmt.Sprintf("%-28s", event.Unit.String())
	if event.Status == inventory.StatusFailed {
		p.failed++
		desc = color.RedString("%-28s", event.Unit.String())
	}
	p.bar.Describe(desc)
	_ = p.bar.Add(1)
}

// Finish completes the bar
func (p *UnitProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.bar.Finish()
}

// Counts returns the completed units, failed units and resources seen so far
func (p *UnitProgress) Counts() (completed, failed, resources int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed, p.failed, p.resources
}
