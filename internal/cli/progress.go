package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ReflectionProgress draws the processed/total counters of a reflection.
// It satisfies the progress interface the reflector reports into. On a
// terminal it redraws one line; otherwise it prints throttled lines.
type ReflectionProgress struct {
	name     string
	writer   io.Writer
	width    int
	throttle time.Duration

	mu       sync.Mutex
	lastDraw time.Time
	start    time.Time
}

// NewReflectionProgress creates a progress bar for the named connection.
func NewReflectionProgress(name string) *ReflectionProgress {
	return &ReflectionProgress{
		name:     name,
		writer:   os.Stderr,
		width:    30,
		throttle: 500 * time.Millisecond,
		start:    time.Now(),
	}
}

// Advance redraws the bar.
func (p *ReflectionProgress) Advance(processed, total int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !EnableColors() {
		if processed < total && time.Since(p.lastDraw) < p.throttle {
			return nil
		}
		p.lastDraw = time.Now()
		fmt.Fprintf(p.writer, "[%d/%d] reflecting %s\n", processed, total, p.name)
		return nil
	}

	percent := 1.0
	if total > 0 {
		percent = float64(processed) / float64(total)
	}
	filled := int(percent * float64(p.width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)

	fmt.Fprintf(p.writer, "\r%s [%s] %d/%d %s",
		Progress(fmt.Sprintf("%3.0f%%", percent*100)),
		bar,
		processed,
		total,
		p.name)
	return nil
}

// Done clears the bar and prints a summary line.
func (p *ReflectionProgress) Done(tables, skipped int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if EnableColors() {
		fmt.Fprintf(p.writer, "\r%s\r", strings.Repeat(" ", p.width+len(p.name)+20))
	}
	msg := fmt.Sprintf("reflected %s in %s", FormatCount(tables, "table", "tables"), formatDuration(time.Since(p.start)))
	if skipped > 0 {
		msg += fmt.Sprintf(" (%s skipped)", FormatCount(skipped, "table", "tables"))
	}
	fmt.Fprint(p.writer, FormatSuccess(p.name+": "+msg))
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
