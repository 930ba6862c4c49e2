package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// CLIProgress reports conversion progress to the terminal. On a TTY it
// redraws a single line; otherwise it prints a line per update.
type CLIProgress struct {
	out       io.Writer
	total     int
	startTime time.Time
	lastPrint time.Time
	tty       bool
}

func newCLIProgress(out io.Writer) *CLIProgress {
	return &CLIProgress{out: out, tty: isTerminal(out)}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func (p *CLIProgress) writer() io.Writer {
	if p.out == nil {
		return os.Stderr
	}
	return p.out
}

func (p *CLIProgress) OnStart(total int) {
	p.total = total
	p.startTime = time.Now()
	p.lastPrint = time.Time{} // Force first print
	// Show initial progress immediately so it doesn't look like it's hanging
	p.OnProgress(0, 0, 0)
}

func (p *CLIProgress) OnProgress(processed, converted, failed int) {
	if p.startTime.IsZero() {
		p.startTime = time.Now()
	}
	if p.total <= 0 {
		return
	}
	// Always draw the final state; throttle the rest.
	if processed < p.total && time.Since(p.lastPrint) < 500*time.Millisecond {
		return
	}
	p.lastPrint = time.Now()

	pct := float64(processed) / float64(p.total) * 100
	elapsed := time.Since(p.startTime)

	var eta string
	if processed > 0 && processed < p.total {
		remaining := time.Duration(float64(elapsed) / float64(processed) * float64(p.total-processed))
		eta = formatDuration(remaining) + " remaining"
	} else if processed >= p.total {
		eta = formatDuration(elapsed) + " elapsed"
	} else {
		eta = "calculating..."
	}

	status := fmt.Sprintf("  %s %.1f%%  %d/%d", progressBar(pct, 30), pct, processed, p.total)
	if failed > 0 {
		status += fmt.Sprintf("  (%d failed)", failed)
	}
	status += "  " + eta
	if p.tty {
		fmt.Fprintf(p.writer(), "\r\033[K%s", status)
	} else {
		fmt.Fprintln(p.writer(), status)
	}
}

func (p *CLIProgress) OnComplete(converted, failed int) {
	// Clear the progress line
	if p.tty {
		fmt.Fprint(p.writer(), "\r\033[K")
	}
}

func progressBar(pct float64, width int) string {
	filled := int(pct / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := make([]byte, width)
	for i := range bar {
		if i < filled {
			bar[i] = '#'
		} else {
			bar[i] = '-'
		}
	}
	return "[" + string(bar) + "]"
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
