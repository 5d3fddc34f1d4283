package lifecycle

import (
	"bufio"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"jalocald/internal/logging"
)

// ThreadCounter reads the live goroutine-backing OS thread count from
// /proc/self/status, mirroring get_thread_count in the reference
// implementation: a parse failure is reported once and then treated as
// "zero", which the caller reads as "throttling disabled for this
// iteration", never as a reason to stop accepting connections.
type ThreadCounter struct {
	logger       *slog.Logger
	errorShown   bool
	errorShownMu sync.Mutex
}

// NewThreadCounter constructs a counter that logs parse failures through
// logger, once.
func NewThreadCounter(logger *slog.Logger) *ThreadCounter {
	return &ThreadCounter{logger: logging.Default(logger).With("component", "lifecycle")}
}

// Count returns the current number of live OS threads in this process,
// or 0 if /proc/self/status could not be read or parsed.
func (t *ThreadCounter) Count() int {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		t.reportOnce("open /proc/self/status", err)
		return 0
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || !info.Mode().IsRegular() {
		t.reportOnce("stat /proc/self/status", err)
		return 0
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "Threads:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			t.reportOnce("malformed Threads line", nil)
			return 0
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			t.reportOnce("parse thread count", err)
			return 0
		}
		if n < 0 {
			return 0
		}
		return n
	}
	t.reportOnce("no Threads line found", nil)
	return 0
}

func (t *ThreadCounter) reportOnce(msg string, err error) {
	t.errorShownMu.Lock()
	defer t.errorShownMu.Unlock()
	if t.errorShown {
		return
	}
	t.errorShown = true
	t.logger.Warn("thread count unavailable, throttling disabled", "reason", msg, "error", err)
}
