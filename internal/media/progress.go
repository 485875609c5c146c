package media

import (
	"bufio"
	"bytes"
	"io"
	"regexp"
	"strconv"

	"github.com/datallboy/resample/internal/domain"
)

// Progress receives intermediate updates. *engine.Reporter implements it.
type Progress interface {
	Report(status domain.ProgressStatus, progress float64, message string)
}

// NopProgress discards updates.
type NopProgress struct{}

func (NopProgress) Report(domain.ProgressStatus, float64, string) {}

// tqdm renders "45%|████▌     | 9/20 [00:03<00:04]"
var tqdmPercent = regexp.MustCompile(`(\d{1,3})%\|`)

// parsePercent extracts the last tqdm percentage on a line.
func parsePercent(line string) (float64, bool) {
	matches := tqdmPercent.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return 0, false
	}
	p, err := strconv.Atoi(matches[len(matches)-1][1])
	if err != nil || p > 100 {
		return 0, false
	}
	return float64(p), true
}

// scanLines splits on \n and on the bare \r progress bars use to redraw.
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, trimLine(data[:i]), nil
	}
	if atEOF {
		return len(data), trimLine(data), nil
	}
	return 0, nil, nil
}

// trimLine never returns nil: the scanner stops at EOF on a nil token and
// would drop whatever is still buffered.
func trimLine(b []byte) []byte {
	if tok := bytes.TrimSpace(b); tok != nil {
		return tok
	}
	return b[:0:0]
}

// scanOutput calls fn for every non-empty line of r.
func scanOutput(r io.Reader, fn func(line string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLines)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			fn(line)
		}
	}
}
