package vision

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultInterval is roughly one camera frame.
const DefaultInterval = 16 * time.Millisecond

// Source produces detection batches until ctx is done or it runs out.
type Source interface {
	Run(ctx context.Context, q *Queue) error
}

// ReplaySource plays back recorded batches, one JSON array per line, at a
// fixed interval.
type ReplaySource struct {
	Batches  []Batch
	Interval time.Duration
	Loop     bool
}

var _ Source = &ReplaySource{}

func NewReplaySource(path string, interval time.Duration, loop bool) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening replay file")
	}
	defer f.Close()

	batches, err := ReadBatches(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return &ReplaySource{
		Batches:  batches,
		Interval: interval,
		Loop:     loop,
	}, nil
}

// ReadBatches reads one batch per non-blank line.
func ReadBatches(r io.Reader) ([]Batch, error) {
	var batches []Batch
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var batch Batch
		if err := json.Unmarshal([]byte(line), &batch); err != nil {
			return nil, errors.Wrapf(err, "line %d", lineNo)
		}
		batches = append(batches, batch)
	}
	return batches, scanner.Err()
}

func (s *ReplaySource) Run(ctx context.Context, q *Queue) error {
	if len(s.Batches) == 0 {
		return nil
	}
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		for _, batch := range s.Batches {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				q.Push(batch)
			}
		}
		if !s.Loop {
			return nil
		}
	}
}
