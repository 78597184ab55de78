package engine

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"ewmabot/internal/strategy"
)

// Decision is one appended record per loop cycle: what the signal said and
// what the engine did about it.
type Decision struct {
	RunID     string          `json:"run_id"`
	Timestamp time.Time       `json:"timestamp"`
	Symbol    string          `json:"symbol"`
	Close     float64         `json:"close,omitempty"`
	ShortEWMA float64         `json:"short_ewma,omitempty"`
	LongEWMA  float64         `json:"long_ewma,omitempty"`
	Signal    strategy.Signal `json:"signal,omitempty"`
	Result    string          `json:"result"`
	Reason    string          `json:"reason,omitempty"`
	OrderID   string          `json:"order_id,omitempty"`
	Qty       int             `json:"qty,omitempty"`
}

type DecisionLogger struct {
	file   *os.File
	writer *bufio.Writer
	mu     sync.Mutex
}

func NewDecisionLogger(path string) (*DecisionLogger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &DecisionLogger{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (d *DecisionLogger) Append(decision Decision) {
	d.mu.Lock()
	defer d.mu.Unlock()
	payload, err := json.Marshal(decision)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal decision: %v\n", err)
		return
	}
	if _, err := d.writer.Write(append(payload, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write decision: %v\n", err)
		return
	}
	if err := d.writer.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to flush decision log: %v\n", err)
	}
}

func (d *DecisionLogger) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.writer.Flush(); err != nil {
		_ = d.file.Close()
		return err
	}
	return d.file.Close()
}
