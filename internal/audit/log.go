// Package audit is the append-only history of every execution attempt and
// approval decision. It is the single shared mutable resource in the
// control plane; components never cache ticket state outside of it.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/akrambak/aegis-planner/internal/approval"
)

const (
	auditFileMode = 0644
	auditDirMode  = 0755
)

// Log owns the durable set of execution records (one JSON line each) and
// approval tickets. Execution records are append-only; the only mutation
// anywhere in the model is the conditional pending-to-terminal ticket
// transition in ResolveTicket.
type Log struct {
	recordsPath string
	ticketsPath string

	recordMu sync.Mutex
	ticketMu sync.Mutex
	now      func() time.Time
}

// NewLog creates an audit log rooted at <baseDir>/state.
func NewLog(baseDir string) *Log {
	return &Log{
		recordsPath: filepath.Join(baseDir, "state", "executions.jsonl"),
		ticketsPath: filepath.Join(baseDir, "state", "tickets.json"),
		now:         time.Now,
	}
}

// Append writes one execution record as one JSONL line, fsynced. A failed
// append is fatal to the submission: the trail is the correctness
// invariant.
func (l *Log) Append(record Record) error {
	l.recordMu.Lock()
	defer l.recordMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.recordsPath), auditDirMode); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	file, err := os.OpenFile(l.recordsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, auditFileMode)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	encoded = append(encoded, '\n')

	if _, err := file.Write(encoded); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync audit file: %w", err)
	}
	return nil
}

// RecentRecords returns execution records whose ExecutedAt falls within the
// last windowDays days, ordered by time ascending.
func (l *Log) RecentRecords(windowDays int) ([]Record, error) {
	l.recordMu.Lock()
	defer l.recordMu.Unlock()

	file, err := os.Open(l.recordsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	defer file.Close()

	cutoff := l.now().UTC().AddDate(0, 0, -windowDays)
	var records []Record

	// Read line by line without a fixed token limit: a torn, corrupt or
	// oversized line never hides the rest of the trail.
	reader := bufio.NewReader(file)
	for {
		line, readErr := reader.ReadBytes('\n')
		if len(line) > 0 {
			var record Record
			if err := json.Unmarshal(line, &record); err == nil && !record.ExecutedAt.Before(cutoff) {
				records = append(records, record)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read audit file: %w", readErr)
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ExecutedAt.Before(records[j].ExecutedAt)
	})
	return records, nil
}

// RecentTickets returns tickets created within the last windowDays days,
// ordered by creation time ascending.
func (l *Log) RecentTickets(windowDays int) ([]approval.Ticket, error) {
	l.ticketMu.Lock()
	defer l.ticketMu.Unlock()

	data, err := l.loadTicketsLocked()
	if err != nil {
		return nil, err
	}

	cutoff := l.now().UTC().AddDate(0, 0, -windowDays)
	var tickets []approval.Ticket
	for _, ticket := range data.Tickets {
		if ticket.CreatedAt.Before(cutoff) {
			continue
		}
		tickets = append(tickets, ticket)
	}
	sort.SliceStable(tickets, func(i, j int) bool {
		return tickets[i].CreatedAt.Before(tickets[j].CreatedAt)
	})
	return tickets, nil
}
