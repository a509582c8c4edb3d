package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/akrambak/aegis-planner/internal/approval"
)

const ticketStoreVersion = 1

type ticketFile struct {
	Version int               `json:"version"`
	Tickets []approval.Ticket `json:"tickets"`
}

// AppendTicket persists a newly created ticket.
func (l *Log) AppendTicket(ticket approval.Ticket) error {
	l.ticketMu.Lock()
	defer l.ticketMu.Unlock()

	data, err := l.loadTicketsLocked()
	if err != nil {
		return err
	}
	for _, existing := range data.Tickets {
		if existing.ID == ticket.ID {
			return fmt.Errorf("ticket %s already exists", ticket.ID)
		}
	}
	data.Tickets = append(data.Tickets, ticket)
	return l.saveTicketsLocked(data)
}

// Ticket returns one ticket by id.
func (l *Log) Ticket(id string) (approval.Ticket, error) {
	l.ticketMu.Lock()
	defer l.ticketMu.Unlock()

	data, err := l.loadTicketsLocked()
	if err != nil {
		return approval.Ticket{}, err
	}
	for _, ticket := range data.Tickets {
		if ticket.ID == id {
			return ticket, nil
		}
	}
	return approval.Ticket{}, fmt.Errorf("%w: %s", approval.ErrNotFound, id)
}

// ResolveTicket applies the single atomic conditional update: transition
// PENDING to the given terminal state, no-op otherwise. applied reports
// whether this call performed the transition, so a timeout-expiry and a
// late human resolution cannot double-apply.
func (l *Log) ResolveTicket(id string, status approval.Status, decidedBy string) (approval.Ticket, bool, error) {
	if !status.Terminal() {
		return approval.Ticket{}, false, fmt.Errorf("status %q is not terminal", status)
	}

	l.ticketMu.Lock()
	defer l.ticketMu.Unlock()

	data, err := l.loadTicketsLocked()
	if err != nil {
		return approval.Ticket{}, false, err
	}

	for i := range data.Tickets {
		ticket := &data.Tickets[i]
		if ticket.ID != id {
			continue
		}
		if ticket.Status != approval.StatusPending {
			return *ticket, false, nil
		}

		ticket.Status = status
		ticket.DecidedAt = l.now().UTC()
		ticket.DecidedBy = decidedBy

		if err := l.saveTicketsLocked(data); err != nil {
			return approval.Ticket{}, false, err
		}
		return *ticket, true, nil
	}

	return approval.Ticket{}, false, fmt.Errorf("%w: %s", approval.ErrNotFound, id)
}

// PendingTickets returns all tickets still awaiting a decision.
func (l *Log) PendingTickets() ([]approval.Ticket, error) {
	l.ticketMu.Lock()
	defer l.ticketMu.Unlock()

	data, err := l.loadTicketsLocked()
	if err != nil {
		return nil, err
	}
	var pending []approval.Ticket
	for _, ticket := range data.Tickets {
		if ticket.Status == approval.StatusPending {
			pending = append(pending, ticket)
		}
	}
	return pending, nil
}

func (l *Log) loadTicketsLocked() (ticketFile, error) {
	raw, err := os.ReadFile(l.ticketsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return ticketFile{Version: ticketStoreVersion, Tickets: []approval.Ticket{}}, nil
		}
		return ticketFile{}, fmt.Errorf("read ticket store: %w", err)
	}

	var parsed ticketFile
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ticketFile{}, fmt.Errorf("parse ticket store: %w", err)
	}
	if parsed.Version <= 0 {
		parsed.Version = ticketStoreVersion
	}
	if parsed.Tickets == nil {
		parsed.Tickets = []approval.Ticket{}
	}
	return parsed, nil
}

func (l *Log) saveTicketsLocked(data ticketFile) error {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ticket store: %w", err)
	}

	dir := filepath.Dir(l.ticketsPath)
	if err := os.MkdirAll(dir, auditDirMode); err != nil {
		return fmt.Errorf("create ticket store dir: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "tickets-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ticket store: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(encoded); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("write temp ticket store: %w", err)
	}
	if err := tmpFile.Chmod(auditFileMode); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp ticket store: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp ticket store: %w", err)
	}

	if err := os.Rename(tmpPath, l.ticketsPath); err != nil {
		return fmt.Errorf("replace ticket store: %w", err)
	}
	return nil
}
