package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a notification request.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Priority is ordered: a higher value is dispatched first.
type Priority int

const (
	PriorityLow    Priority = 1
	PriorityNormal Priority = 2
	PriorityHigh   Priority = 3
	PriorityUrgent Priority = 4
)

var priorityNames = map[Priority]string{
	PriorityLow:    "LOW",
	PriorityNormal: "NORMAL",
	PriorityHigh:   "HIGH",
	PriorityUrgent: "URGENT",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Priority(%d)", int(p))
}

func (p Priority) IsValid() bool {
	_, ok := priorityNames[p]
	return ok
}

func ParsePriorityFromString(s string) (Priority, error) {
	want := strings.ToUpper(strings.TrimSpace(s))
	for p, name := range priorityNames {
		if name == want {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: invalid priority %q", ErrValidation, s)
}

const (
	MaxTitleLength    = 200
	DefaultMaxRetries = 3
	MaxRetriesLimit   = 20
)

// NotificationRequest is a unit of intent to notify, persisted in the queue
// until it reaches a terminal status.
type NotificationRequest struct {
	ID          string
	Source      string
	SourceID    *string
	Title       string
	Body        string
	Priority    Priority
	Status      Status
	ScheduledAt *time.Time
	ClaimedAt   *time.Time
	ProcessedAt *time.Time
	RetryCount  int
	MaxRetries  int
	Payload     map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (n *NotificationRequest) Validate() error {
	if strings.TrimSpace(n.Source) == "" {
		return fmt.Errorf("%w: source is required", ErrValidation)
	}
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if l := len([]rune(n.Title)); l > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters (got %d)", ErrValidation, MaxTitleLength, l)
	}
	if strings.TrimSpace(n.Body) == "" {
		return fmt.Errorf("%w: body is required", ErrValidation)
	}
	if !n.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %d", ErrValidation, int(n.Priority))
	}
	if n.MaxRetries < 0 || n.MaxRetries > MaxRetriesLimit {
		return fmt.Errorf("%w: max_retries must be between 0 and %d", ErrValidation, MaxRetriesLimit)
	}
	if n.RetryCount < 0 || n.RetryCount > n.MaxRetries {
		return fmt.Errorf("%w: retry_count must be between 0 and max_retries", ErrValidation)
	}
	return nil
}

// IsDue reports whether a pending request may be claimed at now.
func (n *NotificationRequest) IsDue(now time.Time) bool {
	if n.Status != StatusPending {
		return false
	}
	return n.ScheduledAt == nil || !n.ScheduledAt.After(now)
}

// ApplyAttempt moves a PROCESSING request to the state that follows one
// dispatch attempt. A failure with no retries left is terminal; otherwise the
// request returns to PENDING, delayed by retryDelay when it is positive.
func (n *NotificationRequest) ApplyAttempt(success bool, now time.Time, retryDelay time.Duration) error {
	if n.Status != StatusProcessing {
		return fmt.Errorf("%w: cannot record attempt for status %s", ErrConflict, n.Status)
	}

	n.ClaimedAt = nil
	if success {
		n.Status = StatusCompleted
		n.ProcessedAt = &now
		return nil
	}

	attempts := n.RetryCount + 1
	n.RetryCount = min(attempts, n.MaxRetries)
	if attempts >= n.MaxRetries {
		n.Status = StatusFailed
		n.ProcessedAt = &now
		return nil
	}

	n.Status = StatusPending
	if retryDelay > 0 {
		next := now.Add(retryDelay)
		n.ScheduledAt = &next
	}
	return nil
}
