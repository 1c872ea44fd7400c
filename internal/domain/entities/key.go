package entities

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// HistoryAction is the kind of lifecycle event recorded on a key
type HistoryAction string

const (
	HistoryActionFree    HistoryAction = "free"
	HistoryActionInUse   HistoryAction = "inuse"
	HistoryActionRelease HistoryAction = "release"
)

// HistoryEvent is one immutable entry in a key's history
type HistoryEvent struct {
	Action     HistoryAction `json:"action"`
	Timestamp  time.Time     `json:"timestamp"`
	AssignedTo null.String   `json:"assignedTo"`
}

// Key represents an issued or issuable license key
type Key struct {
	ID         int64          `json:"id"`
	Key        string         `json:"key"`
	InUse      bool           `json:"inUse"`
	AssignedTo null.String    `json:"assignedTo"`
	Invalid    bool           `json:"invalid"`
	CreatedAt  time.Time      `json:"createdAt"`
	LastUsedAt null.Time      `json:"lastUsedAt"`
	History    []HistoryEvent `json:"history"`
}

// Available reports whether the key can be handed out
func (k *Key) Available() bool {
	return !k.InUse && !k.Invalid
}

// AppendHistory records a lifecycle event
func (k *Key) AppendHistory(action HistoryAction, at time.Time, assignedTo null.String) {
	k.History = append(k.History, HistoryEvent{
		Action:     action,
		Timestamp:  at,
		AssignedTo: assignedTo,
	})
}

// Clone returns a deep copy so callers cannot mutate stored state
func (k *Key) Clone() *Key {
	if k == nil {
		return nil
	}
	c := *k
	c.History = make([]HistoryEvent, len(k.History))
	copy(c.History, k.History)
	return &c
}

// KeyFilter narrows a key listing. Nil fields impose no constraint.
type KeyFilter struct {
	InUse      *bool
	AssignedTo *string
}

// Matches reports whether k satisfies every supplied filter
func (f KeyFilter) Matches(k *Key) bool {
	if f.InUse != nil && k.InUse != *f.InUse {
		return false
	}
	if f.AssignedTo != nil && (!k.AssignedTo.Valid || k.AssignedTo.String != *f.AssignedTo) {
		return false
	}
	return true
}

// GlobalHistoryEntry is a history event tagged with its owning key
type GlobalHistoryEntry struct {
	ID  int64  `json:"id"`
	Key string `json:"key"`
	HistoryEvent
}

// KeyStats holds activation counts bucketed by day and ISO week
type KeyStats struct {
	PerDay  map[string]int `json:"perDay"`
	PerWeek map[string]int `json:"perWeek"`
}

// KeySummary holds inventory counts for the dashboard header
type KeySummary struct {
	Total   int `json:"total"`
	Free    int `json:"free"`
	InUse   int `json:"inUse"`
	Invalid int `json:"invalid"`
}
