package model

import (
	"errors"
	"time"
)

// Query statuses. Transitions are forward-only:
// open -> assigned -> in_progress -> resolved -> closed.
// in_progress is part of the enum and the view filters but no API
// operation produces it (see DESIGN.md).
const (
	StatusOpen       = "open"
	StatusAssigned   = "assigned"
	StatusInProgress = "in_progress"
	StatusResolved   = "resolved"
	StatusClosed     = "closed"
)

const (
	CategoryQuestion  = "question"
	CategoryRequest   = "request"
	CategoryComplaint = "complaint"
	CategoryFeedback  = "feedback"
	CategoryOther     = "other"
)

const (
	ChannelEmail    = "email"
	ChannelChat     = "chat"
	ChannelTwitter  = "twitter"
	ChannelFacebook = "facebook"
)

const (
	MinPriority     = 1
	MaxPriority     = 5
	DefaultPriority = 3
	DefaultCategory = CategoryOther
)

var (
	ErrNotOpen     = errors.New("query is not open")
	ErrNotAssigned = errors.New("query is not assigned or in progress")
)

type Query struct {
	ID         string    `gorm:"type:varchar(36);primary_key" json:"id"`
	Sender     string    `gorm:"type:varchar(255)" json:"sender"`
	Channel    string    `gorm:"type:varchar(20)" json:"channel"`
	Message    string    `gorm:"type:text" json:"message"`
	Category   string    `gorm:"type:varchar(20)" json:"category"`
	Priority   int       `json:"priority"` // 1..5, 5 is most urgent
	Status     string    `gorm:"type:varchar(20)" json:"status"`
	AssignedTo string    `gorm:"type:varchar(100)" json:"assigned_to"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func ValidChannel(c string) bool {
	switch c {
	case ChannelEmail, ChannelChat, ChannelTwitter, ChannelFacebook:
		return true
	}
	return false
}

func ValidCategory(c string) bool {
	switch c {
	case CategoryQuestion, CategoryRequest, CategoryComplaint, CategoryFeedback, CategoryOther:
		return true
	}
	return false
}

func ValidPriority(p int) bool {
	return p >= MinPriority && p <= MaxPriority
}

// Assign moves an open query to assigned and records the actor.
// There is no version check: concurrent assigns are last-write-wins.
func (q *Query) Assign(actorID string) error {
	if q.Status != StatusOpen {
		return ErrNotOpen
	}
	q.Status = StatusAssigned
	q.AssignedTo = actorID
	return nil
}

// Resolve moves an assigned or in-progress query to resolved. The current
// assignee is deliberately not checked.
func (q *Query) Resolve() error {
	if q.Status != StatusAssigned && q.Status != StatusInProgress {
		return ErrNotAssigned
	}
	q.Status = StatusResolved
	return nil
}

// Tag is the tagger's verdict for a message.
type Tag struct {
	Category string `json:"category"`
	Priority int    `json:"priority"`
}

func DefaultTag() *Tag {
	return &Tag{Category: DefaultCategory, Priority: DefaultPriority}
}

// Normalize coerces anything outside the contract back to the defaults so
// a malformed model reply never leaks past the tagger boundary.
func (t *Tag) Normalize() {
	if !ValidCategory(t.Category) {
		t.Category = DefaultCategory
	}
	if !ValidPriority(t.Priority) {
		t.Priority = DefaultPriority
	}
}
