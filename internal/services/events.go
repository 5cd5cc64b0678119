package services

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventUserRegistered     EventType = "user_registered"
	EventUserLoggedIn       EventType = "user_logged_in"
	EventIdeaSubmitted      EventType = "idea_submitted"
	EventReviewCompleted    EventType = "review_completed"
	EventIdeaStageChanged   EventType = "idea_stage_changed"
	EventCollaborationAdded EventType = "collaboration_added"
	EventChallengeJoined    EventType = "challenge_joined"
)

// Event is a fact about something that already happened and was committed.
type Event struct {
	Type           EventType
	UserID         uuid.UUID
	IdeaID         uuid.UUID
	ChallengeID    uuid.UUID
	RefID          uuid.UUID
	Stage          string
	FromStage      string
	StageEnteredAt time.Time
	At             time.Time
}

type Listener func(Event) error

// Dispatcher delivers events to listeners synchronously, in subscription
// order. A failing listener is logged and does not stop the others.
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[EventType][]Listener
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{listeners: make(map[EventType][]Listener)}
}

func (d *Dispatcher) Subscribe(t EventType, l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[t] = append(d.listeners[t], l)
}

func (d *Dispatcher) Dispatch(e Event) {
	if d == nil {
		return
	}
	d.mu.RLock()
	ls := d.listeners[e.Type]
	d.mu.RUnlock()

	for _, l := range ls {
		if err := l(e); err != nil {
			if errors.Is(err, ErrDuplicateAward) {
				slog.Debug("event listener skipped duplicate", "event", e.Type, "user_id", e.UserID.String())
				continue
			}
			slog.Error("event listener failed", "event", e.Type, "user_id", e.UserID.String(), "error", err)
		}
	}
}
