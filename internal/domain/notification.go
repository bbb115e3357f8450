package domain

import (
	"github.com/google/uuid"
)

// NotificationClass categorizes a push notification by the event that
// produced it.
type NotificationClass string

const (
	ClassAlert   NotificationClass = "alert"
	ClassTest    NotificationClass = "test"
	ClassTrigger NotificationClass = "trigger"
	ClassCustom  NotificationClass = "custom"
)

func (c NotificationClass) String() string {
	return string(c)
}

// PendingNotification is a fully-built notification waiting for the dispatch
// worker. It is created by the engine, consumed exactly once, and never
// mutated after enqueue.
type PendingNotification struct {
	ID        string
	User      string
	EventID   string
	Payload   map[string]any
	Title     string
	Message   string
	DirectURL string
	Image     string
	Class     NotificationClass
	TTL       int
}

func NewPendingNotification(user string, class NotificationClass) *PendingNotification {
	return &PendingNotification{
		ID:    uuid.NewString(),
		User:  user,
		Class: class,
	}
}
