package blackboard

import (
	"math/rand/v2"
	"slices"
	"sync"
)

// MessageCapacity is the maximum number of messages kept.
const MessageCapacity = 10

// maxMessageID bounds randomly chosen message ids (inclusive).
const maxMessageID = 1000

// MessageType is the severity of a user-visible message.
type MessageType string

const (
	MessageError   MessageType = "error"
	MessageWarning MessageType = "warning"
	MessageInfo    MessageType = "info"
)

// Message is one entry of the user-visible event log.
type Message struct {
	Text      string      `json:"message"`
	Type      MessageType `json:"type"`
	Timestamp float64     `json:"timestamp"` // unix seconds
	ID        int         `json:"id"`
}

// messageLog is a bounded, ordered log. Oldest entries are first.
type messageLog struct {
	mu     sync.Mutex
	msgs   []Message
	randID func() int
}

func newMessageLog() *messageLog {
	return &messageLog{randID: func() int { return rand.IntN(maxMessageID + 1) }}
}

// add appends a message. A message with the same text as an existing one
// refreshes that entry's timestamp and moves it to the end instead.
func (l *messageLog) add(text string, typ MessageType, timestamp float64) Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, m := range l.msgs {
		if m.Text == text {
			m.Timestamp = timestamp
			l.msgs = append(slices.Delete(l.msgs, i, i+1), m)
			return m
		}
	}

	m := Message{Text: text, Type: typ, Timestamp: timestamp, ID: l.uniqueID()}
	l.msgs = append(l.msgs, m)
	if len(l.msgs) > MessageCapacity {
		l.msgs = slices.Delete(l.msgs, 0, 1)
	}
	return m
}

// uniqueID must be called with l.mu held.
func (l *messageLog) uniqueID() int {
	for {
		id := l.randID()
		taken := slices.ContainsFunc(l.msgs, func(m Message) bool { return m.ID == id })
		if !taken {
			return id
		}
	}
}

func (l *messageLog) list() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.msgs)
}

func (l *messageLog) clear() {
	l.mu.Lock()
	l.msgs = nil
	l.mu.Unlock()
}

func (l *messageLog) delete(id int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	before := len(l.msgs)
	l.msgs = slices.DeleteFunc(l.msgs, func(m Message) bool { return m.ID == id })
	return len(l.msgs) != before
}
