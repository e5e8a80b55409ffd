// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"context"
	"sync"
)

// MemoryOutbox stores messages and counter increments in memory. It backs the
// preview endpoint and tests.
type MemoryOutbox struct {
	mu       sync.Mutex
	messages []Message
	counters map[string]int

	// EnqueueErr and CounterErr, when set, are returned instead of recording.
	EnqueueErr error
	CounterErr error
}

func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{counters: make(map[string]int)}
}

func (m *MemoryOutbox) Enqueue(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EnqueueErr != nil {
		return m.EnqueueErr
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *MemoryOutbox) Increment(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CounterErr != nil {
		return m.CounterErr
	}
	m.counters[name]++
	return nil
}

// Messages returns a copy of the messages seen so far.
func (m *MemoryOutbox) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// Count returns how often the named counter was incremented.
func (m *MemoryOutbox) Count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

// Last returns the most recent message.
func (m *MemoryOutbox) Last() (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return Message{}, false
	}
	return m.messages[len(m.messages)-1], true
}
