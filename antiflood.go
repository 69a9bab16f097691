package main

import (
	"sync"
	"time"
)

const defaultAntifloodWindow = time.Second

// Antiflood lets a sender through at most once per window. Timestamps are the
// message dates reported by Telegram, not the local clock.
type Antiflood struct {
	window int64

	mu   sync.Mutex
	last map[int64]int64
}

func NewAntiflood(window time.Duration) *Antiflood {
	secs := int64(window / time.Second)
	if secs < 1 {
		secs = 1
	}
	return &Antiflood{
		window: secs,
		last:   make(map[int64]int64),
	}
}

// Check reports whether the sender hit the limit. Every call records ts as the
// sender's latest message, hit or not.
func (a *Antiflood) Check(senderID, ts int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id, last := range a.last {
		if last+a.window < ts {
			delete(a.last, id)
		}
	}
	_, hit := a.last[senderID]
	a.last[senderID] = ts
	return hit
}

// Len is the number of live records.
func (a *Antiflood) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.last)
}
