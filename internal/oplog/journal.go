// internal/oplog/journal.go
package oplog

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of entries a Journal keeps by default.
const DefaultCapacity = 2048

// Journal is a bounded, ordered, in-memory Sink.
// Sequence numbers start at 1 and increase by one per line; once the
// capacity is reached the oldest entries are dropped.
type Journal struct {
	mu      sync.Mutex
	entries []Entry
	cap     int
	next    uint64
	now     func() time.Time
}

// NewJournal creates a journal holding at most capacity entries.
// Non-positive capacity uses DefaultCapacity.
func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Journal{
		cap:  capacity,
		next: 1,
		now:  time.Now,
	}
}

// Emit appends a line.
func (j *Journal) Emit(kind Kind, text string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = append(j.entries, Entry{
		Seq:  j.next,
		At:   j.now(),
		Kind: kind,
		Text: text,
	})
	j.next++

	if over := len(j.entries) - j.cap; over > 0 {
		j.entries = append(j.entries[:0:0], j.entries[over:]...)
	}
}

// Since returns a copy of every retained entry with Seq > seq, oldest first.
func (j *Journal) Since(seq uint64) []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]Entry, 0, len(j.entries))
	for _, e := range j.entries {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

// Last returns the sequence number of the newest entry ever emitted, 0
// before the first. Clear does not reset it.
func (j *Journal) Last() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.next - 1
}

// Clear drops every entry. Sequence numbers keep increasing.
func (j *Journal) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = nil
}
