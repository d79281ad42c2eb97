package activity

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Buffer limits. Entries beyond MaxEntries evict the oldest; fields beyond
// their limits are truncated, matching the gateway's fixed-size slots.
const (
	MaxEntries          = 20
	MaxDeviceNameLength = 32
	MaxMessageLength    = 64
)

// Entry is one recorded activity line.
type Entry struct {
	// Timestamp is when the activity was recorded.
	Timestamp time.Time `json:"timestamp"`

	// DeviceName is the display name of the device involved, or empty
	// for gateway-level events.
	DeviceName string `json:"device_name"`

	// Message is the human-readable activity line.
	Message string `json:"message"`

	// Cleared marks a tombstoned entry. Cleared entries keep their slot
	// so the indices of surviving entries stay stable.
	Cleared bool `json:"cleared"`
}

// Log is the bounded in-memory activity buffer.
//
// Owned by the gateway loop; not safe for concurrent use. The API reads
// it through the loop's command channel like everything else.
type Log struct {
	entries []Entry
}

// NewLog creates an empty activity log.
func NewLog() *Log {
	return &Log{entries: make([]Entry, 0, MaxEntries)}
}

// Record appends an entry, evicting the oldest once the buffer is full.
// Over-length names and messages are truncated, never rejected.
func (l *Log) Record(now time.Time, deviceName, message string) {
	entry := Entry{
		Timestamp:  now,
		DeviceName: truncate(deviceName, MaxDeviceNameLength),
		Message:    truncate(message, MaxMessageLength),
	}

	if len(l.entries) >= MaxEntries {
		l.entries = append(l.entries[1:], entry)
		return
	}
	l.entries = append(l.entries, entry)
}

// Recordf is Record with a formatted message.
func (l *Log) Recordf(now time.Time, deviceName, format string, args ...any) {
	l.Record(now, deviceName, fmt.Sprintf(format, args...))
}

// Entries returns the buffer newest-first. The slice is a copy.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[len(l.entries)-1-i] = e
	}
	return out
}

// Len returns the number of entries, tombstones included.
func (l *Log) Len() int {
	return len(l.entries)
}

// ClearEntry tombstones the entry at the given newest-first index.
//
// The slot is kept in place with its fields blanked, so other entries'
// indices do not shift under a reader paging through the log.
//
// Returns ErrIndexOutOfRange for an invalid index.
func (l *Log) ClearEntry(index int) error {
	if index < 0 || index >= len(l.entries) {
		return fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	i := len(l.entries) - 1 - index
	l.entries[i] = Entry{
		Timestamp: l.entries[i].Timestamp,
		Cleared:   true,
	}
	return nil
}

// Clear empties the whole buffer.
func (l *Log) Clear() {
	l.entries = l.entries[:0]
}

// truncate cuts s to at most n bytes, backing up so a multi-byte rune is
// never split. Entries must stay valid UTF-8 for the JSON API.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
