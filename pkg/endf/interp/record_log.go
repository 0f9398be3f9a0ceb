package interp

import (
	"fmt"
	"strings"

	"github.com/edwingeng/deque"
)

// RecordLogCapacity is how many records a RecordLog remembers.
const RecordLogCapacity = 20

// LogEntry is one record the interpreter processed.
type LogEntry struct {
	Index int    // line offset within the section; -1 when writing
	Line  string // physical line, empty when writing
	Spec  string // recipe record
}

// RecordLog keeps the most recent records, oldest first.
type RecordLog struct {
	capacity int
	entries  deque.Deque
}

// NewRecordLog returns an empty log holding at most capacity entries.
func NewRecordLog(capacity int) *RecordLog {
	if capacity <= 0 {
		capacity = RecordLogCapacity
	}
	return &RecordLog{capacity: capacity, entries: deque.NewDeque()}
}

// Save appends e, dropping the oldest entry when the log is full.
func (l *RecordLog) Save(e LogEntry) {
	e.Line = strings.TrimRight(e.Line, " \r\n")
	l.entries.PushBack(e)
	for l.entries.Len() > l.capacity {
		l.entries.PopFront()
	}
}

// Entries returns the log contents, oldest first.
func (l *RecordLog) Entries() []LogEntry {
	out := make([]LogEntry, 0, l.entries.Len())
	l.entries.Range(func(_ int, v deque.Elem) bool {
		out = append(out, v.(LogEntry))
		return true
	})
	return out
}

// Restore replaces the log contents with entries.
func (l *RecordLog) Restore(entries []LogEntry) {
	l.entries = deque.NewDeque()
	for _, e := range entries {
		l.entries.PushBack(e)
	}
}

// Len returns the number of entries.
func (l *RecordLog) Len() int {
	return l.entries.Len()
}

// String renders the log for failure reports.
func (l *RecordLog) String() string {
	return FormatRecords(l.Entries())
}

// FormatRecords renders log entries, one block per record.
func FormatRecords(entries []LogEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		if e.Index >= 0 {
			fmt.Fprintf(&sb, "line %d: %s\n", e.Index+1, e.Spec)
			fmt.Fprintf(&sb, "    %q\n", e.Line)
		} else {
			fmt.Fprintf(&sb, "%s\n", e.Spec)
		}
	}
	return sb.String()
}
