package transcript

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxEntries bounds the in-memory and persisted window.
const DefaultMaxEntries = 200

// Log accumulates transcript entries from streaming fragments.
//
// Each sender has at most one open (incomplete) text entry at a time.
// Fragments from a sender coalesce into that sender's open entry;
// FinalizeOpenFragments seals both so the next fragment starts fresh.
// Entries are append-only: coalescing edits the open entry in place but
// never reorders or removes sealed history (barge-in discard of the
// unfinished model entry being the one exception).
type Log struct {
	store  *Store
	logger *slog.Logger

	mu      sync.RWMutex
	entries []*Entry
	open    map[Sender]*Entry
	max     int

	onChange func()
}

// NewLog creates a transcript log. A nil store disables persistence.
// Previously persisted entries are loaded as sealed history.
func NewLog(store *Store, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Log{
		store:  store,
		logger: logger,
		open:   make(map[Sender]*Entry),
		max:    DefaultMaxEntries,
	}

	if store != nil {
		entries, err := store.Load()
		if err != nil {
			return nil, err
		}
		// Anything restored from disk is history, never an open fragment.
		for _, e := range entries {
			e.Complete = true
		}
		l.entries = entries
	}

	return l, nil
}

// SetOnChange registers a callback fired after every mutation, outside
// the log's lock. Used by the web layer to push updates.
func (l *Log) SetOnChange(fn func()) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// AppendFragment adds a streaming text fragment from sender. If the
// sender has an open entry the fragment is appended to it; otherwise a
// new incomplete entry is created.
func (l *Log) AppendFragment(sender Sender, text string) {
	if text == "" {
		return
	}

	l.mu.Lock()
	now := time.Now()
	if e, ok := l.open[sender]; ok {
		e.Text += text
		e.UpdatedAt = now
	} else {
		e := &Entry{
			ID:        uuid.New().String(),
			Sender:    sender,
			Kind:      KindText,
			Text:      text,
			CreatedAt: now,
			UpdatedAt: now,
		}
		l.entries = append(l.entries, e)
		l.open[sender] = e
		l.trimLocked()
	}
	l.persistLocked()
	fn := l.onChange
	l.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Append adds a complete entry in one shot, used for images.
func (l *Log) Append(sender Sender, kind Kind, text string) Entry {
	return l.appendComplete(&Entry{Sender: sender, Kind: kind, Text: text})
}

// AppendAction records a side effect as a complete action entry: url is
// the link, label the line the dashboard shows for it, icon the channel
// class ("whatsapp", "telegram", "email", "phone").
func (l *Log) AppendAction(url, label, icon string) Entry {
	return l.appendComplete(&Entry{
		Sender: SenderModel,
		Kind:   KindAction,
		Text:   url,
		Label:  label,
		Icon:   icon,
	})
}

func (l *Log) appendComplete(e *Entry) Entry {
	l.mu.Lock()
	now := time.Now()
	e.ID = uuid.New().String()
	e.Complete = true
	e.CreatedAt = now
	e.UpdatedAt = now
	l.entries = append(l.entries, e)
	l.trimLocked()
	l.persistLocked()
	fn := l.onChange
	out := *e
	l.mu.Unlock()

	if fn != nil {
		fn()
	}
	return out
}

// FinalizeOpenFragments seals every open entry. Called when the remote
// signals the turn is complete.
func (l *Log) FinalizeOpenFragments() {
	l.mu.Lock()
	changed := false
	for sender, e := range l.open {
		e.Complete = true
		e.UpdatedAt = time.Now()
		delete(l.open, sender)
		changed = true
	}
	var fn func()
	if changed {
		l.persistLocked()
		fn = l.onChange
	}
	l.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// DiscardOpenModel drops the model's unfinished entry, if any. Used on
// barge-in: the model never finished saying it, so it never happened.
func (l *Log) DiscardOpenModel() {
	l.mu.Lock()
	e, ok := l.open[SenderModel]
	if !ok {
		l.mu.Unlock()
		return
	}
	delete(l.open, SenderModel)
	for i, cur := range l.entries {
		if cur == e {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			break
		}
	}
	l.persistLocked()
	fn := l.onChange
	l.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Entries returns a snapshot of the transcript in order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = *e
	}
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Clear wipes the transcript, history and open fragments alike.
func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.open = make(map[Sender]*Entry)
	l.persistLocked()
	fn := l.onChange
	l.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// trimLocked drops the oldest entries beyond the window. Open fragments
// are always among the newest, so they survive trimming.
func (l *Log) trimLocked() {
	if l.max > 0 && len(l.entries) > l.max {
		l.entries = append([]*Entry(nil), l.entries[len(l.entries)-l.max:]...)
	}
}

// persistLocked saves the current window best-effort; transcript
// persistence must never fail a live conversation.
func (l *Log) persistLocked() {
	if l.store == nil {
		return
	}
	if err := l.store.Save(l.entries); err != nil {
		l.logger.Warn("transcript: persist failed", "err", err)
	}
}
