package voicechat

// maxLogEntries bounds the chat log to the most recent entries.
const maxLogEntries = 100

// maxSeenIDs bounds the replay-rejection cache.
const maxSeenIDs = 1000

// ChatLog is the bounded, ordered log of chat and system entries. No two
// entries share an id; trimming always drops from the oldest end.
type ChatLog struct {
	entries []ChatEntry
	ids     map[string]struct{}
}

// NewChatLog returns an empty log.
func NewChatLog() *ChatLog {
	return &ChatLog{ids: make(map[string]struct{})}
}

// Append adds one entry to the newest end. Entries whose id is already
// present are rejected.
func (l *ChatLog) Append(entry ChatEntry) bool {
	if _, dup := l.ids[entry.ID]; dup {
		return false
	}
	l.entries = append(l.entries, entry)
	l.ids[entry.ID] = struct{}{}
	l.trim()
	return true
}

// Merge prepends a history batch, skipping ids already present, then re-trims
// the whole log to the bound.
func (l *ChatLog) Merge(history []ChatEntry) int {
	fresh := make([]ChatEntry, 0, len(history))
	for _, entry := range history {
		if _, dup := l.ids[entry.ID]; dup {
			continue
		}
		fresh = append(fresh, entry)
		l.ids[entry.ID] = struct{}{}
	}
	if len(fresh) == 0 {
		return 0
	}
	l.entries = append(fresh, l.entries...)
	l.trim()
	return len(fresh)
}

// SetReaction replaces the reactor set for one (message, emoji) pair. The
// server is the source of truth for reaction membership; an empty set removes
// the reaction.
func (l *ChatLog) SetReaction(messageID, emoji string, userIDs []string) bool {
	for i := range l.entries {
		if l.entries[i].ID != messageID {
			continue
		}
		reactions := l.entries[i].Reactions
		idx := -1
		for j, r := range reactions {
			if r.Emoji == emoji {
				idx = j
				break
			}
		}
		if len(userIDs) == 0 {
			if idx >= 0 {
				l.entries[i].Reactions = append(reactions[:idx], reactions[idx+1:]...)
			}
			return true
		}
		set := Reaction{Emoji: emoji, UserIDs: append([]string(nil), userIDs...)}
		if idx >= 0 {
			reactions[idx] = set
		} else {
			l.entries[i].Reactions = append(reactions, set)
		}
		return true
	}
	return false
}

// Contains reports whether an entry with the id is in the log.
func (l *ChatLog) Contains(id string) bool {
	_, ok := l.ids[id]
	return ok
}

// Entries returns the log in order, copied.
func (l *ChatLog) Entries() []ChatEntry {
	return append([]ChatEntry(nil), l.entries...)
}

// Len returns the entry count.
func (l *ChatLog) Len() int { return len(l.entries) }

// Clear empties the log.
func (l *ChatLog) Clear() {
	l.entries = nil
	l.ids = make(map[string]struct{})
}

func (l *ChatLog) trim() {
	if len(l.entries) <= maxLogEntries {
		return
	}
	dropped := l.entries[:len(l.entries)-maxLogEntries]
	for _, entry := range dropped {
		delete(l.ids, entry.ID)
	}
	l.entries = append([]ChatEntry(nil), l.entries[len(l.entries)-maxLogEntries:]...)
}

// seenIDs is a bounded FIFO set of recently processed message ids. It rejects
// replays independently of what is still in the log, so redelivery racing a
// room switch cannot re-apply a message the trim already dropped.
type seenIDs struct {
	order []string
	set   map[string]struct{}
	cap   int
}

func newSeenIDs(capacity int) *seenIDs {
	return &seenIDs{set: make(map[string]struct{}), cap: capacity}
}

// Seen records the id and reports whether it was already present.
func (s *seenIDs) Seen(id string) bool {
	if _, ok := s.set[id]; ok {
		return true
	}
	s.set[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.set, oldest)
	}
	return false
}

// Clear empties the set. Called when the active room changes.
func (s *seenIDs) Clear() {
	s.order = nil
	s.set = make(map[string]struct{})
}
