package voicechat

// Roster is the participant set of the active room, keyed by participant id.
// Mutated only by reconciled events.
type Roster struct {
	order        []string
	participants map[string]*Participant
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{participants: make(map[string]*Participant)}
}

// Replace resets the roster to the given participants (room_joined snapshot).
func (r *Roster) Replace(participants []Participant) {
	r.order = r.order[:0]
	r.participants = make(map[string]*Participant, len(participants))
	for _, p := range participants {
		r.add(p)
	}
}

// Add inserts a participant. Duplicate ids are rejected so redelivered joined
// events apply once.
func (r *Roster) Add(p Participant) bool {
	if _, exists := r.participants[p.ID]; exists {
		return false
	}
	r.add(p)
	return true
}

func (r *Roster) add(p Participant) {
	cp := p
	r.participants[p.ID] = &cp
	r.order = append(r.order, p.ID)
}

// Remove deletes a participant by id.
func (r *Roster) Remove(id string) bool {
	if _, exists := r.participants[id]; !exists {
		return false
	}
	delete(r.participants, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// SetMuted updates the mute flag of one participant.
func (r *Roster) SetMuted(id string, muted bool) bool {
	p, exists := r.participants[id]
	if !exists {
		return false
	}
	p.Muted = muted
	return true
}

// SetSpeaking updates the speaking flag of one participant.
func (r *Roster) SetSpeaking(id string, speaking bool) bool {
	p, exists := r.participants[id]
	if !exists {
		return false
	}
	p.Speaking = speaking
	return true
}

// SetQuality updates the connection quality of one participant.
func (r *Roster) SetQuality(id string, quality int) bool {
	p, exists := r.participants[id]
	if !exists {
		return false
	}
	p.Quality = quality
	return true
}

// Get returns a copy of one participant.
func (r *Roster) Get(id string) (Participant, bool) {
	p, exists := r.participants[id]
	if !exists {
		return Participant{}, false
	}
	return *p, true
}

// List returns participants in insertion order, copied.
func (r *Roster) List() []Participant {
	out := make([]Participant, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.participants[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// Len returns the participant count.
func (r *Roster) Len() int { return len(r.participants) }

// Clear empties the roster.
func (r *Roster) Clear() {
	r.order = nil
	r.participants = make(map[string]*Participant)
}
