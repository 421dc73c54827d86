package models

// Snapshot is a partial GameState sent from the authority. Present fields
// overwrite the mirror, absent fields leave it untouched. The per-game blocks
// are replaced as a unit. Log carries entries newer than the last broadcast;
// they are merged by Seq.
type Snapshot struct {
	Full    bool `json:"full,omitempty"`
	Version int  `json:"version"`

	Settings           *Settings   `json:"settings,omitempty"`
	Phase              *Phase      `json:"phase,omitempty"`
	Players            []Player    `json:"players,omitempty"`
	CurrentPlayerIndex *int        `json:"currentPlayerIndex,omitempty"`
	Log                []LogEntry  `json:"log,omitempty"`
	WinnerID           *string     `json:"winnerId,omitempty"`
	LoserID            *string     `json:"loserId,omitempty"`
	Dice               *DiceState  `json:"dice,omitempty"`
	Rummy              *RummyState `json:"rummy,omitempty"`
}

// FullSnapshot captures the whole state, including the entire log.
func FullSnapshot(s *GameState) Snapshot {
	snap := StateSnapshot(s, 0)
	snap.Full = true
	return snap
}

// StateSnapshot captures every envelope field and the log entries after
// sinceSeq.
func StateSnapshot(s *GameState, sinceSeq int) Snapshot {
	c := s.Clone()
	snap := Snapshot{
		Version:            c.Version,
		Settings:           &c.Settings,
		Phase:              &c.Phase,
		Players:            c.Players,
		CurrentPlayerIndex: &c.CurrentPlayerIndex,
		Log:                LogSince(c.Log, sinceSeq),
		WinnerID:           &c.WinnerID,
		LoserID:            &c.LoserID,
		Dice:               c.Dice,
		Rummy:              c.Rummy,
	}
	return snap
}

// LogSnapshot carries only new log entries, used for chat.
func LogSnapshot(s *GameState, sinceSeq int) Snapshot {
	settings := s.Settings
	return Snapshot{
		Version:  s.Version,
		Settings: &settings,
		Log:      LogSince(append([]LogEntry(nil), s.Log...), sinceSeq),
	}
}

// LogSince returns the entries with Seq greater than seq.
func LogSince(log []LogEntry, seq int) []LogEntry {
	for i, e := range log {
		if e.Seq > seq {
			return log[i:]
		}
	}
	return nil
}

// Merge folds a snapshot into a mirrored state. Snapshots older than the
// mirror are ignored unless they are full.
func (s *GameState) Merge(snap Snapshot) bool {
	if snap.Full {
		*s = GameState{
			Version:  snap.Version,
			Log:      append([]LogEntry(nil), snap.Log...),
			Dice:     snap.Dice.Clone(),
			Rummy:    snap.Rummy.Clone(),
			Players:  []Player{},
			WinnerID: deref(snap.WinnerID),
			LoserID:  deref(snap.LoserID),
		}
		if snap.Settings != nil {
			s.Settings = *snap.Settings
		}
		if snap.Phase != nil {
			s.Phase = *snap.Phase
		}
		if snap.CurrentPlayerIndex != nil {
			s.CurrentPlayerIndex = *snap.CurrentPlayerIndex
		}
		for _, p := range snap.Players {
			s.Players = append(s.Players, p.Clone())
		}
		return true
	}
	if snap.Version < s.Version {
		return false
	}
	s.Version = snap.Version
	if snap.Settings != nil {
		s.Settings = *snap.Settings
	}
	if snap.Phase != nil {
		s.Phase = *snap.Phase
	}
	if snap.Players != nil {
		s.Players = make([]Player, len(snap.Players))
		for i, p := range snap.Players {
			s.Players[i] = p.Clone()
		}
	}
	if snap.CurrentPlayerIndex != nil {
		s.CurrentPlayerIndex = *snap.CurrentPlayerIndex
	}
	last := s.LastSeq()
	for _, e := range snap.Log {
		if e.Seq > last {
			s.Log = append(s.Log, e)
			last = e.Seq
		}
	}
	if snap.WinnerID != nil {
		s.WinnerID = *snap.WinnerID
	}
	if snap.LoserID != nil {
		s.LoserID = *snap.LoserID
	}
	if snap.Dice != nil {
		s.Dice = snap.Dice.Clone()
	}
	if snap.Rummy != nil {
		s.Rummy = snap.Rummy.Clone()
	}
	return true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
