package domain

import "time"

type UserID string

// Selection is an inclusive-start, exclusive-end range over the document,
// in rune offsets. Start <= End always holds after normalization.
type Selection struct {
	Start int
	End   int
}

func (s Selection) normalized() Selection {
	if s.Start > s.End {
		return Selection{Start: s.End, End: s.Start}
	}
	return s
}

func (s Selection) clamped(docLen int) Selection {
	return Selection{
		Start: clampOffset(s.Start, docLen),
		End:   clampOffset(s.End, docLen),
	}
}

type Participant struct {
	UserID     UserID
	Name       string
	Color      string
	Position   int
	Selection  *Selection
	JoinedAt   time.Time
	LastUpdate time.Time
}

// ActiveAt reports whether the participant counts as present for display
// purposes. Inactivity never removes a participant; only Leave does.
func (p Participant) ActiveAt(now time.Time, threshold time.Duration) bool {
	return now.Sub(p.LastUpdate) < threshold
}

func clampOffset(offset, docLen int) int {
	if offset < 0 {
		return 0
	}
	if offset > docLen {
		return docLen
	}
	return offset
}
