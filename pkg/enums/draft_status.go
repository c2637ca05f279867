package enums

// DraftStatus tracks the registration draft lifecycle. The transition is
// monotonic: in_progress -> done, with done terminal.
type DraftStatus string

const (
	DraftInProgress DraftStatus = "in_progress"
	DraftDone       DraftStatus = "done"
)

func (s DraftStatus) Valid() bool {
	switch s {
	case DraftInProgress, DraftDone:
		return true
	}
	return false
}

// Terminal reports whether no further mutation is allowed.
func (s DraftStatus) Terminal() bool {
	return s == DraftDone
}
