package session

// DefaultStallThreshold is how many consecutive no-progress turns on the
// same field are tolerated before the conversation skips past it.
const DefaultStallThreshold = 3

// Tracker counts consecutive extraction turns that produced nothing for the
// field currently being asked about. The extraction model can fail to pull
// the asked-for value out of unrelated chatter indefinitely; without the
// skip the conversation would loop on one field forever.
type Tracker struct {
	Threshold int
	count     int
}

// Observe advances the tracker for one turn. empty is the IsEmptyUpdate
// verdict for the extraction result; pending is whether the previously asked
// field is still unfilled. It returns true when the threshold is reached and
// the dispatcher should skip to a different field; the count resets when it
// fires.
func (t *Tracker) Observe(empty, pending bool) bool {
	if !empty {
		t.count = 0
		return false
	}
	if !pending {
		return false
	}
	t.count++
	threshold := t.Threshold
	if threshold <= 0 {
		threshold = DefaultStallThreshold
	}
	if t.count >= threshold {
		t.count = 0
		return true
	}
	return false
}

// Count exposes the current streak, mostly for logging.
func (t *Tracker) Count() int { return t.count }
