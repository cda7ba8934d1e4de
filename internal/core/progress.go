package core

import "sync"

// listenerBuffer is the per-subscriber channel capacity. A subscriber that
// falls further behind misses intermediate snapshots, never the final one.
const listenerBuffer = 16

// Tracker owns the mutable state of one import run. Only the goroutine driving
// the run writes to it; observers receive copies through Snapshot and
// Subscribe.
type Tracker struct {
	id string

	mu        sync.Mutex
	state     Status
	rows      []RawRow
	abandoned bool
	running   bool
	decided   bool

	listeners []chan Status
	closed    bool
}

// NewTracker returns a tracker in the idle phase.
func NewTracker(runID, surveyID, fileName string) *Tracker {
	t := &Tracker{id: runID}
	t.state = Status{
		RunID:     runID,
		SurveyID:  surveyID,
		FileName:  fileName,
		Phase:     PhaseIdle,
		StartedAt: timeNow().UTC(),
	}
	return t
}

// RunID returns the run identifier.
func (t *Tracker) RunID() string {
	return t.id
}

// Snapshot returns a copy of the current state that shares no memory with the
// tracker.
func (t *Tracker) Snapshot() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

func (t *Tracker) snapshotLocked() Status {
	s := t.state
	s.ValidationErrors = append([]ValidationError(nil), t.state.ValidationErrors...)
	s.ProcessingErrors = append([]string(nil), t.state.ProcessingErrors...)
	if s.ValidationErrors == nil {
		s.ValidationErrors = []ValidationError{}
	}
	if s.ProcessingErrors == nil {
		s.ProcessingErrors = []string{}
	}
	return s
}

// Subscribe registers a listener that immediately receives the current
// snapshot and then one snapshot per published change. The channel is closed
// when the run reaches a terminal phase or is abandoned. The returned func
// unregisters the listener early.
func (t *Tracker) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, listenerBuffer)

	t.mu.Lock()
	defer t.mu.Unlock()

	ch <- t.snapshotLocked()
	if t.closed {
		close(ch)
		return ch, func() {}
	}
	t.listeners = append(t.listeners, ch)

	return ch, func() { t.unsubscribe(ch) }
}

func (t *Tracker) unsubscribe(ch chan Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, l := range t.listeners {
		if l == ch {
			t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// update applies fn to the state and publishes the result.
func (t *Tracker) update(fn func(s *Status)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fn(&t.state)
	t.publishLocked()
}

// publishLocked fans the current snapshot out to every listener. On a terminal
// phase the listeners are closed after the final send.
func (t *Tracker) publishLocked() {
	if t.closed {
		return
	}

	snap := t.snapshotLocked()
	for _, ch := range t.listeners {
		select {
		case ch <- snap:
		default:
			// Slow listener: drop the oldest queued snapshot to make room.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}

	if snap.Phase.IsTerminal() {
		t.closeLocked()
	}
}

func (t *Tracker) closeLocked() {
	if t.closed {
		return
	}
	t.closed = true
	for _, ch := range t.listeners {
		close(ch)
	}
	t.listeners = nil
}

// setRows retains the parsed rows for a later proceed-anyway pass.
func (t *Tracker) setRows(rows []RawRow) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rows = rows
	t.state.TotalRows = len(rows)
}

// Rows returns the rows retained for this run.
func (t *Tracker) Rows() []RawRow {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows
}

// claim marks the run as being processed. It fails if another pass is
// already running or the run was abandoned.
func (t *Tracker) claim() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running || t.abandoned {
		return false
	}
	t.running = true
	return true
}

// decide records the proceed-anyway decision of a run that is waiting for
// one. Only the first caller gets true.
func (t *Tracker) decide() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.decided || t.abandoned || t.state.Phase != PhaseValidationFailed {
		return false
	}
	t.decided = true
	return true
}

// undecide reopens the decision after the pass could not be started.
func (t *Tracker) undecide() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.decided = false
}

// finish moves the run to a terminal phase. It returns false, leaving the
// state alone, once the run was abandoned.
func (t *Tracker) finish(phase Phase) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.abandoned {
		return false
	}
	t.state.Phase = phase
	t.state.FinishedAt = timeNow().UTC()
	t.publishLocked()
	return true
}

func (t *Tracker) release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
}

// Abandon stops the run after the row currently in flight and closes every
// listener. Calls already sent to the platform are not interrupted. A run that
// has not reached a terminal phase ends up in PhaseAbandoned.
func (t *Tracker) Abandon() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.abandoned = true
	t.rows = nil
	if !t.state.Phase.IsTerminal() {
		t.state.Phase = PhaseAbandoned
		t.state.FinishedAt = timeNow().UTC()
	}
	t.closeLocked()
}

// Abandoned reports whether Abandon has been called.
func (t *Tracker) Abandoned() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.abandoned
}
