// Package loadtrack measures the stages of a chart page load. A Tracker is
// created fresh for every navigation attempt, records the elapsed time of
// each lifecycle stage, and notifies its listener exactly once on terminal
// success or failure.
package loadtrack

import (
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// StageKind identifies one state of the load lifecycle.
type StageKind int

const (
	StageStart StageKind = iota
	StageCommit
	StageHTMLLoaded
	StageStudiesLoaded
	StageLoaded
	StageFailed
)

func (k StageKind) String() string {
	switch k {
	case StageStart:
		return "start"
	case StageCommit:
		return "commit"
	case StageHTMLLoaded:
		return "htmlLoaded"
	case StageStudiesLoaded:
		return "studiesLoaded"
	case StageLoaded:
		return "loaded"
	case StageFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the stage ends a session.
func (k StageKind) Terminal() bool {
	return k == StageLoaded || k == StageFailed
}

// stage is the current state plus its payload: non-terminal stages carry the
// time they were entered, StageFailed carries the triggering error.
type stage struct {
	kind      StageKind
	enteredAt time.Time
	err       *LoadError
}

// Transition is one completed step of a load: the stage moved from, the
// stage moved to, and the wall-clock time spent in the from stage.
type Transition struct {
	From    StageKind
	To      StageKind
	Elapsed time.Duration
}

// Label renders the step name, e.g. "commit -> htmlLoaded".
func (t Transition) Label() string {
	return t.From.String() + " -> " + t.To.String()
}

// Listener receives the terminal outcome of one tracked load. Exactly one of
// the two callbacks fires per Tracker, synchronously from the transition
// call; implementations must not re-enter the tracker from within them.
type Listener interface {
	Finished(records []Transition)
	FailedLoad(err *LoadError, records []Transition)
}

// Tracker is the per-attempt load state machine. It is not safe for
// concurrent use: all transition calls must arrive on the goroutine that
// owns the page-loading lifecycle.
type Tracker struct {
	listener Listener
	now      func() time.Time

	stage    stage
	records  []Transition
	finished bool
}

// New creates a tracker in the start stage, stamped with the current time.
// listener may be nil; it can be attached or detached later via SetListener.
func New(listener Listener) *Tracker {
	return newWithClock(listener, time.Now)
}

func newWithClock(listener Listener, now func() time.Time) *Tracker {
	t := &Tracker{listener: listener, now: now}
	t.stage = stage{kind: StageStart, enteredAt: t.now()}
	return t
}

// SetListener replaces the listener. Passing nil detaches it; terminal
// transitions still complete but no notification is delivered.
func (t *Tracker) SetListener(l Listener) { t.listener = l }

// Stage returns the kind of the current stage.
func (t *Tracker) Stage() StageKind { return t.stage.kind }

// Finished reports whether a terminal stage has been reached.
func (t *Tracker) Finished() bool { return t.finished }

// Err returns the failure error, or nil if the session has not failed.
func (t *Tracker) Err() *LoadError { return t.stage.err }

// Records returns a copy of the transitions collected so far, in
// chronological order.
func (t *Tracker) Records() []Transition {
	out := make([]Transition, len(t.records))
	copy(out, t.records)
	return out
}

// Commit records that the navigation was committed by the browser.
func (t *Tracker) Commit() {
	t.transition(stage{kind: StageCommit, enteredAt: t.now()})
}

// HTMLLoaded records that the chart page's HTML finished loading.
func (t *Tracker) HTMLLoaded() {
	t.transition(stage{kind: StageHTMLLoaded, enteredAt: t.now()})
}

// StudiesLoaded records that saved studies were reapplied to the chart.
func (t *Tracker) StudiesLoaded() {
	t.transition(stage{kind: StageStudiesLoaded, enteredAt: t.now()})
}

// Loaded marks the session as successfully finished and notifies the
// listener with the full record sequence.
func (t *Tracker) Loaded() {
	t.transition(stage{kind: StageLoaded})
}

// Failed marks the session as failed and notifies the listener with err and
// the records collected up to the failure.
func (t *Tracker) Failed(err *LoadError) {
	t.transition(stage{kind: StageFailed, err: err})
}

// legalTransitions enumerates the allowed (from, to) stage pairs. Stages
// must be visited strictly in order; a failure is allowed from any
// non-terminal stage. Anything else is a caller bug.
var legalTransitions = map[StageKind][]StageKind{
	StageStart:         {StageCommit, StageFailed},
	StageCommit:        {StageHTMLLoaded, StageFailed},
	StageHTMLLoaded:    {StageStudiesLoaded, StageFailed},
	StageStudiesLoaded: {StageLoaded, StageFailed},
}

func legal(from, to StageKind) bool {
	for _, k := range legalTransitions[from] {
		if k == to {
			return true
		}
	}
	return false
}

// transition performs the finished guard, legality check, record append and
// exactly-once terminal notification in one controlled operation.
func (t *Tracker) transition(next stage) {
	if t.finished {
		slog.Debug("load stage change after terminal stage ignored",
			"current", t.stage.kind.String(), "requested", next.kind.String())
		return
	}
	if !legal(t.stage.kind, next.kind) {
		// Out-of-order or duplicate lifecycle signal from the caller. Drop
		// it without touching the state so the record sequence stays
		// consistent; browser engines are known to misdeliver these.
		slog.Error("illegal load stage transition dropped",
			"from", t.stage.kind.String(), "to", next.kind.String())
		return
	}

	// Non-terminal stages carry their entry time; terminal stages do not,
	// the interval is computed at the moment of transition instead.
	at := next.enteredAt
	if next.kind.Terminal() {
		at = t.now()
	}
	t.records = append(t.records, Transition{From: t.stage.kind, To: next.kind, Elapsed: at.Sub(t.stage.enteredAt)})
	t.stage = next

	if !next.kind.Terminal() {
		return
	}
	t.finished = true
	if t.listener == nil {
		return
	}
	if next.kind == StageLoaded {
		t.listener.Finished(t.Records())
		return
	}
	t.listener.FailedLoad(next.err, t.Records())
}

// TotalTime sums the recorded durations in seconds. Zero for no records.
func TotalTime(records []Transition) float64 {
	var total float64
	for _, r := range records {
		total += r.Elapsed.Seconds()
	}
	return total
}

// Steps renders the records one per line as "<from> -> <to> <seconds>",
// preserving chronological order.
func Steps(records []Transition) string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, r.Label()+" "+strconv.FormatFloat(r.Elapsed.Seconds(), 'f', -1, 64))
	}
	return strings.Join(lines, "\n")
}
