package loadtrack

import (
	"errors"
	"testing"
	"time"
)

// fakeClock returns a now func that advances by the given steps, one per
// call, then stays at the last instant.
func fakeClock(start time.Time, steps ...time.Duration) func() time.Time {
	cur := start
	i := 0
	return func() time.Time {
		if i > 0 && i <= len(steps) {
			cur = cur.Add(steps[i-1])
		}
		i++
		return cur
	}
}

type recordingListener struct {
	finished   int
	failed     int
	lastErr    *LoadError
	lastRecord []Transition
}

func (l *recordingListener) Finished(records []Transition) {
	l.finished++
	l.lastRecord = records
}

func (l *recordingListener) FailedLoad(err *LoadError, records []Transition) {
	l.failed++
	l.lastErr = err
	l.lastRecord = records
}

func TestLegalPathTiming(t *testing.T) {
	base := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	deltas := []time.Duration{
		120 * time.Millisecond,
		340 * time.Millisecond,
		80 * time.Millisecond,
		500 * time.Millisecond,
	}

	l := &recordingListener{}
	tr := newWithClock(l, fakeClock(base, deltas...))

	tr.Commit()
	tr.HTMLLoaded()
	tr.StudiesLoaded()
	tr.Loaded()

	if !tr.Finished() {
		t.Fatal("tracker not finished after Loaded()")
	}
	if l.finished != 1 {
		t.Fatalf("Finished fired %d times; want 1", l.finished)
	}
	if l.failed != 0 {
		t.Fatalf("FailedLoad fired %d times; want 0", l.failed)
	}

	records := tr.Records()
	if len(records) != 4 {
		t.Fatalf("len(records) = %d; want 4", len(records))
	}
	wantSteps := []struct {
		from, to StageKind
	}{
		{StageStart, StageCommit},
		{StageCommit, StageHTMLLoaded},
		{StageHTMLLoaded, StageStudiesLoaded},
		{StageStudiesLoaded, StageLoaded},
	}
	var wantTotal float64
	for i, want := range wantSteps {
		got := records[i]
		if got.From != want.from || got.To != want.to {
			t.Fatalf("records[%d] = %s; want %s -> %s", i, got.Label(), want.from, want.to)
		}
		if got.Elapsed != deltas[i] {
			t.Fatalf("records[%d].Elapsed = %v; want %v", i, got.Elapsed, deltas[i])
		}
		wantTotal += deltas[i].Seconds()
	}
	if got := TotalTime(records); got != wantTotal {
		t.Fatalf("TotalTime() = %v; want %v", got, wantTotal)
	}
	if len(l.lastRecord) != 4 {
		t.Fatalf("listener received %d records; want 4", len(l.lastRecord))
	}
}

func TestEarlyFailure(t *testing.T) {
	l := &recordingListener{}
	tr := New(l)

	cause := errors.New("net::ERR_CONNECTION_REFUSED")
	tr.Failed(NewProvisionalError("https://charts.example.com", "", cause))

	if l.finished != 0 {
		t.Fatalf("Finished fired %d times; want 0", l.finished)
	}
	if l.failed != 1 {
		t.Fatalf("FailedLoad fired %d times; want 1", l.failed)
	}

	records := tr.Records()
	if len(records) != 1 {
		t.Fatalf("len(records) = %d; want 1", len(records))
	}
	if records[0].From != StageStart || records[0].To != StageFailed {
		t.Fatalf("records[0] = %s; want start -> failed", records[0].Label())
	}
	if l.lastErr == nil || !errors.Is(l.lastErr, cause) {
		t.Fatalf("listener error = %v; want wrapped %v", l.lastErr, cause)
	}
	if l.lastErr.Version != UndefinedVersion {
		t.Fatalf("error version = %q; want %q", l.lastErr.Version, UndefinedVersion)
	}
}

func TestIdempotenceAfterTerminal(t *testing.T) {
	l := &recordingListener{}
	tr := New(l)

	tr.Commit()
	tr.HTMLLoaded()
	tr.StudiesLoaded()
	tr.Loaded()

	before := len(tr.Records())

	tr.Commit()
	tr.StudiesLoaded()
	tr.Failed(NewInternalError("https://charts.example.com", "9.8.0", "late failure"))

	if got := len(tr.Records()); got != before {
		t.Fatalf("records grew from %d to %d after terminal stage", before, got)
	}
	if l.finished != 1 {
		t.Fatalf("Finished fired %d times; want exactly 1", l.finished)
	}
	if l.failed != 0 {
		t.Fatalf("FailedLoad fired %d times after success; want 0", l.failed)
	}
}

func TestDuplicateFailureAbsorbed(t *testing.T) {
	l := &recordingListener{}
	tr := New(l)

	tr.Failed(NewTerminationError("https://charts.example.com", "", 1))
	tr.Failed(NewTerminationError("https://charts.example.com", "", 2))

	if l.failed != 1 {
		t.Fatalf("FailedLoad fired %d times; want 1", l.failed)
	}
	if l.lastErr.Retries != 1 {
		t.Fatalf("listener saw retry count %d; want 1 (second failure dropped)", l.lastErr.Retries)
	}
}

func TestIllegalTransitionDropped(t *testing.T) {
	l := &recordingListener{}
	tr := New(l)

	// studiesLoaded straight from start skips two stages.
	tr.StudiesLoaded()

	if got := tr.Stage(); got != StageStart {
		t.Fatalf("Stage() = %s after illegal transition; want start", got)
	}
	if got := len(tr.Records()); got != 0 {
		t.Fatalf("len(records) = %d after illegal transition; want 0", got)
	}

	// The session must still be able to finish normally afterwards.
	tr.Commit()
	tr.HTMLLoaded()
	tr.StudiesLoaded()
	tr.Loaded()
	if l.finished != 1 {
		t.Fatalf("Finished fired %d times; want 1", l.finished)
	}
}

func TestEmptySequenceTotals(t *testing.T) {
	if got := TotalTime(nil); got != 0 {
		t.Fatalf("TotalTime(nil) = %v; want 0", got)
	}
	if got := Steps(nil); got != "" {
		t.Fatalf("Steps(nil) = %q; want empty string", got)
	}
}

func TestDetachedListener(t *testing.T) {
	l := &recordingListener{}
	tr := New(l)
	tr.SetListener(nil)

	tr.Commit()
	tr.HTMLLoaded()
	tr.StudiesLoaded()
	tr.Loaded()

	if !tr.Finished() {
		t.Fatal("tracker not finished with detached listener")
	}
	if got := len(tr.Records()); got != 4 {
		t.Fatalf("len(records) = %d; want 4", got)
	}
	if l.finished != 0 || l.failed != 0 {
		t.Fatalf("detached listener was notified (finished=%d failed=%d)", l.finished, l.failed)
	}
}

func TestStepsRendering(t *testing.T) {
	records := []Transition{
		{From: StageStart, To: StageCommit, Elapsed: 1500 * time.Millisecond},
	}
	if got, want := Steps(records), "start -> commit 1.5"; got != want {
		t.Fatalf("Steps() = %q; want %q", got, want)
	}

	records = append(records, Transition{From: StageCommit, To: StageHTMLLoaded, Elapsed: 250 * time.Millisecond})
	want := "start -> commit 1.5\ncommit -> htmlLoaded 0.25"
	if got := Steps(records); got != want {
		t.Fatalf("Steps() = %q; want %q", got, want)
	}
}

func TestLoadErrorRendering(t *testing.T) {
	cause := errors.New("timed out")
	cases := []struct {
		name string
		err  *LoadError
		want string
	}{
		{
			name: "navigation",
			err:  NewNavigationError("https://c.example.com", "9.8.0", cause),
			want: "navigation failed for https://c.example.com (engine 9.8.0): timed out",
		},
		{
			name: "provisional",
			err:  NewProvisionalError("https://c.example.com", "", cause),
			want: "provisional navigation failed for https://c.example.com (engine undefined): timed out",
		},
		{
			name: "termination",
			err:  NewTerminationError("https://c.example.com", "9.8.0", 3),
			want: "web content terminated for https://c.example.com (engine 9.8.0), retry 3",
		},
		{
			name: "internal",
			err:  NewInternalError("https://c.example.com", "9.8.0", ""),
			want: "chart engine error for https://c.example.com (engine 9.8.0): unspecified",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.err.Error(); got != tc.want {
				t.Fatalf("Error() = %q; want %q", got, tc.want)
			}
		})
	}
}
