package appointment

import (
	"errors"
	"testing"
	"time"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
)

func (f *fixture) insert(t *testing.T, status models.AppointmentStatus, start time.Time) *models.Appointment {
	t.Helper()
	w := NewWindow(start, 90)
	a := &models.Appointment{
		ConsultantID:    f.consultant.ID,
		Status:          status,
		StartTime:       w.Start,
		EndTime:         w.End,
		DurationMinutes: 90,
	}
	if status != models.StatusBlocked {
		a.UserID = &f.user.ID
	}
	if err := f.db.Create(a).Error; err != nil {
		t.Fatalf("insert %s: %v", status, err)
	}
	return a
}

func TestReaperCancelsExpiredOnce(t *testing.T) {
	f := newFixture(t)
	now := fixedNow

	stalePending := f.insert(t, models.StatusPending, now.Add(-16*time.Minute))
	staleConfirmed := f.insert(t, models.StatusConfirmed, now.Add(-4*time.Hour))
	inGrace := f.insert(t, models.StatusPending, now.Add(-10*time.Minute))
	running := f.insert(t, models.StatusInSession, now.Add(-6*time.Hour))
	blocked := f.insert(t, models.StatusBlocked, now.Add(-8*time.Hour))

	reaper := NewReaper(f.store, ReaperConfig{Interval: time.Minute, Grace: 15 * time.Minute},
		WithReaperNotifier(f.notifier),
		WithReaperClock(func() time.Time { return now }),
	)

	n, err := reaper.RunOnce(t.Context())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 2 {
		t.Fatalf("cancelled %d, want 2", n)
	}

	for _, id := range []uint{stalePending.ID, staleConfirmed.ID} {
		got := f.reload(t, id)
		if got.Status != models.StatusCancelled {
			t.Errorf("appointment %d status = %s, want cancelled", id, got.Status)
		}
		if got.CancellationReason == nil || *got.CancellationReason != "Missed/Expired" {
			t.Errorf("appointment %d reason = %v", id, got.CancellationReason)
		}
		if !got.UpdatedAt.Equal(now) {
			t.Errorf("appointment %d updated_at = %v", id, got.UpdatedAt)
		}
	}
	for id, want := range map[uint]models.AppointmentStatus{
		inGrace.ID: models.StatusPending,
		running.ID: models.StatusInSession,
		blocked.ID: models.StatusBlocked,
	} {
		if got := f.reload(t, id).Status; got != want {
			t.Errorf("appointment %d status = %s, want %s", id, got, want)
		}
	}

	if got := f.notifier.count(models.RoleUser, f.user.ID, "cancelled"); got != 2 {
		t.Errorf("user cancellation notices = %d, want 2", got)
	}
	if got := f.notifier.count(models.RoleConsultant, f.consultant.ID, "cancelled"); got != 2 {
		t.Errorf("consultant cancellation notices = %d, want 2", got)
	}

	n, err = reaper.RunOnce(t.Context())
	if err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	if n != 0 {
		t.Fatalf("second pass cancelled %d, want 0", n)
	}
	if got := f.notifier.count(models.RoleUser, f.user.ID, "cancelled"); got != 2 {
		t.Errorf("second pass sent more notices: %d", got)
	}
}

func TestReaperRespectsLease(t *testing.T) {
	f := newFixture(t)
	stale := f.insert(t, models.StatusPending, fixedNow.Add(-time.Hour))
	clock := WithReaperClock(func() time.Time { return fixedNow })

	held := &fakeLease{ok: false}
	n, err := NewReaper(f.store, ReaperConfig{}, WithReaperLease(held), clock).RunOnce(t.Context())
	if err != nil || n != 0 {
		t.Fatalf("held lease: n=%d err=%v", n, err)
	}
	if held.calls != 1 {
		t.Fatalf("lease acquired %d times", held.calls)
	}
	if f.reload(t, stale.ID).Status != models.StatusPending {
		t.Fatalf("pass ran without the lease")
	}

	broken := &fakeLease{err: errors.New("redis: connection refused")}
	n, err = NewReaper(f.store, ReaperConfig{}, WithReaperLease(broken), clock).RunOnce(t.Context())
	if err != nil || n != 1 {
		t.Fatalf("lease outage should not stop the sweep: n=%d err=%v", n, err)
	}
}

func TestReaperStartStop(t *testing.T) {
	f := newFixture(t)
	stale := f.insert(t, models.StatusConfirmed, fixedNow.Add(-time.Hour))

	reaper := NewReaper(f.store, ReaperConfig{Interval: 20 * time.Millisecond, Grace: 15 * time.Minute},
		WithReaperClock(func() time.Time { return fixedNow }),
	)
	if err := reaper.Start(t.Context()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := reaper.Start(t.Context()); !errors.Is(err, ErrReaperRunning) {
		t.Fatalf("second Start = %v, want ErrReaperRunning", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for f.reload(t, stale.ID).Status != models.StatusCancelled {
		if time.Now().After(deadline) {
			t.Fatalf("reaper never cancelled the stale appointment")
		}
		time.Sleep(10 * time.Millisecond)
	}

	reaper.Stop()
	reaper.Stop()

	if err := reaper.Start(t.Context()); err != nil {
		t.Fatalf("restart after Stop: %v", err)
	}
	reaper.Stop()
}
