package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/KAsare1/Kodefx-booking/cmd/models"
	"github.com/KAsare1/Kodefx-booking/db/dbtest"
	"github.com/KAsare1/Kodefx-booking/service/apperr"
	"gorm.io/gorm"
)

type note struct {
	role  models.Role
	id    uint
	title string
	meta  map[string]string
}

type fakeNotifier struct {
	mu    sync.Mutex
	notes []note
	err   error
}

func (f *fakeNotifier) NotifyUser(_ context.Context, userID uint, title, _ string, meta map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, note{role: models.RoleUser, id: userID, title: title, meta: meta})
	return f.err
}

func (f *fakeNotifier) NotifyConsultant(_ context.Context, consultantID uint, title, _ string, meta map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, note{role: models.RoleConsultant, id: consultantID, title: title, meta: meta})
	return f.err
}

func (f *fakeNotifier) count(role models.Role, id uint, event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, nt := range f.notes {
		if nt.role == role && nt.id == id && nt.meta["event"] == event {
			n++
		}
	}
	return n
}

type fakeRooms struct {
	mu     sync.Mutex
	opened []uint
	err    error
}

func (f *fakeRooms) OpenRoom(_ context.Context, appt *models.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, appt.ID)
	return f.err
}

type fakeLease struct {
	ok    bool
	err   error
	calls int
}

func (f *fakeLease) Acquire(context.Context, string, time.Duration) (bool, error) {
	f.calls++
	return f.ok, f.err
}

// fixedNow is a Thursday morning; tests book into the following day.
var fixedNow = time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(2026, 10, 16, hour, minute, 0, 0, time.UTC)
}

type fixture struct {
	db         *gorm.DB
	store      Store
	svc        *Service
	notifier   *fakeNotifier
	rooms      *fakeRooms
	consultant *models.Consultant
	user       *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb := dbtest.Open(t)
	f := &fixture{
		db:       gdb,
		store:    NewStore(gdb),
		notifier: &fakeNotifier{},
		rooms:    &fakeRooms{},
	}
	f.consultant = dbtest.SeedConsultant(t, gdb, "Ama Mensah")
	f.user = dbtest.SeedUser(t, gdb, "Kofi Boateng")
	f.svc = NewService(f.store,
		WithNotifier(f.notifier),
		WithSessionRooms(f.rooms),
		WithClock(func() time.Time { return fixedNow }),
	)
	return f
}

func (f *fixture) userActor() models.Actor {
	return models.Actor{ID: f.user.ID, Role: models.RoleUser}
}

func (f *fixture) consultantActor() models.Actor {
	return models.Actor{ID: f.consultant.ID, Role: models.RoleConsultant}
}

func (f *fixture) book(t *testing.T, actor models.Actor, start time.Time) *models.Appointment {
	t.Helper()
	appt, err := f.svc.CreateAppointment(context.Background(), actor, BookingRequest{
		ConsultantID: f.consultant.ID,
		StartTime:    start,
	})
	if err != nil {
		t.Fatalf("book %s: %v", start.Format(time.Kitchen), err)
	}
	return appt
}

func (f *fixture) reload(t *testing.T, id uint) *models.Appointment {
	t.Helper()
	var appt models.Appointment
	if err := f.db.First(&appt, id).Error; err != nil {
		t.Fatalf("reload %d: %v", id, err)
	}
	return &appt
}

func wantKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	var e *apperr.Error
	if !errors.As(err, &e) || e.Kind != kind {
		t.Fatalf("expected %s error, got %v", kind, err)
	}
}
