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
)

func TestCreateAppointment(t *testing.T) {
	f := newFixture(t)
	mood := 6

	got, err := f.svc.CreateAppointment(t.Context(), f.userActor(), BookingRequest{
		ConsultantID: f.consultant.ID,
		StartTime:    at(10, 0),
		Description:  "Risk management review",
		Mood:         &mood,
	})
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}

	if got.Status != models.StatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
	if got.DurationMinutes != 90 {
		t.Errorf("duration = %d, want default 90", got.DurationMinutes)
	}
	if !got.EndTime.Equal(at(11, 30)) {
		t.Errorf("end = %v, want 11:30", got.EndTime)
	}
	if got.UserID == nil || *got.UserID != f.user.ID {
		t.Errorf("user_id = %v, want %d", got.UserID, f.user.ID)
	}

	stored := f.reload(t, got.ID)
	if stored.Status != models.StatusPending || !stored.StartTime.Equal(at(10, 0)) {
		t.Errorf("stored = %+v", stored)
	}
	if f.notifier.count(models.RoleConsultant, f.consultant.ID, "created") != 1 {
		t.Errorf("consultant was not notified of the booking")
	}
	if f.notifier.count(models.RoleUser, f.user.ID, "created") != 1 {
		t.Errorf("user was not notified of the booking")
	}
}

func TestCreateAppointmentSlotTaken(t *testing.T) {
	f := newFixture(t)
	other := dbtest.SeedUser(t, f.db, "Yaw Asante")
	otherActor := models.Actor{ID: other.ID, Role: models.RoleUser}

	f.book(t, f.userActor(), at(10, 0)) // 10:00-11:30

	_, err := f.svc.CreateAppointment(t.Context(), otherActor, BookingRequest{
		ConsultantID: f.consultant.ID, StartTime: at(11, 0), DurationMinutes: 60,
	})
	wantKind(t, err, apperr.KindSlotTaken)
	if !errors.Is(err, apperr.ErrSlotTaken) {
		t.Errorf("errors.Is(err, ErrSlotTaken) = false")
	}

	if _, err := f.svc.CreateAppointment(t.Context(), otherActor, BookingRequest{
		ConsultantID: f.consultant.ID, StartTime: at(11, 30), DurationMinutes: 30,
	}); err != nil {
		t.Fatalf("back-to-back booking should succeed: %v", err)
	}
}

func TestCreateAppointmentRejects(t *testing.T) {
	f := newFixture(t)
	badMood := 11
	admin := models.Actor{ID: 1, Role: models.RoleAdmin}

	tests := []struct {
		name  string
		actor models.Actor
		req   BookingRequest
		want  apperr.Kind
	}{
		{"consultant cannot book", f.consultantActor(), BookingRequest{ConsultantID: f.consultant.ID, StartTime: at(10, 0)}, apperr.KindForbidden},
		{"system cannot book", models.SystemActor, BookingRequest{ConsultantID: f.consultant.ID, StartTime: at(10, 0)}, apperr.KindForbidden},
		{"mood out of range", f.userActor(), BookingRequest{ConsultantID: f.consultant.ID, StartTime: at(10, 0), Mood: &badMood}, apperr.KindValidation},
		{"negative duration", f.userActor(), BookingRequest{ConsultantID: f.consultant.ID, StartTime: at(10, 0), DurationMinutes: -30}, apperr.KindValidation},
		{"duration over a day", f.userActor(), BookingRequest{ConsultantID: f.consultant.ID, StartTime: at(10, 0), DurationMinutes: MaxDurationMinutes + 1}, apperr.KindValidation},
		{"duration that overflows the window", f.userActor(), BookingRequest{ConsultantID: f.consultant.ID, StartTime: at(10, 0), DurationMinutes: 153722868}, apperr.KindValidation},
		{"missing start", f.userActor(), BookingRequest{ConsultantID: f.consultant.ID}, apperr.KindValidation},
		{"start in the past", f.userActor(), BookingRequest{ConsultantID: f.consultant.ID, StartTime: fixedNow.Add(-time.Hour)}, apperr.KindValidation},
		{"missing consultant id", f.userActor(), BookingRequest{StartTime: at(10, 0)}, apperr.KindValidation},
		{"unknown consultant", f.userActor(), BookingRequest{ConsultantID: 9999, StartTime: at(10, 0)}, apperr.KindNotFound},
		{"admin without user", admin, BookingRequest{ConsultantID: f.consultant.ID, StartTime: at(10, 0)}, apperr.KindValidation},
		{"admin with unknown user", admin, BookingRequest{ConsultantID: f.consultant.ID, UserID: 9999, StartTime: at(10, 0)}, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAppointment(t.Context(), tt.actor, tt.req)
			wantKind(t, err, tt.want)
		})
	}

	var count int64
	f.db.Model(&models.Appointment{}).Count(&count)
	if count != 0 {
		t.Fatalf("rejected bookings left %d rows behind", count)
	}
}

func TestAdminBooksOnBehalfOfUser(t *testing.T) {
	f := newFixture(t)
	admin := models.Actor{ID: 1, Role: models.RoleAdmin}

	got, err := f.svc.CreateAppointment(t.Context(), admin, BookingRequest{
		ConsultantID: f.consultant.ID, UserID: f.user.ID, StartTime: at(9, 0),
	})
	if err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	if got.UserID == nil || *got.UserID != f.user.ID {
		t.Fatalf("user_id = %v, want %d", got.UserID, f.user.ID)
	}
}

func TestConcurrentBookingsNeverDoubleBook(t *testing.T) {
	f := newFixture(t)

	const n = 8
	users := make([]*models.User, n)
	for i := range users {
		users[i] = dbtest.SeedUser(t, f.db, "racer")
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Every window overlaps every other one.
			_, errs[i] = f.svc.CreateAppointment(context.Background(),
				models.Actor{ID: users[i].ID, Role: models.RoleUser},
				BookingRequest{ConsultantID: f.consultant.ID, StartTime: at(10, 0).Add(time.Duration(i) * 5 * time.Minute)})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.KindOf(err) != apperr.KindSlotTaken:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Fatalf("%d concurrent overlapping bookings succeeded, want exactly 1", ok)
	}

	var active int64
	f.db.Model(&models.Appointment{}).Where("consultant_id = ? AND status = ?", f.consultant.ID, models.StatusPending).Count(&active)
	if active != 1 {
		t.Fatalf("%d pending rows, want 1", active)
	}
}

func TestStatusTransitions(t *testing.T) {
	f := newFixture(t)
	booked := f.book(t, f.userActor(), at(10, 0))

	_, err := f.svc.Confirm(t.Context(), f.userActor(), booked.ID)
	wantKind(t, err, apperr.KindForbidden)

	other := dbtest.SeedConsultant(t, f.db, "Esi Owusu")
	_, err = f.svc.Confirm(t.Context(), models.Actor{ID: other.ID, Role: models.RoleConsultant}, booked.ID)
	wantKind(t, err, apperr.KindForbidden)

	confirmed, err := f.svc.Confirm(t.Context(), f.consultantActor(), booked.ID)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if confirmed.Status != models.StatusConfirmed {
		t.Fatalf("status = %s, want confirmed", confirmed.Status)
	}
	if f.reload(t, booked.ID).Status != models.StatusConfirmed {
		t.Fatalf("confirmed status not persisted")
	}
	if f.notifier.count(models.RoleUser, f.user.ID, "confirmed") != 1 {
		t.Errorf("user was not told about the confirmation")
	}

	_, err = f.svc.Confirm(t.Context(), f.consultantActor(), booked.ID)
	wantKind(t, err, apperr.KindInvalidStatus)

	_, err = f.svc.UpdateStatus(t.Context(), f.consultantActor(), booked.ID, "archived", "")
	wantKind(t, err, apperr.KindInvalidStatus)

	_, err = f.svc.Confirm(t.Context(), f.consultantActor(), 4242)
	wantKind(t, err, apperr.KindNotFound)
}

func TestUpdateStatusStampsUpdatedAt(t *testing.T) {
	f := newFixture(t)
	booked := f.book(t, f.userActor(), at(10, 0))

	later := fixedNow.Add(2 * time.Hour)
	svc := NewService(f.store, WithClock(func() time.Time { return later }))
	if _, err := svc.Confirm(t.Context(), f.consultantActor(), booked.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if got := f.reload(t, booked.ID).UpdatedAt; !got.Equal(later) {
		t.Fatalf("updated_at = %v, want %v", got, later)
	}
}

func TestCancelReleasesSlot(t *testing.T) {
	f := newFixture(t)
	booked := f.book(t, f.userActor(), at(10, 0))

	cancelled, err := f.svc.Cancel(t.Context(), f.userActor(), booked.ID, "Travelling")
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != models.StatusCancelled {
		t.Fatalf("status = %s", cancelled.Status)
	}
	stored := f.reload(t, booked.ID)
	if stored.CancellationReason == nil || *stored.CancellationReason != "Travelling" {
		t.Fatalf("cancellation_reason = %v", stored.CancellationReason)
	}

	other := dbtest.SeedUser(t, f.db, "Abena Darko")
	f.book(t, models.Actor{ID: other.ID, Role: models.RoleUser}, at(10, 0))
}

func TestRejectWithoutReasonLeavesReasonEmpty(t *testing.T) {
	f := newFixture(t)
	booked := f.book(t, f.userActor(), at(10, 0))

	if _, err := f.svc.Reject(t.Context(), f.consultantActor(), booked.ID, ""); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	stored := f.reload(t, booked.ID)
	if stored.Status != models.StatusRejected || stored.CancellationReason != nil {
		t.Fatalf("stored = status %s reason %v", stored.Status, stored.CancellationReason)
	}
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	booked := f.book(t, f.userActor(), at(10, 0))

	started, err := f.svc.StartSession(t.Context(), f.userActor(), booked.ID)
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if started.Status != models.StatusInSession {
		t.Fatalf("status = %s", started.Status)
	}
	if len(f.rooms.opened) != 1 || f.rooms.opened[0] != booked.ID {
		t.Fatalf("session room not opened: %v", f.rooms.opened)
	}

	_, err = f.svc.Complete(t.Context(), f.userActor(), booked.ID)
	wantKind(t, err, apperr.KindForbidden)

	_, err = f.svc.Reschedule(t.Context(), f.userActor(), booked.ID, at(15, 0), 0)
	wantKind(t, err, apperr.KindInvalidStatus)

	done, err := f.svc.Complete(t.Context(), f.consultantActor(), booked.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != models.StatusCompleted {
		t.Fatalf("status = %s", done.Status)
	}

	// A completed session no longer holds the slot.
	other := dbtest.SeedUser(t, f.db, "Nana Yeboah")
	f.book(t, models.Actor{ID: other.ID, Role: models.RoleUser}, at(10, 0))
}

func TestCollaboratorFailuresDoNotFailTransitions(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("push gateway down")
	f.rooms.err = errors.New("chat provider down")

	booked := f.book(t, f.userActor(), at(10, 0))
	if _, err := f.svc.StartSession(t.Context(), f.consultantActor(), booked.ID); err != nil {
		t.Fatalf("StartSession should ignore collaborator failures: %v", err)
	}
	if f.reload(t, booked.ID).Status != models.StatusInSession {
		t.Fatalf("transition was rolled back")
	}
}

func TestBlockSlot(t *testing.T) {
	f := newFixture(t)

	block, err := f.svc.BlockSlot(t.Context(), f.consultantActor(), f.consultant.ID, at(14, 0), 60)
	if err != nil {
		t.Fatalf("BlockSlot: %v", err)
	}
	if block.Status != models.StatusBlocked || block.UserID != nil {
		t.Fatalf("block = status %s user %v", block.Status, block.UserID)
	}

	_, err = f.svc.BlockSlot(t.Context(), f.consultantActor(), f.consultant.ID, at(14, 0), 30)
	wantKind(t, err, apperr.KindAlreadyBlocked)

	_, err = f.svc.BlockSlot(t.Context(), f.consultantActor(), f.consultant.ID, at(14, 30), 60)
	wantKind(t, err, apperr.KindSlotTaken)

	_, err = f.svc.CreateAppointment(t.Context(), f.userActor(), BookingRequest{
		ConsultantID: f.consultant.ID, StartTime: at(13, 30), DurationMinutes: 60,
	})
	wantKind(t, err, apperr.KindSlotTaken)

	other := dbtest.SeedConsultant(t, f.db, "Kwame Nkrumah")
	_, err = f.svc.BlockSlot(t.Context(), models.Actor{ID: other.ID, Role: models.RoleConsultant}, f.consultant.ID, at(16, 0), 60)
	wantKind(t, err, apperr.KindForbidden)

	_, err = f.svc.BlockSlot(t.Context(), f.userActor(), f.consultant.ID, at(16, 0), 60)
	wantKind(t, err, apperr.KindForbidden)

	if _, err := f.svc.Cancel(t.Context(), f.consultantActor(), block.ID, ""); err != nil {
		t.Fatalf("releasing block: %v", err)
	}
	f.book(t, f.userActor(), at(14, 0))

	if f.notifier.count(models.RoleConsultant, f.consultant.ID, "blocked") != 1 {
		t.Errorf("consultant not told about the block")
	}
}

func TestBlockSlotOverBooking(t *testing.T) {
	f := newFixture(t)
	f.book(t, f.userActor(), at(10, 0))

	_, err := f.svc.BlockSlot(t.Context(), f.consultantActor(), f.consultant.ID, at(10, 0), 30)
	wantKind(t, err, apperr.KindSlotTaken)
}

func TestReschedule(t *testing.T) {
	f := newFixture(t)
	other := dbtest.SeedUser(t, f.db, "Akua Sarpong")

	a := f.book(t, f.userActor(), at(10, 0))                                    // 10:00-11:30
	b := f.book(t, models.Actor{ID: other.ID, Role: models.RoleUser}, at(12, 0)) // 12:00-13:30
	if _, err := f.svc.Confirm(t.Context(), f.consultantActor(), a.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	_, err := f.svc.Reschedule(t.Context(), f.userActor(), a.ID, at(11, 0), 0)
	wantKind(t, err, apperr.KindSlotTaken)

	moved, err := f.svc.Reschedule(t.Context(), f.userActor(), a.ID, at(10, 30), 0)
	if err != nil {
		t.Fatalf("overlapping only its own window should succeed: %v", err)
	}
	if moved.Status != models.StatusPending {
		t.Errorf("status = %s, want pending after reschedule", moved.Status)
	}
	if moved.DurationMinutes != 90 || !moved.EndTime.Equal(at(12, 0)) {
		t.Errorf("window = %v-%v (%d min)", moved.StartTime, moved.EndTime, moved.DurationMinutes)
	}
	stored := f.reload(t, a.ID)
	if !stored.StartTime.Equal(at(10, 30)) || !stored.EndTime.Equal(at(12, 0)) {
		t.Errorf("stored window = %v-%v", stored.StartTime, stored.EndTime)
	}

	_, err = f.svc.Reschedule(t.Context(), models.Actor{ID: other.ID, Role: models.RoleUser}, a.ID, at(16, 0), 0)
	wantKind(t, err, apperr.KindForbidden)

	_, err = f.svc.Reschedule(t.Context(), f.userActor(), a.ID, time.Time{}, 0)
	wantKind(t, err, apperr.KindValidation)

	if _, err := f.svc.Reschedule(t.Context(), f.consultantActor(), b.ID, at(15, 0), 45); err != nil {
		t.Fatalf("consultant reschedule: %v", err)
	}
	if f.notifier.count(models.RoleUser, other.ID, "rescheduled") != 1 {
		t.Errorf("user not told about reschedule")
	}
}

func TestRescheduleDurationBounds(t *testing.T) {
	f := newFixture(t)
	booked := f.book(t, f.userActor(), at(10, 0))

	for _, minutes := range []int{-1, MaxDurationMinutes + 1, 153722868} {
		_, err := f.svc.Reschedule(t.Context(), f.userActor(), booked.ID, at(12, 0), minutes)
		wantKind(t, err, apperr.KindValidation)
	}
	stored := f.reload(t, booked.ID)
	if !stored.StartTime.Equal(at(10, 0)) || stored.DurationMinutes != 90 {
		t.Fatalf("rejected reschedule moved the row to %v (%d min)", stored.StartTime, stored.DurationMinutes)
	}

	moved, err := f.svc.Reschedule(t.Context(), f.userActor(), booked.ID, at(12, 0), MaxDurationMinutes)
	if err != nil {
		t.Fatalf("a full day should be accepted: %v", err)
	}
	if !moved.EndTime.Equal(at(12, 0).Add(24 * time.Hour)) {
		t.Fatalf("end = %v", moved.EndTime)
	}
}

func TestBlockSlotDurationBound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.BlockSlot(t.Context(), f.consultantActor(), f.consultant.ID, at(14, 0), MaxDurationMinutes+1)
	wantKind(t, err, apperr.KindValidation)
}

func TestRescheduleRejectsStartedAndFinished(t *testing.T) {
	f := newFixture(t)
	started := f.book(t, f.userActor(), at(10, 0))
	if _, err := f.svc.StartSession(t.Context(), f.consultantActor(), started.ID); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	cancelled := f.book(t, f.userActor(), at(14, 0))
	if _, err := f.svc.Cancel(t.Context(), f.userActor(), cancelled.ID, ""); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	for _, id := range []uint{started.ID, cancelled.ID} {
		_, err := f.svc.Reschedule(t.Context(), f.consultantActor(), id, at(17, 0), 0)
		wantKind(t, err, apperr.KindInvalidStatus)
	}
}

func TestUpdateStatusNonTargetStatuses(t *testing.T) {
	f := newFixture(t)
	booked := f.book(t, f.userActor(), at(10, 0))
	admin := models.Actor{ID: 1, Role: models.RoleAdmin}

	tests := []struct {
		name   string
		actor  models.Actor
		target models.AppointmentStatus
		want   apperr.Kind
	}{
		{"user sets pending", f.userActor(), models.StatusPending, apperr.KindForbidden},
		{"user sets blocked", f.userActor(), models.StatusBlocked, apperr.KindForbidden},
		{"consultant sets blocked", f.consultantActor(), models.StatusBlocked, apperr.KindForbidden},
		{"admin sets pending", admin, models.StatusPending, apperr.KindInvalidStatus},
		{"user sets unknown status", f.userActor(), "archived", apperr.KindInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpdateStatus(t.Context(), tt.actor, booked.ID, tt.target, "")
			wantKind(t, err, tt.want)
		})
	}
	if got := f.reload(t, booked.ID).Status; got != models.StatusPending {
		t.Fatalf("status = %s, want pending", got)
	}
}

func TestRescheduleBlockStaysBlocked(t *testing.T) {
	f := newFixture(t)
	block, err := f.svc.BlockSlot(t.Context(), f.consultantActor(), f.consultant.ID, at(14, 0), 60)
	if err != nil {
		t.Fatalf("BlockSlot: %v", err)
	}

	moved, err := f.svc.Reschedule(t.Context(), f.consultantActor(), block.ID, at(15, 0), 0)
	if err != nil {
		t.Fatalf("Reschedule block: %v", err)
	}
	if moved.Status != models.StatusBlocked || moved.DurationMinutes != 60 {
		t.Fatalf("moved = status %s duration %d", moved.Status, moved.DurationMinutes)
	}
	f.book(t, f.userActor(), at(13, 0)) // 13:00-14:30, free now the block moved
}

func TestGetVisibility(t *testing.T) {
	f := newFixture(t)
	booked := f.book(t, f.userActor(), at(10, 0))

	for _, actor := range []models.Actor{f.userActor(), f.consultantActor(), {ID: 1, Role: models.RoleAdmin}} {
		if _, err := f.svc.Get(t.Context(), actor, booked.ID); err != nil {
			t.Errorf("Get as %s: %v", actor.Role, err)
		}
	}

	stranger := dbtest.SeedUser(t, f.db, "Stranger")
	_, err := f.svc.Get(t.Context(), models.Actor{ID: stranger.ID, Role: models.RoleUser}, booked.ID)
	wantKind(t, err, apperr.KindForbidden)

	_, err = f.svc.Get(t.Context(), f.userActor(), 777)
	wantKind(t, err, apperr.KindNotFound)
}

func TestListScopesAndPaging(t *testing.T) {
	f := newFixture(t)
	other := dbtest.SeedUser(t, f.db, "Efua Mensah")
	otherActor := models.Actor{ID: other.ID, Role: models.RoleUser}

	f.book(t, f.userActor(), at(8, 0))
	second := f.book(t, f.userActor(), at(10, 0))
	f.book(t, otherActor, at(12, 0))
	if _, err := f.svc.Cancel(t.Context(), f.userActor(), second.ID, ""); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	mine, err := f.svc.List(t.Context(), f.userActor(), ListQuery{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if mine.Total != 2 || mine.PageSize != DefaultLimits.Default {
		t.Errorf("user list total=%d page_size=%d", mine.Total, mine.PageSize)
	}

	theirs, err := f.svc.List(t.Context(), f.consultantActor(), ListQuery{Statuses: []models.AppointmentStatus{models.StatusPending}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if theirs.Total != 2 {
		t.Errorf("consultant pending total = %d, want 2", theirs.Total)
	}

	all, err := f.svc.List(t.Context(), models.Actor{ID: 1, Role: models.RoleAdmin}, ListQuery{Limit: 1, Page: 2})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if all.Total != 3 || len(all.Appointments) != 1 || all.TotalPages != 3 || all.Page != 2 {
		t.Errorf("admin page = %+v", all)
	}
	if !all.Appointments[0].StartTime.Equal(at(10, 0)) {
		t.Errorf("second newest should start at 10:00, got %v", all.Appointments[0].StartTime)
	}

	clamped, err := f.svc.List(t.Context(), f.userActor(), ListQuery{Limit: 10_000})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if clamped.PageSize != DefaultLimits.Max {
		t.Errorf("page_size = %d, want clamp to %d", clamped.PageSize, DefaultLimits.Max)
	}

	from, to := at(9, 0), at(11, 0)
	windowed, err := f.svc.List(t.Context(), f.userActor(), ListQuery{From: &from, To: &to})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if windowed.Total != 1 {
		t.Errorf("windowed total = %d, want 1", windowed.Total)
	}

	_, err = f.svc.List(t.Context(), f.userActor(), ListQuery{Statuses: []models.AppointmentStatus{"lost"}})
	wantKind(t, err, apperr.KindInvalidStatus)
}
