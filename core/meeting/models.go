package meeting

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sathyagomani/academy/core"
)

// Per-student attendance status
const (
	AttendanceOnline  = "online"
	AttendanceOffline = "offline"
)

// Meeting status, derived from the clock at read time
const (
	StatusUpcoming  = "Upcoming"
	StatusOngoing   = "Ongoing"
	StatusCompleted = "Completed"
)

// deletionGrace is how long past the end of a meeting the record survives
// before the sweeper may purge it.
const deletionGrace = time.Minute

const dateLayout = "2006-01-02"

type (
	// Student is a roster entry: a reference to a student User plus their
	// attendance status. Uniqueness by StudentID is enforced at allocation time.
	Student struct {
		StudentID string `json:"student_id" db:"student_id"`
		Status    string `json:"status" db:"status"`
	}

	Meeting struct {
		ID        string    `json:"id" db:"id"`
		ClassName string    `json:"class_name" db:"class_name"`
		Date      time.Time `json:"date" db:"date"`             // calendar date, midnight UTC
		StartTime string    `json:"start_time" db:"start_time"` // canonical HH:MM
		EndTime   string    `json:"end_time" db:"end_time"`     // canonical HH:MM
		Duration  int       `json:"duration" db:"duration"`     // minutes, derived, capped at MaxDuration
		Students  []Student `json:"students"`

		// DeleteAt is the purge deadline: end of the session plus a minute of
		// grace. Always derived from Date+EndTime, never client-settable.
		DeleteAt time.Time `json:"delete_at" db:"delete_at"`

		CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
		UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // UTC
	}
)

func (m *Meeting) HasStudent(id string) bool {
	for _, s := range m.Students {
		if s.StudentID == id {
			return true
		}
	}
	return false
}

func (m *Meeting) StudentIDs() []string {
	ids := make([]string, 0, len(m.Students))
	for _, s := range m.Students {
		ids = append(ids, s.StudentID)
	}
	return ids
}

// Window returns the session's start and end instants. An end time strictly
// before the start time rolls over to the next day; an equal pair is a
// zero-length session, not a day-long one.
func (m *Meeting) Window() (start, end time.Time, err error) {
	st, err := ParseTimeOfDay(m.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	et, err := ParseTimeOfDay(m.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	day := time.Date(m.Date.Year(), m.Date.Month(), m.Date.Day(), 0, 0, 0, 0, time.UTC)
	start = day.Add(time.Duration(st.Minutes()) * time.Minute)
	end = day.Add(time.Duration(et.Minutes()) * time.Minute)
	if end.Before(start) {
		end = end.Add(24 * time.Hour)
	}
	return start, end, nil
}

// Status derives the lifecycle phase from the clock; it is never stored.
func (m *Meeting) Status(now time.Time) string {
	start, end, err := m.Window()
	if err != nil {
		return StatusUpcoming
	}
	switch {
	case now.Before(start):
		return StatusUpcoming
	case now.Before(end):
		return StatusOngoing
	default:
		return StatusCompleted
	}
}

// refreshSchedule recomputes Duration and DeleteAt from Date, StartTime and
// EndTime. Called on every create and reschedule so the two never drift apart.
func (m *Meeting) refreshSchedule() error {
	st, err := ParseTimeOfDay(m.StartTime)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "start_time", Error: err.Error()})
	}
	et, err := ParseTimeOfDay(m.EndTime)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "end_time", Error: err.Error()})
	}
	if st == et {
		return core.NewValidationError(errZeroLengthMeeting,
			core.FieldError{Field: "end_time", Error: errZeroLengthMeeting.Error()})
	}
	m.Duration = Duration(st, et)

	_, end, err := m.Window()
	if err != nil {
		return err
	}
	m.DeleteAt = end.Add(deletionGrace)
	return nil
}

// NewMeeting contains information needed to schedule a meeting.
type NewMeeting struct {
	ClassName string `json:"class_name" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,timeofday"`
	EndTime   string `json:"end_time" validate:"required,timeofday"`
}

func (nm *NewMeeting) Validate(validate *validator.Validate) error {
	nm.ClassName = core.CleanString(nm.ClassName)
	nm.Date = core.CleanString(nm.Date)
	nm.StartTime = core.CleanString(nm.StartTime)
	nm.EndTime = core.CleanString(nm.EndTime)
	return validate.Struct(nm)
}

// RescheduleMeeting is a partial update; empty fields keep their current value.
type RescheduleMeeting struct {
	Date      string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"omitempty,timeofday"`
	EndTime   string `json:"end_time" validate:"omitempty,timeofday"`
}

func (rm *RescheduleMeeting) Validate(validate *validator.Validate) error {
	rm.Date = core.CleanString(rm.Date)
	rm.StartTime = core.CleanString(rm.StartTime)
	rm.EndTime = core.CleanString(rm.EndTime)
	return validate.Struct(rm)
}

// StudentSelection carries the roster mutation payload for allocate/remove.
type StudentSelection struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,uuid4"`
}

func (ss *StudentSelection) Validate(validate *validator.Validate) error {
	return validate.Struct(ss)
}

// Delivery manifest statuses
const (
	DeliverySent             = "sent"
	DeliveryAlreadyAllocated = "already allocated"
	DeliveryFailed           = "failed"
)

// DeliveryResult records the notification outcome for one student. Failures
// are collected, never thrown: a student's bounce must not abort the batch.
type DeliveryResult struct {
	StudentID string `json:"student_id"`
	Email     string `json:"email"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}
