package meeting

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/sathyagomani/academy/core"
	"github.com/sathyagomani/academy/core/user"
)

var (
	// errors
	ErrNotFound        = errors.New("meeting not found")
	ErrNoValidStudents = errors.New("no valid students")

	errZeroLengthMeeting = errors.New("end time must differ from start time")
)

type (
	Repository interface {
		CreateMeeting(ctx context.Context, mtg Meeting) (Meeting, error)
		GetMeetingByID(ctx context.Context, id string) (Meeting, error)
		QueryAllMeetings(ctx context.Context) ([]Meeting, error)
		// QueryMeetingsByStudent returns meetings whose roster contains the
		// student, ordered by date then start time.
		QueryMeetingsByStudent(ctx context.Context, studentID string) ([]Meeting, error)
		UpdateMeeting(ctx context.Context, mtg Meeting) (Meeting, error)
		DeleteMeetingsByID(ctx context.Context, ids ...string) error
		// DeleteMeetingsDue bulk-deletes meetings whose DeleteAt is at or
		// before `now` and reports how many went.
		DeleteMeetingsDue(ctx context.Context, now time.Time) (int, error)
	}

	Service interface {
		Create(ctx context.Context, nm NewMeeting) (Meeting, error)
		GetByID(ctx context.Context, id string) (Meeting, error)
		QueryAll(ctx context.Context) ([]Meeting, error)
		QueryForStudent(ctx context.Context, studentID string) ([]Meeting, error)
		Reschedule(ctx context.Context, id string, rm RescheduleMeeting) (Meeting, []DeliveryResult, error)
		Delete(ctx context.Context, id string) ([]DeliveryResult, error)
		Allocate(ctx context.Context, id string, studentIDs []string) (Meeting, []DeliveryResult, error)
		Remove(ctx context.Context, id string, studentIDs []string) (Meeting, []DeliveryResult, error)
	}

	service struct {
		repo    Repository
		usrSvc  user.Service
		mailSvc core.EmailService
		logger  core.Logger
		conf    *core.Config
		locks   keyedMutex
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, mailSvc core.EmailService, logger core.Logger, conf *core.Config) Service {
	return &service{
		repo:    repo,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
		logger:  logger,
		conf:    conf,
		locks:   keyedMutex{locks: make(map[string]*lockEntry)},
	}
}

func (svc *service) Create(ctx context.Context, nm NewMeeting) (Meeting, error) {
	date, err := time.ParseInLocation(dateLayout, nm.Date, time.UTC)
	if err != nil {
		return Meeting{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: "invalid date"})
	}

	now := time.Now().UTC()
	mtg := Meeting{
		ID:        uuid.New().String(),
		ClassName: nm.ClassName,
		Date:      date,
		StartTime: nm.StartTime,
		EndTime:   nm.EndTime,
		Students:  []Student{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = mtg.refreshSchedule(); err != nil {
		return Meeting{}, err
	}
	return svc.repo.CreateMeeting(ctx, mtg)
}

func (svc *service) GetByID(ctx context.Context, id string) (Meeting, error) {
	return svc.repo.GetMeetingByID(ctx, id)
}

func (svc *service) QueryAll(ctx context.Context) ([]Meeting, error) {
	return svc.repo.QueryAllMeetings(ctx)
}

func (svc *service) QueryForStudent(ctx context.Context, studentID string) ([]Meeting, error) {
	return svc.repo.QueryMeetingsByStudent(ctx, studentID)
}

// Reschedule merges the partial update, recomputes duration and the purge
// deadline together, persists, then fans out update notices to the roster.
// The mutation is durable before any notification is attempted and is never
// rolled back on delivery failure.
func (svc *service) Reschedule(ctx context.Context, id string, rm RescheduleMeeting) (Meeting, []DeliveryResult, error) {
	defer svc.locks.lock(id)()

	mtg, err := svc.repo.GetMeetingByID(ctx, id)
	if err != nil {
		return Meeting{}, nil, err
	}

	if rm.Date != "" {
		date, err := time.ParseInLocation(dateLayout, rm.Date, time.UTC)
		if err != nil {
			return Meeting{}, nil, core.NewValidationError(err, core.FieldError{Field: "date", Error: "invalid date"})
		}
		mtg.Date = date
	}
	if rm.StartTime != "" {
		mtg.StartTime = rm.StartTime
	}
	if rm.EndTime != "" {
		mtg.EndTime = rm.EndTime
	}
	if err = mtg.refreshSchedule(); err != nil {
		return Meeting{}, nil, err
	}
	mtg.UpdatedAt = time.Now().UTC()

	mtg, err = svc.repo.UpdateMeeting(ctx, mtg)
	if err != nil {
		return Meeting{}, nil, err
	}

	results := svc.notifyRoster(ctx, mtg, mtg.StudentIDs(),
		fmt.Sprintf("Rescheduled: %s", mtg.ClassName), "meeting-rescheduled")
	return mtg, results, nil
}

// Delete notifies the roster (best-effort) then removes the record. A bounce
// for one student blocks neither the other notices nor the deletion.
func (svc *service) Delete(ctx context.Context, id string) ([]DeliveryResult, error) {
	defer svc.locks.lock(id)()

	mtg, err := svc.repo.GetMeetingByID(ctx, id)
	if err != nil {
		return nil, err
	}

	results := svc.notifyRoster(ctx, mtg, mtg.StudentIDs(),
		fmt.Sprintf("Meeting Cancelled: %s", mtg.ClassName), "meeting-cancelled")

	if err = svc.repo.DeleteMeetingsByID(ctx, id); err != nil {
		return results, err
	}
	return results, nil
}

// Allocate adds each referenced student not already on the roster, persists
// the mutation, then attempts an invitation per newcomer. A student holding a
// pending one-time credential gets it in the invitation and the credential is
// cleared once the send succeeds, so it is disclosed by email exactly once.
func (svc *service) Allocate(ctx context.Context, id string, studentIDs []string) (Meeting, []DeliveryResult, error) {
	defer svc.locks.lock(id)()

	mtg, err := svc.repo.GetMeetingByID(ctx, id)
	if err != nil {
		return Meeting{}, nil, err
	}

	students, err := svc.usrSvc.GetStudents(ctx, studentIDs...)
	if err != nil {
		return Meeting{}, nil, errors.Wrap(err, "fetching students")
	}
	if len(students) == 0 {
		return Meeting{}, nil, core.NewValidationError(ErrNoValidStudents,
			core.FieldError{Field: "student_ids", Error: ErrNoValidStudents.Error()})
	}

	results := make([]DeliveryResult, 0, len(students))
	added := make([]user.User, 0, len(students))
	for _, st := range students {
		if mtg.HasStudent(st.ID) {
			results = append(results, DeliveryResult{
				StudentID: st.ID, Email: st.Email, Status: DeliveryAlreadyAllocated,
			})
			continue
		}
		mtg.Students = append(mtg.Students, Student{StudentID: st.ID, Status: AttendanceOffline})
		added = append(added, st)
	}

	if len(added) > 0 {
		mtg.UpdatedAt = time.Now().UTC()
		if mtg, err = svc.repo.UpdateMeeting(ctx, mtg); err != nil {
			return Meeting{}, nil, err
		}
	}

	for _, st := range added {
		results = append(results, svc.sendInvitation(ctx, mtg, st))
	}
	return mtg, results, nil
}

// Remove filters the roster, persists, and sends best-effort removal notices
// to the students taken out.
func (svc *service) Remove(ctx context.Context, id string, studentIDs []string) (Meeting, []DeliveryResult, error) {
	defer svc.locks.lock(id)()

	mtg, err := svc.repo.GetMeetingByID(ctx, id)
	if err != nil {
		return Meeting{}, nil, err
	}

	selected := make(map[string]bool, len(studentIDs))
	for _, sid := range studentIDs {
		selected[sid] = true
	}

	kept := mtg.Students[:0]
	removed := make([]string, 0, len(studentIDs))
	for _, st := range mtg.Students {
		if selected[st.StudentID] {
			removed = append(removed, st.StudentID)
		} else {
			kept = append(kept, st)
		}
	}
	mtg.Students = kept

	if len(removed) > 0 {
		mtg.UpdatedAt = time.Now().UTC()
		if mtg, err = svc.repo.UpdateMeeting(ctx, mtg); err != nil {
			return Meeting{}, nil, err
		}
	}

	results := svc.notifyRoster(ctx, mtg, removed,
		fmt.Sprintf("Removed from Meeting: %s", mtg.ClassName), "meeting-removed")
	return mtg, results, nil
}

// sendInvitation delivers the invite for one newly allocated student. A
// pending one-time credential rides along and is cleared after a successful
// send; clearing failures are logged, not surfaced, so the worst case is a
// second disclosure to the same mailbox rather than a lost credential.
func (svc *service) sendInvitation(ctx context.Context, mtg Meeting, st user.User) DeliveryResult {
	res := DeliveryResult{StudentID: st.ID, Email: st.Email}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: st.FullName(), Address: st.Email}},
		Subject:      fmt.Sprintf("Invitation: %s", mtg.ClassName),
		TemplateName: "meeting-invite",
		TemplateData: meetingMailData{Student: st, Meeting: mtg, DateStr: mtg.Date.Format("Mon Jan 2 2006"), Password: st.OneTimePassword},
	}
	if err := svc.mailSvc.Send(msg); err != nil {
		res.Status = DeliveryFailed
		res.Error = err.Error()
		return res
	}

	if st.OneTimePassword != "" {
		if err := svc.usrSvc.ClearOneTimePassword(ctx, st.ID); err != nil {
			svc.logger.Error(fmt.Sprintf("clearing one-time password for %s: %v", st.ID, err), err)
		}
	}
	res.Status = DeliverySent
	return res
}

// notifyRoster sends one notice per listed student and collects the outcomes.
func (svc *service) notifyRoster(ctx context.Context, mtg Meeting, studentIDs []string, subject, templateName string) []DeliveryResult {
	if len(studentIDs) == 0 {
		return []DeliveryResult{}
	}

	students, err := svc.usrSvc.GetStudents(ctx, studentIDs...)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("fetching students for notification: %v", err), err)
		return []DeliveryResult{}
	}

	results := make([]DeliveryResult, 0, len(students))
	for _, st := range students {
		res := DeliveryResult{StudentID: st.ID, Email: st.Email, Status: DeliverySent}
		msg := &core.EmailMessage{
			To:           []mail.Address{{Name: st.FullName(), Address: st.Email}},
			Subject:      subject,
			TemplateName: templateName,
			TemplateData: meetingMailData{Student: st, Meeting: mtg, DateStr: mtg.Date.Format("Mon Jan 2 2006")},
		}
		if err := svc.mailSvc.Send(msg); err != nil {
			res.Status = DeliveryFailed
			res.Error = err.Error()
		}
		results = append(results, res)
	}
	return results
}

type meetingMailData struct {
	Student  user.User
	Meeting  Meeting
	DateStr  string
	Password string
}
