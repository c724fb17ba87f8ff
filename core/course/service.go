package course

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/sathyagomani/academy/core"
	"github.com/sathyagomani/academy/core/user"
)

var (
	// errors
	ErrNotFound     = errors.New("course not found")
	ErrBadSignature = errors.New("invalid payment signature")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, crs Course) (Course, error)
		GetCourseByID(ctx context.Context, id string) (Course, error)
		QueryAllCourses(ctx context.Context) ([]Course, error)
		DeleteCoursesByID(ctx context.Context, ids ...string) error
		CreateLesson(ctx context.Context, lsn Lesson) (Lesson, error)
		// QueryLessonsByCourse returns the course's lessons ordered by Order.
		QueryLessonsByCourse(ctx context.Context, courseID string) ([]Lesson, error)
		DeleteLessonsByID(ctx context.Context, ids ...string) error
	}

	Service interface {
		Create(ctx context.Context, nc NewCourse) (Course, error)
		GetByID(ctx context.Context, id string) (Course, error)
		QueryAll(ctx context.Context) ([]Course, error)
		Delete(ctx context.Context, ids ...string) error
		AddLesson(ctx context.Context, courseID string, nl NewLesson) (Lesson, error)
		// ContentFor lists a course's lessons for a student, blanking the URLs
		// of paid lessons when the student's access window is not active.
		ContentFor(ctx context.Context, courseID string, student user.User, now time.Time) ([]Lesson, error)
		// Enroll verifies a payment callback and opens (or renews) the
		// student's subscription window for the course.
		Enroll(ctx context.Context, studentID string, pv PaymentVerification) (user.Subscription, error)
	}

	service struct {
		repo   Repository
		usrSvc user.Service
		conf   *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, conf *core.Config) Service {
	return &service{
		repo:   repo,
		usrSvc: usrSvc,
		conf:   conf,
	}
}

func (svc *service) Create(ctx context.Context, nc NewCourse) (Course, error) {
	now := time.Now().UTC()
	crs := Course{
		ID:             uuid.New().String(),
		Title:          nc.Title,
		Description:    nc.Description,
		Category:       nc.Category,
		Price:          nc.Price,
		CreatedBy:      nc.CreatedBy,
		Thumbnail:      nc.Thumbnail,
		IsLive:         nc.IsLive,
		DurationInDays: nc.DurationInDays,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return svc.repo.CreateCourse(ctx, crs)
}

func (svc *service) GetByID(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourseByID(ctx, id)
}

func (svc *service) QueryAll(ctx context.Context) ([]Course, error) {
	return svc.repo.QueryAllCourses(ctx)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteCoursesByID(ctx, ids...)
}

func (svc *service) AddLesson(ctx context.Context, courseID string, nl NewLesson) (Lesson, error) {
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return Lesson{}, err
	}
	now := time.Now().UTC()
	lsn := Lesson{
		ID:        uuid.New().String(),
		CourseID:  courseID,
		Title:     nl.Title,
		Type:      nl.Type,
		URL:       nl.URL,
		IsFree:    nl.IsFree,
		Order:     nl.Order,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateLesson(ctx, lsn)
}

func (svc *service) ContentFor(ctx context.Context, courseID string, student user.User, now time.Time) ([]Lesson, error) {
	if _, err := svc.repo.GetCourseByID(ctx, courseID); err != nil {
		return nil, err
	}
	lessons, err := svc.repo.QueryLessonsByCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if student.HasCourseAccess(courseID, now) {
		return lessons, nil
	}
	for i, lsn := range lessons {
		if !lsn.IsFree {
			lsn.URL = ""
			lessons[i] = lsn
		}
	}
	return lessons, nil
}

func (svc *service) Enroll(ctx context.Context, studentID string, pv PaymentVerification) (user.Subscription, error) {
	if !VerifySignature(pv.OrderID, pv.PaymentID, pv.Signature, svc.conf.PaymentKeySecret) {
		return user.Subscription{}, core.NewValidationError(ErrBadSignature,
			core.FieldError{Field: "signature", Error: ErrBadSignature.Error()})
	}

	crs, err := svc.repo.GetCourseByID(ctx, pv.CourseID)
	if err != nil {
		return user.Subscription{}, err
	}
	days := crs.DurationInDays
	if days <= 0 {
		days = svc.conf.DefaultSubscriptionDays
	}

	_, sub, err := svc.usrSvc.Subscribe(ctx, studentID, crs.ID, days)
	if err != nil {
		return user.Subscription{}, errors.Wrap(err, "opening subscription")
	}
	return sub, nil
}
