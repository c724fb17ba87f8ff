package course_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/sathyagomani/academy/core"
	"github.com/sathyagomani/academy/core/course"
	"github.com/sathyagomani/academy/core/user"
	emailsvc "github.com/sathyagomani/academy/services/email"
	inmemdb "github.com/sathyagomani/academy/storage/database/inmem"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

type testDeps struct {
	svc     course.Service
	usrRepo user.Repository
	usrSvc  user.Service
	conf    *core.Config
}

func setup(t *testing.T) testDeps {
	t.Helper()

	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	usrRepo := inmemdb.NewUserRepository(db)
	crsRepo := inmemdb.NewCourseRepository(db)

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewServiceMock(usrRepo, mailSvc, conf)

	core.ParseEmailTemplates(conf, nopLogger{})
	emailsvc.ClearSentMessages()

	return testDeps{
		svc:     course.NewService(crsRepo, usrSvc, conf),
		usrRepo: usrRepo,
		usrSvc:  usrSvc,
		conf:    conf,
	}
}

func createCourse(t *testing.T, svc course.Service, title string, durationInDays int) course.Course {
	t.Helper()
	crs, err := svc.Create(context.Background(), course.NewCourse{
		Title:          title,
		Description:    "An introduction to " + title,
		Category:       "mathematics",
		Price:          499,
		CreatedBy:      "Prof. Rao",
		DurationInDays: durationInDays,
	})
	if err != nil {
		t.Fatalf("createCourse() failed: %v", err)
	}
	return crs
}

func createStudent(t *testing.T, svc user.Service, email string) user.User {
	t.Helper()
	usr, err := svc.CreateStudent(context.Background(), user.NewStudent{
		FirstName: "Test",
		LastName:  "Student",
		Email:     email,
	})
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return usr
}

func sign(orderID, paymentID, keySecret string) string {
	h := hmac.New(sha256.New, []byte(keySecret))
	h.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(h.Sum(nil))
}

func TestServiceAddLesson(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	crs := createCourse(t, deps.svc, "Algebra", 30)

	lsn, err := deps.svc.AddLesson(ctx, crs.ID, course.NewLesson{
		Title: "Linear Equations",
		Type:  course.ContentVideo,
		URL:   "https://cdn.test.cd/algebra/01.mp4",
		Order: 1,
	})
	if err != nil {
		t.Fatalf("AddLesson() failed: %v", err)
	}
	if lsn.CourseID != crs.ID {
		t.Errorf("CourseID = %s; want %s", lsn.CourseID, crs.ID)
	}

	_, err = deps.svc.AddLesson(ctx, "ghost-id", course.NewLesson{
		Title: "Orphan",
		Type:  course.ContentText,
		URL:   "https://cdn.test.cd/orphan.txt",
	})
	if errors.Cause(err) != course.ErrNotFound {
		t.Errorf("AddLesson() error = %v; want ErrNotFound", err)
	}
}

func TestServiceContentFor(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()
	now := time.Now().UTC()

	crs := createCourse(t, deps.svc, "Algebra", 30)
	freeURL := "https://cdn.test.cd/algebra/00-intro.mp4"
	paidURL := "https://cdn.test.cd/algebra/01-linear.mp4"

	if _, err := deps.svc.AddLesson(ctx, crs.ID, course.NewLesson{
		Title: "Linear Equations", Type: course.ContentVideo, URL: paidURL, Order: 2,
	}); err != nil {
		t.Fatalf("AddLesson() failed: %v", err)
	}
	if _, err := deps.svc.AddLesson(ctx, crs.ID, course.NewLesson{
		Title: "Introduction", Type: course.ContentVideo, URL: freeURL, IsFree: true, Order: 1,
	}); err != nil {
		t.Fatalf("AddLesson() failed: %v", err)
	}

	student := createStudent(t, deps.usrSvc, "asha@test.cd")

	t.Run("no subscription blanks paid URLs", func(t *testing.T) {
		lessons, err := deps.svc.ContentFor(ctx, crs.ID, student, now)
		if err != nil {
			t.Fatalf("ContentFor() failed: %v", err)
		}
		if len(lessons) != 2 {
			t.Fatalf("got %d lessons; want 2", len(lessons))
		}
		// ordered by lesson order
		if lessons[0].Title != "Introduction" || lessons[1].Title != "Linear Equations" {
			t.Errorf("lesson order = [%s, %s]", lessons[0].Title, lessons[1].Title)
		}
		if lessons[0].URL != freeURL {
			t.Errorf("free lesson URL = %q; want %q", lessons[0].URL, freeURL)
		}
		if lessons[1].URL != "" {
			t.Errorf("paid lesson URL = %q; want blanked", lessons[1].URL)
		}
	})

	if _, _, err := deps.usrSvc.Subscribe(ctx, student.ID, crs.ID, 30); err != nil {
		t.Fatalf("Subscribe() failed: %v", err)
	}
	subscribed, err := deps.usrRepo.GetUserByID(ctx, student.ID)
	if err != nil {
		t.Fatalf("GetUserByID() failed: %v", err)
	}

	t.Run("active subscription exposes everything", func(t *testing.T) {
		lessons, err := deps.svc.ContentFor(ctx, crs.ID, subscribed, now)
		if err != nil {
			t.Fatalf("ContentFor() failed: %v", err)
		}
		if lessons[1].URL != paidURL {
			t.Errorf("paid lesson URL = %q; want %q", lessons[1].URL, paidURL)
		}
	})

	t.Run("expired subscription blanks paid URLs again", func(t *testing.T) {
		sub, ok := subscribed.SubscriptionFor(crs.ID)
		if !ok {
			t.Fatal("expected a subscription entry")
		}
		// access is gone the instant the expiry is no longer in the future
		lessons, err := deps.svc.ContentFor(ctx, crs.ID, subscribed, sub.ExpiresAt)
		if err != nil {
			t.Fatalf("ContentFor() failed: %v", err)
		}
		if lessons[1].URL != "" {
			t.Errorf("paid lesson URL = %q; want blanked", lessons[1].URL)
		}
	})

	t.Run("unknown course", func(t *testing.T) {
		_, err := deps.svc.ContentFor(ctx, "ghost-id", student, now)
		if errors.Cause(err) != course.ErrNotFound {
			t.Errorf("ContentFor() error = %v; want ErrNotFound", err)
		}
	})
}

func TestServiceEnroll(t *testing.T) {
	deps := setup(t)
	ctx := context.Background()

	crs := createCourse(t, deps.svc, "Algebra", 30)
	student := createStudent(t, deps.usrSvc, "asha@test.cd")

	t.Run("bad signature", func(t *testing.T) {
		_, err := deps.svc.Enroll(ctx, student.ID, course.PaymentVerification{
			OrderID:   "order_1",
			PaymentID: "pay_1",
			Signature: "deadbeef",
			CourseID:  crs.ID,
		})
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("Enroll() error = %v; want ValidationError", err)
		}
	})

	t.Run("unknown course", func(t *testing.T) {
		_, err := deps.svc.Enroll(ctx, student.ID, course.PaymentVerification{
			OrderID:   "order_1",
			PaymentID: "pay_1",
			Signature: sign("order_1", "pay_1", deps.conf.PaymentKeySecret),
			CourseID:  "ghost-id",
		})
		if errors.Cause(err) != course.ErrNotFound {
			t.Errorf("Enroll() error = %v; want ErrNotFound", err)
		}
	})

	var firstExpiry time.Time

	t.Run("verified payment opens the window", func(t *testing.T) {
		sub, err := deps.svc.Enroll(ctx, student.ID, course.PaymentVerification{
			OrderID:   "order_1",
			PaymentID: "pay_1",
			Signature: sign("order_1", "pay_1", deps.conf.PaymentKeySecret),
			CourseID:  crs.ID,
		})
		if err != nil {
			t.Fatalf("Enroll() failed: %v", err)
		}
		if sub.CourseID != crs.ID {
			t.Errorf("CourseID = %s; want %s", sub.CourseID, crs.ID)
		}
		if want := sub.SubscribedAt.AddDate(0, 0, 30); !sub.ExpiresAt.Equal(want) {
			t.Errorf("ExpiresAt = %v; want %v", sub.ExpiresAt, want)
		}
		firstExpiry = sub.ExpiresAt
	})

	t.Run("renewal extends from the current expiry", func(t *testing.T) {
		sub, err := deps.svc.Enroll(ctx, student.ID, course.PaymentVerification{
			OrderID:   "order_2",
			PaymentID: "pay_2",
			Signature: sign("order_2", "pay_2", deps.conf.PaymentKeySecret),
			CourseID:  crs.ID,
		})
		if err != nil {
			t.Fatalf("Enroll() failed: %v", err)
		}
		if want := firstExpiry.AddDate(0, 0, 30); !sub.ExpiresAt.Equal(want) {
			t.Errorf("ExpiresAt = %v; want %v", sub.ExpiresAt, want)
		}
	})

	t.Run("zero course duration falls back to the default", func(t *testing.T) {
		openEnded := createCourse(t, deps.svc, "Geometry", 0)
		sub, err := deps.svc.Enroll(ctx, student.ID, course.PaymentVerification{
			OrderID:   "order_3",
			PaymentID: "pay_3",
			Signature: sign("order_3", "pay_3", deps.conf.PaymentKeySecret),
			CourseID:  openEnded.ID,
		})
		if err != nil {
			t.Fatalf("Enroll() failed: %v", err)
		}
		if want := sub.SubscribedAt.AddDate(0, 0, deps.conf.DefaultSubscriptionDays); !sub.ExpiresAt.Equal(want) {
			t.Errorf("ExpiresAt = %v; want %v", sub.ExpiresAt, want)
		}
	})
}
