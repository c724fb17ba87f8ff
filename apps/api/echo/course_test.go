package echoapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/sathyagomani/academy/core/course"
	"github.com/sathyagomani/academy/core/user"
)

func createTestCourse(t *testing.T, env testEnv, token string) course.Course {
	t.Helper()
	body := marshallObj(t, course.NewCourse{
		Title:          "Algebra",
		Description:    "An introduction to algebra",
		Category:       "mathematics",
		Price:          499,
		CreatedBy:      "Prof. Rao",
		DurationInDays: 30,
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/courses", token, body)
	env.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var crs course.Course
	if err := json.Unmarshal(rec.Body.Bytes(), &crs); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	return crs
}

func addTestLesson(t *testing.T, env testEnv, token, courseID string, nl course.NewLesson) {
	t.Helper()
	req, rec := newAuthRequest(http.MethodPost, "/v1/courses/"+courseID+"/lessons", token, marshallObj(t, nl))
	env.server.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
}

func paymentSignature(orderID, paymentID, keySecret string) string {
	h := hmac.New(sha256.New, []byte(keySecret))
	h.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(h.Sum(nil))
}

func Test_courseApi_catalog(t *testing.T) {
	env := setup(t)

	admin := createTestAdmin(t, env.usrRepo, "admin@test.cd", "adminpass1")
	student := createTestStudent(t, env.usrSvc, "Asha", "asha@test.cd")

	t.Run("student cannot create", func(t *testing.T) {
		body := marshallObj(t, course.NewCourse{
			Title: "Rogue", Description: "x", Category: "x", CreatedBy: "x",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses", getToken(t, student), body)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		}, rec)
	})

	crs := createTestCourse(t, env, getToken(t, admin))

	tests := []httpTest{
		{
			name: "no token", path: "/v1/courses", wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "catalog visible to students", path: "/v1/courses", token: getToken(t, student),
			wantCode: http.StatusOK, wantData: marshallObj(t, []course.Course{crs}),
		},
		{
			name: "course detail", path: "/v1/courses/" + crs.ID, token: getToken(t, student),
			wantCode: http.StatusOK, wantData: marshallObj(t, crs),
		},
		{
			name: "unknown course", path: "/v1/courses/ghost-id", token: getToken(t, student),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "course not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, tt.path, tt.token)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_courseApi_contentAndEnroll(t *testing.T) {
	env := setup(t)

	admin := createTestAdmin(t, env.usrRepo, "admin@test.cd", "adminpass1")
	student := createTestStudent(t, env.usrSvc, "Asha", "asha@test.cd")
	adminToken := getToken(t, admin)
	studentToken := getToken(t, student)

	crs := createTestCourse(t, env, adminToken)
	freeURL := "https://cdn.test.cd/algebra/00-intro.mp4"
	paidURL := "https://cdn.test.cd/algebra/01-linear.mp4"
	addTestLesson(t, env, adminToken, crs.ID, course.NewLesson{
		Title: "Introduction", Type: course.ContentVideo, URL: freeURL, IsFree: true, Order: 1,
	})
	addTestLesson(t, env, adminToken, crs.ID, course.NewLesson{
		Title: "Linear Equations", Type: course.ContentVideo, URL: paidURL, Order: 2,
	})

	contentPath := "/v1/courses/" + crs.ID + "/content"

	getContent := func(t *testing.T) []course.Lesson {
		t.Helper()
		req, rec := newAuthRequest(http.MethodGet, contentPath, studentToken)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var lessons []course.Lesson
		if err := json.Unmarshal(rec.Body.Bytes(), &lessons); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		return lessons
	}

	t.Run("admin forbidden", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, contentPath, adminToken)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		}, rec)
	})

	t.Run("paid URLs are blanked before enrollment", func(t *testing.T) {
		lessons := getContent(t)
		if len(lessons) != 2 {
			t.Fatalf("got %d lessons; want 2", len(lessons))
		}
		if lessons[0].URL != freeURL {
			t.Errorf("free lesson URL = %q; want %q", lessons[0].URL, freeURL)
		}
		if lessons[1].URL != "" {
			t.Errorf("paid lesson URL = %q; want blanked", lessons[1].URL)
		}
	})

	t.Run("enrollment rejects a forged signature", func(t *testing.T) {
		body := marshallObj(t, course.PaymentVerification{
			OrderID: "order_1", PaymentID: "pay_1", Signature: "deadbeef", CourseID: crs.ID,
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/enroll", studentToken, body)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"signature": "invalid payment signature"}),
		}, rec)
	})

	t.Run("verified enrollment opens the window", func(t *testing.T) {
		body := marshallObj(t, course.PaymentVerification{
			OrderID:   "order_1",
			PaymentID: "pay_1",
			Signature: paymentSignature("order_1", "pay_1", env.conf.PaymentKeySecret),
			CourseID:  crs.ID,
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/courses/enroll", studentToken, body)
		env.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var sub user.Subscription
		if err := json.Unmarshal(rec.Body.Bytes(), &sub); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if sub.CourseID != crs.ID {
			t.Errorf("CourseID = %s; want %s", sub.CourseID, crs.ID)
		}
		if want := sub.SubscribedAt.AddDate(0, 0, crs.DurationInDays); !sub.ExpiresAt.Equal(want) {
			t.Errorf("ExpiresAt = %v; want %v", sub.ExpiresAt, want)
		}
	})

	t.Run("full URLs after enrollment", func(t *testing.T) {
		lessons := getContent(t)
		if lessons[1].URL != paidURL {
			t.Errorf("paid lesson URL = %q; want %q", lessons[1].URL, paidURL)
		}
	})
}
