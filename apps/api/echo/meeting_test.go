package echoapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/sathyagomani/academy/core/meeting"
)

func createTestMeeting(t *testing.T, env testEnv, token, date, start, end string) MeetingResponse {
	t.Helper()
	body := marshallObj(t, meeting.NewMeeting{
		ClassName: "Algebra II",
		Date:      date,
		StartTime: start,
		EndTime:   end,
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/meetings", token, body)
	env.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	var res MeetingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("unmarshalling response: %v", err)
	}
	return res
}

func Test_meetingApi_create(t *testing.T) {
	env := setup(t)

	admin := createTestAdmin(t, env.usrRepo, "admin@test.cd", "adminpass1")
	student := createTestStudent(t, env.usrSvc, "Asha", "asha@test.cd")

	body := marshallObj(t, meeting.NewMeeting{
		ClassName: "Algebra II",
		Date:      "2030-05-01",
		StartTime: "14:00",
		EndTime:   "15:30",
	})

	tests := []httpTest{
		{
			name: "no token", body: body, wantCode: http.StatusUnauthorized,
			wantData: marshallObj(t, errMissingToken),
		},
		{
			name: "student forbidden", body: body, token: getToken(t, student),
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "12-hour time rejected", token: getToken(t, admin),
			body: marshallObj(t, meeting.NewMeeting{
				ClassName: "Algebra II", Date: "2030-05-01", StartTime: "2:30pm", EndTime: "15:30",
			}),
			wantCode: http.StatusBadRequest,
			wantData: marshallObj(t, map[string]string{"start_time": "must be a 24-hour time in HH:MM format"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/meetings", tt.token, tt.body)
			env.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("admin ok", func(t *testing.T) {
		res := createTestMeeting(t, env, getToken(t, admin), "2030-05-01", "14:00", "15:30")
		if res.Duration != 90 {
			t.Errorf("duration = %d; want 90", res.Duration)
		}
		if res.Status != meeting.StatusUpcoming {
			t.Errorf("status = %s; want %s", res.Status, meeting.StatusUpcoming)
		}
	})
}

func Test_meetingApi_allocate(t *testing.T) {
	env := setup(t)

	admin := createTestAdmin(t, env.usrRepo, "admin@test.cd", "adminpass1")
	asha := createTestStudent(t, env.usrSvc, "Asha", "asha@test.cd")
	ravi := createTestStudent(t, env.usrSvc, "Ravi", "ravi@test.cd")
	token := getToken(t, admin)

	mtg := createTestMeeting(t, env, token, "2030-05-01", "14:00", "15:30")
	path := "/v1/meetings/" + mtg.ID + "/allocate"

	t.Run("non-uuid ids rejected", func(t *testing.T) {
		body := marshallObj(t, meeting.StudentSelection{StudentIDs: []string{"not-a-uuid"}})
		req, rec := newAuthRequest(http.MethodPost, path, token, body)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %v; want %v", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("first allocation", func(t *testing.T) {
		body := marshallObj(t, meeting.StudentSelection{StudentIDs: []string{asha.ID, ravi.ID}})
		req, rec := newAuthRequest(http.MethodPost, path, token, body)
		env.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var res MeetingMutationResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(res.Meeting.Students) != 2 {
			t.Errorf("roster size = %d; want 2", len(res.Meeting.Students))
		}
		for _, d := range res.Deliveries {
			if d.Status != meeting.DeliverySent {
				t.Errorf("delivery for %s = %s; want %s", d.Email, d.Status, meeting.DeliverySent)
			}
		}
	})

	t.Run("repeat allocation reports duplicates", func(t *testing.T) {
		body := marshallObj(t, meeting.StudentSelection{StudentIDs: []string{asha.ID}})
		req, rec := newAuthRequest(http.MethodPost, path, token, body)
		env.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var res MeetingMutationResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(res.Deliveries) != 1 || res.Deliveries[0].Status != meeting.DeliveryAlreadyAllocated {
			t.Errorf("deliveries = %v; want 1 %q", res.Deliveries, meeting.DeliveryAlreadyAllocated)
		}
	})

	t.Run("remove", func(t *testing.T) {
		body := marshallObj(t, meeting.StudentSelection{StudentIDs: []string{ravi.ID}})
		req, rec := newAuthRequest(http.MethodPost, "/v1/meetings/"+mtg.ID+"/remove", token, body)
		env.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var res MeetingMutationResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(res.Meeting.Students) != 1 || res.Meeting.Students[0].StudentID != asha.ID {
			t.Errorf("roster = %v; want only %s", res.Meeting.Students, asha.ID)
		}
	})
}

func Test_meetingApi_queryMine(t *testing.T) {
	env := setup(t)

	admin := createTestAdmin(t, env.usrRepo, "admin@test.cd", "adminpass1")
	asha := createTestStudent(t, env.usrSvc, "Asha", "asha@test.cd")
	ravi := createTestStudent(t, env.usrSvc, "Ravi", "ravi@test.cd")
	adminToken := getToken(t, admin)

	mine := createTestMeeting(t, env, adminToken, "2030-05-01", "14:00", "15:30")
	other := createTestMeeting(t, env, adminToken, "2030-05-02", "09:00", "10:00")

	allocate := func(mtgID, studentID string) {
		body := marshallObj(t, meeting.StudentSelection{StudentIDs: []string{studentID}})
		req, rec := newAuthRequest(http.MethodPost, "/v1/meetings/"+mtgID+"/allocate", adminToken, body)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("allocate failed: %s", rec.Body.String())
		}
	}
	allocate(mine.ID, asha.ID)
	allocate(other.ID, ravi.ID)

	t.Run("admin forbidden", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/meetings/mine", adminToken)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusForbidden,
			wantData: marshallObj(t, httpErr{Error: "permission denied"}),
		}, rec)
	})

	t.Run("student sees only their own", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/meetings/mine", getToken(t, asha))
		env.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var res []MeetingResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if len(res) != 1 || res[0].ID != mine.ID {
			t.Errorf("meetings = %v; want only %s", res, mine.ID)
		}
	})
}

func Test_meetingApi_rescheduleAndDestroy(t *testing.T) {
	env := setup(t)

	admin := createTestAdmin(t, env.usrRepo, "admin@test.cd", "adminpass1")
	token := getToken(t, admin)
	mtg := createTestMeeting(t, env, token, "2030-05-01", "14:00", "15:30")

	t.Run("reschedule", func(t *testing.T) {
		body := marshallObj(t, meeting.RescheduleMeeting{EndTime: "16:00"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/meetings/"+mtg.ID, token, body)
		env.server.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var res MeetingMutationResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if res.Meeting.Duration != 120 {
			t.Errorf("duration = %d; want 120", res.Meeting.Duration)
		}
	})

	t.Run("destroy", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/meetings/"+mtg.ID, token)
		env.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %v; want %v: %s", rec.Code, http.StatusOK, rec.Body.String())
		}

		req, rec = newAuthRequest(http.MethodGet, "/v1/meetings/"+mtg.ID, token)
		env.server.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: "meeting not found"}),
		}, rec)
	})
}
