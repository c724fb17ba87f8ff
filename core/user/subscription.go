package user

import "time"

// Subscription is a student's access window to a single course.
// A user holds at most one entry per course; renewals update the entry in
// place instead of appending a duplicate.
type Subscription struct {
	CourseID     string    `json:"course_id"`
	SubscribedAt time.Time `json:"subscribed_at"` // UTC
	ExpiresAt    time.Time `json:"expires_at"`    // UTC
}

// Active reports whether the access window is still open at `now`.
func (s Subscription) Active(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

// SubscriptionFor returns the user's subscription entry for the given course, if any.
func (u *User) SubscriptionFor(courseID string) (Subscription, bool) {
	for _, sub := range u.Subscriptions {
		if sub.CourseID == courseID {
			return sub, true
		}
	}
	return Subscription{}, false
}

// HasCourseAccess reports whether the user's access to the course is active:
// an entry exists and its expiry is strictly in the future. No entry means no access.
func (u *User) HasCourseAccess(courseID string, now time.Time) bool {
	sub, ok := u.SubscriptionFor(courseID)
	return ok && sub.Active(now)
}

// Subscribe opens or extends the user's access window for a course by `days`.
// A live window is extended from its current expiry; an expired (or missing)
// one restarts from `now`.
func (u *User) Subscribe(courseID string, days int, now time.Time) Subscription {
	for i, sub := range u.Subscriptions {
		if sub.CourseID != courseID {
			continue
		}
		from := sub.ExpiresAt
		if !from.After(now) {
			from = now
		}
		sub.ExpiresAt = from.AddDate(0, 0, days)
		u.Subscriptions[i] = sub
		return sub
	}

	sub := Subscription{
		CourseID:     courseID,
		SubscribedAt: now,
		ExpiresAt:    now.AddDate(0, 0, days),
	}
	u.Subscriptions = append(u.Subscriptions, sub)
	return sub
}

// Unsubscribe drops the user's entry for a course (payment halted or cancelled).
func (u *User) Unsubscribe(courseID string) {
	subs := u.Subscriptions[:0]
	for _, sub := range u.Subscriptions {
		if sub.CourseID != courseID {
			subs = append(subs, sub)
		}
	}
	u.Subscriptions = subs
}
