package course

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/sathyagomani/academy/core"
)

// Lesson content types
const (
	ContentVideo = "video"
	ContentPDF   = "pdf"
	ContentImage = "image"
	ContentText  = "text"
)

type (
	Course struct {
		ID          string  `json:"id" db:"id"`
		Title       string  `json:"title" db:"title"`
		Description string  `json:"description" db:"description"`
		Category    string  `json:"category" db:"category"`
		Price       float64 `json:"price" db:"price"`
		CreatedBy   string  `json:"created_by" db:"created_by"`
		Thumbnail   string  `json:"thumbnail" db:"thumbnail"`
		IsLive      bool    `json:"is_live" db:"is_live"`

		// DurationInDays is the subscription window granted on enrollment;
		// 0 falls back to the configured default.
		DurationInDays int `json:"duration_in_days" db:"duration_in_days"`

		CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
		UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // UTC
	}

	// Lesson is a single piece of course content. Non-free lesson URLs are
	// only exposed to students whose course access is active.
	Lesson struct {
		ID       string `json:"id" db:"id"`
		CourseID string `json:"course_id" db:"course_id"`
		Title    string `json:"title" db:"title"`
		Type     string `json:"type" db:"type"`
		URL      string `json:"url,omitempty" db:"url"`
		IsFree   bool   `json:"is_free" db:"is_free"`
		Order    int    `json:"order" db:"ord"`

		CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
		UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // UTC
	}
)

// NewCourse contains information needed to add a course to the catalog.
type NewCourse struct {
	Title          string  `json:"title" validate:"required"`
	Description    string  `json:"description" validate:"required"`
	Category       string  `json:"category" validate:"required"`
	Price          float64 `json:"price" validate:"gte=0"`
	CreatedBy      string  `json:"created_by" validate:"required"`
	Thumbnail      string  `json:"thumbnail"`
	IsLive         bool    `json:"is_live"`
	DurationInDays int     `json:"duration_in_days" validate:"gte=0"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	nc.Category = core.CleanString(nc.Category)
	nc.CreatedBy = core.CleanString(nc.CreatedBy)
	return validate.Struct(nc)
}

// NewLesson contains information needed to attach content to a course.
type NewLesson struct {
	Title  string `json:"title" validate:"required"`
	Type   string `json:"type" validate:"required,oneof=video pdf image text"`
	URL    string `json:"url" validate:"required"`
	IsFree bool   `json:"is_free"`
	Order  int    `json:"order" validate:"gte=0"`
}

func (nl *NewLesson) Validate(validate *validator.Validate) error {
	nl.Title = core.CleanString(nl.Title)
	nl.URL = core.CleanString(nl.URL)
	return validate.Struct(nl)
}

// PaymentVerification carries the gateway callback fields for a one-time
// course purchase. The signature covers "orderID|paymentID".
type PaymentVerification struct {
	OrderID   string `json:"order_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
	Signature string `json:"signature" validate:"required"`
	CourseID  string `json:"course_id" validate:"required,uuid4"`
}

func (pv *PaymentVerification) Validate(validate *validator.Validate) error {
	return validate.Struct(pv)
}
