package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/gosimple/slug"
)

// Ref is a backend reference that arrives either as a bare id or as a populated
// document carrying at least an _id and a display name.
type Ref struct {
	ID    string `json:"_id"`
	Name  string `json:"name,omitempty"`
	Title string `json:"title,omitempty"`
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*r = Ref{}
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = Ref{ID: id}
		return nil
	}
	type plain Ref
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Ref(p)
	return nil
}

func (r Ref) MarshalJSON() ([]byte, error) {
	type plain Ref
	return json.Marshal(plain(r))
}

type ContentType string

const (
	ContentVideo    ContentType = "video"
	ContentDocument ContentType = "document"
	ContentQuiz     ContentType = "quiz"
	ContentLink     ContentType = "link"
)

type ContentItem struct {
	ID          string      `json:"_id"`
	Title       string      `json:"title"`
	Type        ContentType `json:"type"`
	URL         string      `json:"url"`
	Description string      `json:"description,omitempty"`
	Duration    int         `json:"duration,omitempty"`
}

// Course is a read-only copy of the backend's course document.
type Course struct {
	ID          string        `json:"_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	Price       json.Number   `json:"price"`
	Faculty     Ref           `json:"faculty"`
	Thumbnail   string        `json:"thumbnail,omitempty"`
	Rating      float64       `json:"rating,omitempty"`
	Content     []ContentItem `json:"content,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Slug is the cosmetic URL segment for the course.
func (c Course) Slug() string {
	s := slug.Make(c.Title)
	if s == "" {
		return "course"
	}
	return s
}

// PriceMinor returns the price in minor units. Unparseable prices report ok=false.
func (c Course) PriceMinor() (int64, bool) {
	v, err := ToMinorUnits(c.Price)
	if err != nil {
		return 0, false
	}
	return v, true
}

// IsFree reports whether the course costs nothing. Free courses still go through
// the payment protocol.
func (c Course) IsFree() bool {
	v, ok := c.PriceMinor()
	return ok && v == 0
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Enrollment mirrors the backend record that grants content access.
type Enrollment struct {
	ID            string        `json:"_id"`
	Student       Ref           `json:"student"`
	Course        Ref           `json:"course"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	EnrolledAt    time.Time     `json:"enrolledAt"`
}

// Grants reports whether the record gives its student access to its course.
// Only a completed payment does.
func (e Enrollment) Grants() bool {
	return e.PaymentStatus == PaymentCompleted
}

type Notification struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

type RevenueRow struct {
	CourseID    string      `json:"courseId"`
	Title       string      `json:"title"`
	Enrollments int         `json:"enrollments"`
	Revenue     json.Number `json:"revenue"`
}

type RevenueReport struct {
	Rows  []RevenueRow `json:"courses"`
	Total json.Number  `json:"totalRevenue"`
}
