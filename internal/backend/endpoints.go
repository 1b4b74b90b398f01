package backend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/SAP-F-2025/course-portal/internal/models"
)

// ===== AUTH =====

func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	var out models.AuthResponse
	in := map[string]string{"email": email, "password": password}
	if err := c.sendJSON(ctx, http.MethodPost, "/users/login", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	var out models.AuthResponse
	if err := c.sendJSON(ctx, http.MethodPost, "/users/register", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	out := listOf[models.User]{keys: []string{"users"}}
	if err := c.getJSON(ctx, "/users", &out); err != nil {
		return nil, err
	}
	return out.items, nil
}

// ===== COURSES =====

func (c *Client) ListCourses(ctx context.Context) ([]models.Course, error) {
	out := listOf[models.Course]{keys: []string{"courses"}}
	if err := c.getJSON(ctx, "/courses", &out); err != nil {
		return nil, err
	}
	return out.items, nil
}

func (c *Client) GetCourse(ctx context.Context, courseID string) (*models.Course, error) {
	out := oneOf[models.Course]{key: "course"}
	if err := c.getJSON(ctx, "/courses/"+url.PathEscape(courseID), &out); err != nil {
		return nil, err
	}
	return &out.item, nil
}

func (c *Client) ListFacultyCourses(ctx context.Context, facultyID string) ([]models.Course, error) {
	out := listOf[models.Course]{keys: []string{"courses"}}
	if err := c.getJSON(ctx, "/courses/faculty/"+url.PathEscape(facultyID), &out); err != nil {
		return nil, err
	}
	return out.items, nil
}

func (c *Client) CreateCourse(ctx context.Context, facultyID string, draft models.CourseDraft) (*models.Course, error) {
	in := struct {
		models.CourseDraft
		Faculty string `json:"faculty"`
	}{draft, facultyID}

	out := oneOf[models.Course]{key: "course"}
	if err := c.sendJSON(ctx, http.MethodPost, "/courses", in, &out); err != nil {
		return nil, err
	}
	return &out.item, nil
}

func (c *Client) UpdateCourse(ctx context.Context, courseID string, update models.CourseUpdate) (*models.Course, error) {
	out := oneOf[models.Course]{key: "course"}
	if err := c.sendJSON(ctx, http.MethodPut, "/courses/"+url.PathEscape(courseID), update, &out); err != nil {
		return nil, err
	}
	return &out.item, nil
}

func (c *Client) DeleteCourse(ctx context.Context, courseID string) error {
	return c.sendJSON(ctx, http.MethodDelete, "/courses/"+url.PathEscape(courseID), nil, nil)
}

// Upload is a file relayed from the browser to the backend.
type Upload struct {
	Filename string
	Content  io.Reader
}

// UploadContent relays a content draft, with an optional file, as multipart form data.
func (c *Client) UploadContent(ctx context.Context, courseID string, draft models.ContentDraft, file *Upload) (*models.Course, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := map[string]string{
		"title":       draft.Title,
		"type":        string(draft.Type),
		"description": draft.Description,
		"url":         draft.URL,
	}
	if draft.Duration > 0 {
		fields["duration"] = strconv.Itoa(draft.Duration)
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := writer.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write %s field: %w", k, err)
		}
	}

	if file != nil {
		fw, err := writer.CreateFormFile("file", file.Filename)
		if err != nil {
			return nil, fmt.Errorf("failed to create form file: %w", err)
		}
		if _, err := io.Copy(fw, file.Content); err != nil {
			return nil, fmt.Errorf("failed to copy file content: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	out := oneOf[models.Course]{key: "course"}
	path := "/courses/" + url.PathEscape(courseID) + "/content"
	if err := c.do(ctx, http.MethodPost, path, body, writer.FormDataContentType(), &out); err != nil {
		return nil, err
	}
	return &out.item, nil
}

// ===== PAYMENTS =====

func (c *Client) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.CreateOrderResponse, error) {
	var out models.CreateOrderResponse
	if err := c.sendJSON(ctx, http.MethodPost, "/payments/create-order", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) VerifyPayment(ctx context.Context, req models.PaymentVerification) (*models.VerifyPaymentResponse, error) {
	var out models.VerifyPaymentResponse
	if err := c.sendJSON(ctx, http.MethodPost, "/payments/verify-payment", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Revenue(ctx context.Context) (*models.RevenueReport, error) {
	out := oneOf[models.RevenueReport]{key: "report"}
	if err := c.getJSON(ctx, "/payments/revenue", &out); err != nil {
		return nil, err
	}
	return &out.item, nil
}

// ===== ENROLLMENTS =====

func (c *Client) StudentEnrollments(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	out := listOf[models.Enrollment]{keys: []string{"enrollments"}}
	if err := c.getJSON(ctx, "/enrollments/student/"+url.PathEscape(studentID), &out); err != nil {
		return nil, err
	}
	return out.items, nil
}

func (c *Client) CheckEnrollment(ctx context.Context, courseID, studentID string) (bool, error) {
	q := url.Values{}
	q.Set("courseId", courseID)
	q.Set("studentId", studentID)

	var out struct {
		IsEnrolled bool `json:"isEnrolled"`
	}
	if err := c.getJSON(ctx, "/enrollments/check?"+q.Encode(), &out); err != nil {
		return false, err
	}
	return out.IsEnrolled, nil
}

// ===== NOTIFICATIONS =====

func (c *Client) Notifications(ctx context.Context, userID string) ([]models.Notification, error) {
	out := listOf[models.Notification]{keys: []string{"notifications"}}
	if err := c.getJSON(ctx, "/notifications/user/"+url.PathEscape(userID), &out); err != nil {
		return nil, err
	}
	return out.items, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, notificationID string) error {
	return c.sendJSON(ctx, http.MethodPatch, "/notifications/"+url.PathEscape(notificationID)+"/read", nil, nil)
}
