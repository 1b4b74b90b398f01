package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/course-portal/internal/backend"
	"github.com/SAP-F-2025/course-portal/internal/cache"
	"github.com/SAP-F-2025/course-portal/internal/enrollment"
	"github.com/SAP-F-2025/course-portal/internal/metrics"
	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/SAP-F-2025/course-portal/internal/payment"
	"github.com/SAP-F-2025/course-portal/internal/services"
	"github.com/SAP-F-2025/course-portal/internal/session"
	"github.com/SAP-F-2025/course-portal/internal/utils"
	"github.com/SAP-F-2025/course-portal/internal/validator"
	"github.com/SAP-F-2025/course-portal/internal/ws"
)

const testCookie = "cp_session"

var (
	student = models.User{ID: "s1", Name: "Asha", Email: "asha@example.com", Role: models.RoleStudent}
	faculty = models.User{ID: "f1", Name: "Ravi", Email: "ravi@example.com", Role: models.RoleFaculty}
	admin   = models.User{ID: "a1", Name: "Meera", Email: "meera@example.com", Role: models.RoleAdmin}
)

// fakeBackend stands in for every backend surface the handlers reach.
type fakeBackend struct {
	mu sync.Mutex

	courses       map[string]models.Course
	passwords     map[string]string
	users         map[string]models.User
	enrollments   map[string][]models.Enrollment
	enrollmentErr error
	notifications []models.Notification
	readIDs       []string
	revenue       *models.RevenueReport
	deleted       []string
	uploads       []models.ContentDraft
	uploadNames   []string

	createOrderFn func(ctx context.Context, req models.CreateOrderRequest) (*models.CreateOrderResponse, error)
	verifyFn      func(ctx context.Context, req models.PaymentVerification) (*models.VerifyPaymentResponse, error)
	createCalls   int
	verifyCalls   int
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{
		courses: map[string]models.Course{
			"c1": {ID: "c1", Title: "Go Basics", Category: "programming", Price: "499", Faculty: models.Ref{ID: "f1", Name: "Ravi"}},
			"c2": {ID: "c2", Title: "Intro to SQL", Category: "data", Price: "0", Faculty: models.Ref{ID: "f1", Name: "Ravi"}},
			"c3": {ID: "c3", Title: "Design Systems", Category: "design", Price: "1299", Faculty: models.Ref{ID: "f2", Name: "Kiran"}},
		},
		passwords:   map[string]string{},
		users:       map[string]models.User{},
		enrollments: map[string][]models.Enrollment{},
	}
	for _, u := range []models.User{student, faculty, admin} {
		b.users[u.Email] = u
		b.passwords[u.Email] = "secret123"
	}
	return b
}

func (b *fakeBackend) enroll(studentID, courseID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.enrollments[studentID] = append(b.enrollments[studentID], models.Enrollment{
		Student:       models.Ref{ID: studentID},
		Course:        models.Ref{ID: courseID},
		PaymentStatus: models.PaymentCompleted,
		EnrolledAt:    time.Now(),
	})
}

func (b *fakeBackend) setEnrollmentErr(err error) {
	b.mu.Lock()
	b.enrollmentErr = err
	b.mu.Unlock()
}

func (b *fakeBackend) counts() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.createCalls, b.verifyCalls
}

func (b *fakeBackend) Login(_ context.Context, email, password string) (*models.AuthResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[email]
	if !ok || b.passwords[email] != password {
		return nil, &backend.Error{Status: http.StatusUnauthorized, Message: "Invalid credentials"}
	}
	return &models.AuthResponse{User: u, Token: "tok-" + u.ID}, nil
}

func (b *fakeBackend) Register(_ context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.users[req.Email]; exists {
		return nil, &backend.Error{Status: http.StatusConflict, Message: "Email already registered"}
	}
	u := models.User{ID: "u-" + req.Email, Name: req.Name, Email: req.Email, Role: req.Role, Phone: req.Phone}
	b.users[req.Email] = u
	b.passwords[req.Email] = req.Password
	return &models.AuthResponse{User: u, Token: "tok-" + u.ID}, nil
}

func (b *fakeBackend) ListUsers(context.Context) ([]models.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.User, 0, len(b.users))
	for _, u := range b.users {
		out = append(out, u)
	}
	return out, nil
}

func (b *fakeBackend) ListCourses(context.Context) ([]models.Course, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Course, 0, len(b.courses))
	for _, c := range b.courses {
		out = append(out, c)
	}
	return out, nil
}

func (b *fakeBackend) GetCourse(_ context.Context, courseID string) (*models.Course, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.courses[courseID]
	if !ok {
		return nil, &backend.Error{Status: http.StatusNotFound, Message: "Course not found"}
	}
	return &c, nil
}

func (b *fakeBackend) ListFacultyCourses(_ context.Context, facultyID string) ([]models.Course, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.Course
	for _, c := range b.courses {
		if c.Faculty.ID == facultyID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (b *fakeBackend) CreateCourse(_ context.Context, facultyID string, draft models.CourseDraft) (*models.Course, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := models.Course{
		ID:          "new-" + draft.Title,
		Title:       draft.Title,
		Description: draft.Description,
		Category:    draft.Category,
		Price:       draft.Price,
		Faculty:     models.Ref{ID: facultyID},
	}
	b.courses[c.ID] = c
	return &c, nil
}

func (b *fakeBackend) UpdateCourse(_ context.Context, courseID string, update models.CourseUpdate) (*models.Course, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.courses[courseID]
	if !ok {
		return nil, &backend.Error{Status: http.StatusNotFound, Message: "Course not found"}
	}
	if update.Title != nil {
		c.Title = *update.Title
	}
	if update.Price != nil {
		c.Price = *update.Price
	}
	b.courses[courseID] = c
	return &c, nil
}

func (b *fakeBackend) DeleteCourse(_ context.Context, courseID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.courses, courseID)
	b.deleted = append(b.deleted, courseID)
	return nil
}

func (b *fakeBackend) UploadContent(_ context.Context, courseID string, draft models.ContentDraft, file *backend.Upload) (*models.Course, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.courses[courseID]
	c.Content = append(c.Content, models.ContentItem{Title: draft.Title, Type: draft.Type, URL: draft.URL})
	b.courses[courseID] = c
	b.uploads = append(b.uploads, draft)
	if file != nil {
		data, _ := io.ReadAll(file.Content)
		b.uploadNames = append(b.uploadNames, file.Filename+":"+string(data))
	}
	return &c, nil
}

func (b *fakeBackend) StudentEnrollments(_ context.Context, studentID string) ([]models.Enrollment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.enrollmentErr != nil {
		return nil, b.enrollmentErr
	}
	return append([]models.Enrollment(nil), b.enrollments[studentID]...), nil
}

func (b *fakeBackend) CheckEnrollment(ctx context.Context, courseID, studentID string) (bool, error) {
	list, err := b.StudentEnrollments(ctx, studentID)
	if err != nil {
		return false, err
	}
	for _, e := range list {
		if e.Course.ID == courseID && e.Grants() {
			return true, nil
		}
	}
	return false, nil
}

func (b *fakeBackend) Notifications(context.Context, string) ([]models.Notification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Notification(nil), b.notifications...), nil
}

func (b *fakeBackend) MarkNotificationRead(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readIDs = append(b.readIDs, id)
	return nil
}

func (b *fakeBackend) Revenue(context.Context) (*models.RevenueReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.revenue == nil {
		return nil, &backend.Error{Status: http.StatusBadGateway, Message: "Revenue unavailable"}
	}
	return b.revenue, nil
}

func (b *fakeBackend) CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.CreateOrderResponse, error) {
	b.mu.Lock()
	b.createCalls++
	fn := b.createOrderFn
	course := b.courses[req.CourseID]
	b.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	return &models.CreateOrderResponse{Success: true, OrderID: "order_" + req.CourseID, CourseName: course.Title, CoursePrice: course.Price}, nil
}

func (b *fakeBackend) VerifyPayment(ctx context.Context, req models.PaymentVerification) (*models.VerifyPaymentResponse, error) {
	b.mu.Lock()
	b.verifyCalls++
	fn := b.verifyFn
	b.mu.Unlock()
	if fn != nil {
		return fn(ctx, req)
	}
	b.enroll(req.StudentID, req.CourseID)
	return &models.VerifyPaymentResponse{Success: true}, nil
}

type testApp struct {
	router    *gin.Engine
	backend   *fakeBackend
	sessions  *session.Manager
	checkouts *payment.Checkouts
	redis     *miniredis.Miniredis
}

type appOption func(*payment.Settings)

func withoutKey() appOption {
	return func(s *payment.Settings) { s.KeyID = "" }
}

func newTestApp(t *testing.T, opts ...appOption) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := utils.NewDiscardLogger()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cm := cache.NewCacheManager(client)
	sessions := session.NewManager(session.NewRedisStore(cm), time.Hour, logger)

	script := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("window.Razorpay = function() {};"))
	}))
	t.Cleanup(script.Close)

	settings := payment.Settings{
		KeyID:        "rzp_test_key",
		Currency:     "INR",
		MerchantName: "Course Portal",
		CallTimeout:  2 * time.Second,
	}
	for _, opt := range opts {
		opt(&settings)
	}

	fb := newFakeBackend()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	checkouts := payment.NewCheckouts(fb, payment.NewScriptLoader(script.URL+"/v1/checkout.js", script.Client()), settings, 5*time.Second, logger, m.ObserveTransition)
	gate := enrollment.NewGate(fb, sessions, logger, enrollment.WithObserver(m.ObserveVerdict))
	v := validator.NewBusinessValidator()

	templates, err := LoadTemplates("INR")
	require.NoError(t, err)

	hub := ws.NewHub(nil, logger)
	t.Cleanup(hub.Close)

	hm := NewHandlerManager(Deps{
		Services:   services.NewServiceManager(fb, cm, v, logger),
		Auth:       fb,
		Revenue:    fb,
		Sessions:   sessions,
		Gate:       gate,
		Checkouts:  checkouts,
		Validator:  v,
		Realtime:   hub,
		Health:     map[string]HealthChecker{"redis": cm},
		Logger:     logger,
		Metrics:    m,
		Gatherer:   reg,
		Templates:  templates,
		CookieName: testCookie,
		Currency:   "INR",
	})

	router := gin.New()
	SetupMiddleware(router, logger, utils.NewReporter("", "test", "test", logger), nil, script.URL)
	hm.SetupRoutes(router)

	return &testApp{router: router, backend: fb, sessions: sessions, checkouts: checkouts, redis: mr}
}

// login creates a session directly and returns its cookie.
func (a *testApp) login(t *testing.T, u models.User) *http.Cookie {
	t.Helper()
	sess, err := a.sessions.Set(context.Background(), u, "tok-"+u.ID)
	require.NoError(t, err)
	return &http.Cookie{Name: testCookie, Value: sess.ID}
}

func (a *testApp) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) page(method, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Accept", "text/html")
	return a.do(req, cookie)
}

func (a *testApp) form(path string, values url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	return a.do(req, cookie)
}

func (a *testApp) api(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	var r io.Reader = http.NoBody
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	return a.do(req, cookie)
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == testCookie {
			return c
		}
	}
	return nil
}
