package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_NoSessionRedirectsToLoginWithNext(t *testing.T) {
	app := newTestApp(t)

	w := app.page(http.MethodGet, "/courses/c1/learn?tab=notes", nil)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login?next=%2Fcourses%2Fc1%2Flearn%3Ftab%3Dnotes", w.Header().Get("Location"))
}

func TestGuard_NoSessionJSONGets401WithLocation(t *testing.T) {
	app := newTestApp(t)

	w := app.api(http.MethodPost, "/courses/c1/checkout", nil, nil)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	resp := decode[ErrorResponse](t, w)
	assert.Equal(t, "unauthorized", resp.Error)
	assert.Equal(t, "/login?next=%2Fcourses%2Fc1%2Fcheckout", resp.Location)
}

func TestGuard_WrongRoleRedirectsHome(t *testing.T) {
	app := newTestApp(t)

	tests := []struct {
		name string
		path string
		as   string
	}{
		{"student on faculty page", "/faculty/dashboard", "student"},
		{"faculty on admin page", "/admin/dashboard", "faculty"},
		{"admin on student content", "/courses/c1/learn", "admin"},
	}
	users := map[string]*http.Cookie{
		"student": app.login(t, student),
		"faculty": app.login(t, faculty),
		"admin":   app.login(t, admin),
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.page(http.MethodGet, tt.path, users[tt.as])
			assert.Equal(t, http.StatusSeeOther, w.Code)
			assert.Equal(t, "/", w.Header().Get("Location"))
		})
	}
}

func TestGuard_WrongRoleJSONGets403(t *testing.T) {
	app := newTestApp(t)

	w := app.api(http.MethodGet, "/admin/dashboard", nil, app.login(t, student))

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "/", decode[ErrorResponse](t, w).Location)
}

func TestGuard_RendersForMatchingRoleAndRemembersPath(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t, faculty)

	w := app.page(http.MethodGet, "/faculty/dashboard", cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Go Basics")

	// Home sends the user back to the last guarded page.
	w = app.page(http.MethodGet, "/", cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/faculty/dashboard", w.Header().Get("Location"))
}

func TestSessionMiddleware_UnknownCookieIsCleared(t *testing.T) {
	app := newTestApp(t)

	w := app.page(http.MethodGet, "/student/dashboard", &http.Cookie{Name: testCookie, Value: "missing"})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	cleared := sessionCookie(w)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestSessionMiddleware_SurvivesRedisOutage(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t, student)
	app.redis.Close()

	w := app.page(http.MethodGet, "/student/dashboard", cookie)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "/login")
}

func TestSecurityHeaders(t *testing.T) {
	app := newTestApp(t)

	w := app.page(http.MethodGet, "/login", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "script-src 'self' http://127.0.0.1")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    bool
	}{
		{"browser navigation", map[string]string{"Accept": "text/html,application/xhtml+xml"}, false},
		{"fetch with json accept", map[string]string{"Accept": "application/json"}, true},
		{"xhr header", map[string]string{"X-Requested-With": "XMLHttpRequest"}, true},
		{"json body", map[string]string{"Content-Type": "application/json"}, true},
		{"mixed accept prefers html", map[string]string{"Accept": "text/html, application/json"}, false},
		{"no headers", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				c.Request.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, wantsJSON(c))
		})
	}
}

func TestNoRouteRendersNotFound(t *testing.T) {
	app := newTestApp(t)

	w := app.page(http.MethodGet, "/nowhere", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "We could not find that page.")
}
