package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/course-portal/internal/config"
	"github.com/SAP-F-2025/course-portal/internal/guard"
	"github.com/SAP-F-2025/course-portal/internal/models"
	"github.com/SAP-F-2025/course-portal/internal/session"
	"github.com/SAP-F-2025/course-portal/internal/utils"
)

const ssoNextCookie = "cp_sso_next"

// CasdoorProvider is the part of the Casdoor SDK client the SSO flow uses.
type CasdoorProvider interface {
	GetSigninUrl(redirectURI string) string
	ExchangeCode(code, state string) (string, error)
	ParseJwtToken(token string) (*casdoorsdk.Claims, error)
}

type casdoorClient struct {
	*casdoorsdk.Client
}

func (c casdoorClient) ExchangeCode(code, state string) (string, error) {
	token, err := c.GetOAuthToken(code, state)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// NewCasdoorProvider builds the SDK client from config.
func NewCasdoorProvider(cfg config.CasdoorConfig) CasdoorProvider {
	return casdoorClient{Client: casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Cert,
		cfg.Organization,
		cfg.Application,
	)}
}

// SSOHandler signs users in through Casdoor. The Casdoor access token becomes the
// session's bearer token.
type SSOHandler struct {
	BaseHandler
	provider    CasdoorProvider
	sessions    *session.Manager
	mw          *AuthMiddleware
	redirectURL string
}

func NewSSOHandler(provider CasdoorProvider, redirectURL string, sessions *session.Manager, mw *AuthMiddleware, logger utils.Logger) *SSOHandler {
	return &SSOHandler{
		BaseHandler: NewBaseHandler(logger),
		provider:    provider,
		sessions:    sessions,
		mw:          mw,
		redirectURL: redirectURL,
	}
}

// Start sends the browser to the Casdoor sign-in page.
func (h *SSOHandler) Start(c *gin.Context) {
	if next := guard.SafeNext(c.Query("next")); next != "" {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(ssoNextCookie, next, 600, "/auth/sso", "", h.mw.cookieSecure, true)
	}
	c.Redirect(http.StatusFound, h.provider.GetSigninUrl(h.redirectURL))
}

// Callback exchanges the authorization code and starts a session.
func (h *SSOHandler) Callback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		h.renderError(c, http.StatusBadRequest, "Sign-in failed", "The sign-in response was incomplete.")
		return
	}

	token, err := h.provider.ExchangeCode(code, c.Query("state"))
	if err != nil {
		h.LogError(c, err, "Casdoor code exchange failed")
		h.renderError(c, http.StatusBadGateway, "Sign-in failed", "We could not complete single sign-on. Please try again.")
		return
	}

	claims, err := h.provider.ParseJwtToken(token)
	if err != nil {
		h.LogError(c, err, "Casdoor token rejected")
		h.renderError(c, http.StatusUnauthorized, "Sign-in failed", "Your sign-in could not be verified.")
		return
	}

	user, err := userFromClaims(claims)
	if err != nil {
		h.renderError(c, http.StatusUnauthorized, "Sign-in failed", "Your account is missing required details.")
		return
	}
	if user.Blocked {
		h.renderError(c, http.StatusForbidden, "Sign-in failed", "This account has been blocked.")
		return
	}

	sess, err := h.sessions.Set(c.Request.Context(), user, token)
	if err != nil {
		h.LogError(c, err, "Failed to create SSO session")
		h.renderError(c, http.StatusServiceUnavailable, "Sign-in failed", "We could not sign you in right now. Please try again.")
		return
	}
	h.mw.setCookie(c, sess)

	next, _ := c.Cookie(ssoNextCookie)
	c.SetCookie(ssoNextCookie, "", -1, "/auth/sso", "", h.mw.cookieSecure, true)
	redirect(c, afterLogin(sess, next))
}

func userFromClaims(claims *casdoorsdk.Claims) (models.User, error) {
	id := claims.Id
	if id == "" {
		id = claims.Name
	}
	if id == "" {
		return models.User{}, fmt.Errorf("invalid user ID in token")
	}
	name := claims.DisplayName
	if strings.TrimSpace(name) == "" {
		name = claims.Name
	}
	return models.User{
		ID:      id,
		Name:    name,
		Email:   claims.Email,
		Phone:   claims.Phone,
		Role:    mapCasdoorRoleToUserRole(claims.Type),
		Blocked: claims.IsForbidden,
	}, nil
}

// mapCasdoorRoleToUserRole maps Casdoor user type to a portal role.
func mapCasdoorRoleToUserRole(casdoorType string) models.UserRole {
	switch strings.ToLower(strings.TrimSpace(casdoorType)) {
	case "admin", "administrator":
		return models.RoleAdmin
	case "teacher", "instructor", "faculty", "educator":
		return models.RoleFaculty
	default:
		return models.RoleStudent
	}
}
