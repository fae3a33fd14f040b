// Package api wires the HTTP surface of the membership service.
package api

import (
	"context"
	"errors"
	"image"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"membership/internal/admin"
	"membership/internal/auth"
	"membership/internal/httpmiddleware"
	"membership/internal/logger"
	"membership/internal/metrics"
	"membership/internal/oauth"
	"membership/internal/qrstyle"
	"membership/internal/scan"
	"membership/internal/student"
)

// Students is the student service as seen by handlers.
type Students interface {
	RegisterFromProfile(ctx context.Context, p student.Profile) (student.Student, bool, error)
	Get(ctx context.Context, id uuid.UUID) (student.Student, error)
	List(ctx context.Context, limit, offset int) ([]student.Student, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, u student.Update) (student.Student, error)
	AdminUpdate(ctx context.Context, id uuid.UUID, u student.Update) (student.Student, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Verify(ctx context.Context, uniqueID string) (student.Student, error)
	RequestCard(ctx context.Context, id uuid.UUID, requestedBy string) error
}

// Admins signs administrators in.
type Admins interface {
	SignIn(ctx context.Context, googleID, name, email string) (admin.Admin, error)
}

// SignIn runs one audience's OAuth code flow.
type SignIn interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (oauth.Profile, error)
}

// Checker reports whether a dependency is reachable.
type Checker interface {
	Healthy(ctx context.Context) bool
}

// Tokens configures issued access tokens.
type Tokens struct {
	Issuer     string
	SigningKey string
	TTL        time.Duration
}

// Deps are the collaborators of the handlers.
type Deps struct {
	Students      Students
	Admins        Admins
	AdminSignIn   SignIn
	StudentSignIn SignIn
	Resolver      *auth.Resolver
	Tokens        Tokens
	QRSpec        qrstyle.Spec
	Logo          image.Image
	Limiter       *httpmiddleware.SimpleTokenBucket
	Metrics       *metrics.Metrics
	Health        map[string]Checker
	SecureCookies bool
	Log           *logger.Logger
}

// Handler serves the membership API.
type Handler struct {
	Deps
}

// New creates a handler.
func New(d Deps) *Handler {
	if d.Limiter == nil {
		d.Limiter = httpmiddleware.NewSimpleTokenBucket(0, 0)
	}
	return &Handler{Deps: d}
}

// Register mounts every route on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.health)

	r.GET("/v1/auth/google", h.beginSignIn(auth.RoleAdmin))
	r.GET("/v1/auth/google/callback", h.adminCallback)
	r.GET("/v1/students/auth/google", h.beginSignIn(auth.RoleStudent))
	r.GET("/v1/students/auth/google/callback", h.studentCallback)

	v1 := r.Group("/v1", auth.Middleware(h.Tokens.SigningKey, h.Tokens.Issuer, h.Resolver, h.Log))

	me := v1.Group("/students/me", auth.RequireStudent())
	me.GET("", h.getMe)
	me.PUT("", h.updateMe)
	me.GET("/qrcode", h.myQRCode)

	byCaller := func(c *gin.Context) string {
		p, _ := auth.FromContext(c)
		return p.ID().String()
	}
	admins := v1.Group("/students", auth.RequireAdmin())
	admins.GET("", h.listStudents)
	admins.POST("/verify", h.Limiter.GinMiddleware(byCaller), h.verify)
	admins.POST("/verify/scan", h.Limiter.GinMiddleware(byCaller), h.verifyScan)
	admins.POST("/:id/send-id-card", h.sendIDCard)
	admins.GET("/:id/qrcode", h.studentQRCode)
	admins.GET("/:id", h.getStudent)
	admins.PUT("/:id", h.updateStudent)
	admins.DELETE("/:id", h.deleteStudent)
}

func (h *Handler) health(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, checker := range h.Health {
		ok := checker.Healthy(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// fail writes err as a JSON error with the matching status code.
func (h *Handler) fail(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "internal error"
	switch {
	case errors.Is(err, student.ErrValidation):
		status, msg = http.StatusBadRequest, strings.ReplaceAll(err.Error(), "\n", ": ")
	case errors.Is(err, student.ErrNotFound):
		status, msg = http.StatusNotFound, student.ErrNotFound.Error()
	case errors.Is(err, admin.ErrNotFound):
		status, msg = http.StatusNotFound, admin.ErrNotFound.Error()
	case errors.Is(err, student.ErrEmailTaken), errors.Is(err, student.ErrDuplicate):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, admin.ErrNotAllowed):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, oauth.ErrExchange), errors.Is(err, oauth.ErrUnverified):
		status, msg = http.StatusUnauthorized, "sign-in failed"
	case errors.Is(err, scan.ErrUnreadable):
		status, msg = http.StatusBadRequest, "image must be a PNG or JPEG"
	case errors.Is(err, scan.ErrNoCode):
		status, msg = http.StatusUnprocessableEntity, "no qr code found in image"
	case errors.Is(err, student.ErrCardQueue):
		status, msg = http.StatusServiceUnavailable, "card delivery is unavailable, try again later"
	}
	if status >= http.StatusInternalServerError || status == http.StatusUnauthorized {
		h.Log.Error("API: request failed", "path", c.FullPath(), "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
