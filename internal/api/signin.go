package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"membership/internal/auth"
	"membership/internal/oauth"
	"membership/internal/student"
)

const stateCookieMaxAge = 600

func stateCookie(role string) string {
	return "oauth_state_" + role
}

func (h *Handler) provider(role string) SignIn {
	if role == auth.RoleAdmin {
		return h.AdminSignIn
	}
	return h.StudentSignIn
}

func (h *Handler) beginSignIn(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := oauth.NewState()
		if err != nil {
			h.fail(c, err)
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(stateCookie(role), state, stateCookieMaxAge, "/", "", h.SecureCookies, true)
		c.Redirect(http.StatusFound, h.provider(role).AuthCodeURL(state))
	}
}

// exchange checks the state cookie and trades the code for a profile.
func (h *Handler) exchange(c *gin.Context, role string) (oauth.Profile, bool) {
	want, err := c.Cookie(stateCookie(role))
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie(role), "", -1, "/", "", h.SecureCookies, true)
	if err != nil || want == "" || c.Query("state") != want {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return oauth.Profile{}, false
	}
	if e := c.Query("error"); e != "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "sign-in cancelled: " + e})
		return oauth.Profile{}, false
	}

	profile, err := h.provider(role).Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.fail(c, err)
		return oauth.Profile{}, false
	}
	return profile, true
}

func (h *Handler) issue(c *gin.Context, subject, role string) (auth.Token, bool) {
	tok, err := auth.Issue(subject, role, h.Tokens.Issuer, h.Tokens.SigningKey, h.Tokens.TTL)
	if err != nil {
		h.fail(c, err)
		return auth.Token{}, false
	}
	return tok, true
}

func (h *Handler) adminCallback(c *gin.Context) {
	profile, ok := h.exchange(c, auth.RoleAdmin)
	if !ok {
		return
	}
	a, err := h.Admins.SignIn(c.Request.Context(), profile.ID, profile.Name, profile.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	tok, ok := h.issue(c, a.ID.String(), auth.RoleAdmin)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":    "Admin authenticated successfully",
		"token":      tok.AccessToken,
		"expires_at": tok.ExpiresAt.Unix(),
		"user":       gin.H{"id": a.ID, "name": a.Name, "email": a.Email},
	})
}

func (h *Handler) studentCallback(c *gin.Context) {
	profile, ok := h.exchange(c, auth.RoleStudent)
	if !ok {
		return
	}
	st, created, err := h.Students.RegisterFromProfile(c.Request.Context(), student.Profile{
		GoogleID: profile.ID,
		Name:     profile.Name,
		Email:    profile.Email,
	})
	if errors.Is(err, student.ErrEmailTaken) {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "email is registered to another account"})
		return
	}
	if err != nil {
		h.fail(c, err)
		return
	}
	tok, ok := h.issue(c, st.ID.String(), auth.RoleStudent)
	if !ok {
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"message":    "Student authenticated successfully",
		"token":      tok.AccessToken,
		"expires_at": tok.ExpiresAt.Unix(),
		"student":    gin.H{"id": st.ID, "name": st.Name, "email": st.Email},
	})
}
