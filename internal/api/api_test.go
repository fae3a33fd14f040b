package api

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membership/internal/admin"
	"membership/internal/auth"
	"membership/internal/httpmiddleware"
	"membership/internal/metrics"
	"membership/internal/oauth"
	"membership/internal/qrstyle"
	"membership/internal/scan"
	"membership/internal/student"
	"membership/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type env struct {
	router   *gin.Engine
	students *fakeStudents
	admins   *fakeAdmins
	metrics  *metrics.Metrics
	tokens   Tokens
	asha     student.Student
	lead     admin.Admin
}

func newEnv(t *testing.T, limiter *httpmiddleware.SimpleTokenBucket) *env {
	t.Helper()
	asha := student.Student{
		ID:       uuid.New(),
		GoogleID: "g-asha",
		Name:     "Asha K",
		Email:    "asha@example.com",
		UniqueID: uuid.NewString(),
	}
	lead := admin.Admin{ID: uuid.New(), GoogleID: "g-lead", Name: "Lead", Email: "lead@seds.org"}
	students := newFakeStudents(asha)
	admins := &fakeAdmins{allowed: "lead@seds.org", byID: map[uuid.UUID]admin.Admin{lead.ID: lead}}
	m := metrics.New(prometheus.NewRegistry())
	tokens := Tokens{Issuer: "test", SigningKey: "test-key", TTL: time.Hour}

	h := New(Deps{
		Students: students,
		Admins:   admins,
		AdminSignIn: fakeSignIn{profiles: map[string]oauth.Profile{
			"lead":     {ID: "g-lead", Name: "Lead", Email: "lead@seds.org", EmailVerified: true},
			"stranger": {ID: "g-x", Name: "X", Email: "x@example.com", EmailVerified: true},
		}},
		StudentSignIn: fakeSignIn{profiles: map[string]oauth.Profile{
			"asha": {ID: "g-asha", Name: "Asha K", Email: "asha@example.com", EmailVerified: true},
			"new":  {ID: "g-new", Name: "Ravi", Email: "ravi@example.com", EmailVerified: true},
		}},
		Resolver: auth.NewResolver(admins, students),
		Tokens:   tokens,
		QRSpec:   qrstyle.DefaultSpec(),
		Limiter:  limiter,
		Metrics:  m,
		Health:   map[string]Checker{"db": checker(true), "redis": checker(true)},
		Log:      testutil.MakeNoopLogger(),
	})
	r := gin.New()
	h.Register(r)
	return &env{router: r, students: students, admins: admins, metrics: m, tokens: tokens, asha: asha, lead: lead}
}

func (e *env) token(t *testing.T, id uuid.UUID, role string) string {
	t.Helper()
	tok, err := auth.Issue(id.String(), role, e.tokens.Issuer, e.tokens.SigningKey, e.tokens.TTL)
	require.NoError(t, err)
	return tok.AccessToken
}

func (e *env) adminToken(t *testing.T) string   { return e.token(t, e.lead.ID, auth.RoleAdmin) }
func (e *env) studentToken(t *testing.T) string { return e.token(t, e.asha.ID, auth.RoleStudent) }

func (e *env) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) doJSON(method, path, token string, body any) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return e.do(req, token)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	e := newEnv(t, nil)
	rec := e.doJSON(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","db":true,"redis":true}`, rec.Body.String())

	h := New(Deps{Health: map[string]Checker{"redis": checker(false)}, Log: testutil.MakeNoopLogger()})
	r := gin.New()
	r.GET("/healthz", h.health)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// signIn runs the redirect and callback legs for one audience.
func (e *env) signIn(t *testing.T, beginPath, callbackPath, code string) *httptest.ResponseRecorder {
	t.Helper()
	rec := e.doJSON(http.MethodGet, beginPath, "", nil)
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, callbackPath+"?code="+code+"&state="+url.QueryEscape(state), nil)
	req.AddCookie(cookies[0])
	return e.do(req, "")
}

func TestAdminSignIn(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.signIn(t, "/v1/auth/google", "/v1/auth/google/callback", "lead")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	claims, err := auth.Parse(body["token"].(string), e.tokens.SigningKey, e.tokens.Issuer)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, claims.Role)
	assert.Equal(t, e.lead.ID.String(), claims.Subject)

	rec = e.signIn(t, "/v1/auth/google", "/v1/auth/google/callback", "stranger")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.signIn(t, "/v1/auth/google", "/v1/auth/google/callback", "forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSignIn_StateMismatch(t *testing.T) {
	e := newEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/google/callback?code=lead&state=abc", nil)
	assert.Equal(t, http.StatusBadRequest, e.do(req, "").Code, "missing cookie")

	req = httptest.NewRequest(http.MethodGet, "/v1/auth/google/callback?code=lead&state=abc", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state_admin", Value: "xyz"})
	assert.Equal(t, http.StatusBadRequest, e.do(req, "").Code, "wrong state")

	req = httptest.NewRequest(http.MethodGet, "/v1/students/auth/google/callback?code=asha&state=abc", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state_admin", Value: "abc"})
	assert.Equal(t, http.StatusBadRequest, e.do(req, "").Code, "admin state on student callback")
}

func TestStudentSignIn(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.signIn(t, "/v1/students/auth/google", "/v1/students/auth/google/callback", "asha")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, e.asha.ID.String(), body["student"].(map[string]any)["id"])

	rec = e.signIn(t, "/v1/students/auth/google", "/v1/students/auth/google/callback", "new")
	require.Equal(t, http.StatusCreated, rec.Code)
	body = decode(t, rec)
	claims, err := auth.Parse(body["token"].(string), e.tokens.SigningKey, e.tokens.Issuer)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleStudent, claims.Role)

	me := e.doJSON(http.MethodGet, "/v1/students/me", body["token"].(string), nil)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, "ravi@example.com", decode(t, me)["email"])
}

func TestMe(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.doJSON(http.MethodGet, "/v1/students/me", e.studentToken(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Asha K", body["name"])
	assert.NotContains(t, body, "google_id")

	assert.Equal(t, http.StatusForbidden, e.doJSON(http.MethodGet, "/v1/students/me", e.adminToken(t), nil).Code)
	assert.Equal(t, http.StatusUnauthorized, e.doJSON(http.MethodGet, "/v1/students/me", "", nil).Code)
}

func TestUpdateMe(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.doJSON(http.MethodPut, "/v1/students/me", e.studentToken(t), map[string]any{
		"team":  "Rocketry",
		"email": "hijack@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	assert.Equal(t, "Rocketry", body["team"])
	assert.Equal(t, "asha@example.com", body["email"])

	rec = e.doJSON(http.MethodPut, "/v1/students/me", e.studentToken(t), map[string]any{"age": 3})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "invalid student data")

	req := httptest.NewRequest(http.MethodPut, "/v1/students/me", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, e.do(req, e.studentToken(t)).Code)
}

func decodeDataURL(t *testing.T, dataURL string) string {
	t.Helper()
	const prefix = "data:image/png;base64,"
	require.True(t, strings.HasPrefix(dataURL, prefix))
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, prefix))
	require.NoError(t, err)
	payload, err := scan.DecodeReader(bytes.NewReader(raw))
	require.NoError(t, err)
	return payload
}

func TestQRCode(t *testing.T) {
	e := newEnv(t, nil)

	rec := e.doJSON(http.MethodGet, "/v1/students/me/qrcode", e.studentToken(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Asha K", body["student_name"])
	assert.Equal(t, e.asha.UniqueID, decodeDataURL(t, body["qr_code"].(string)))

	rec = e.doJSON(http.MethodGet, "/v1/students/"+e.asha.ID.String()+"/qrcode", e.adminToken(t), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, e.asha.UniqueID, decodeDataURL(t, decode(t, rec)["qr_code"].(string)))

	rec = e.doJSON(http.MethodGet, "/v1/students/"+uuid.NewString()+"/qrcode", e.adminToken(t), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminCRUD(t *testing.T) {
	e := newEnv(t, nil)
	tok := e.adminToken(t)
	path := "/v1/students/" + e.asha.ID.String()

	rec := e.doJSON(http.MethodGet, "/v1/students", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "g-asha")
	assert.Len(t, decode(t, rec)["students"], 1)

	rec = e.doJSON(http.MethodGet, path, tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, e.asha.UniqueID, decode(t, rec)["unique_id"])

	rec = e.doJSON(http.MethodPut, path, tok, map[string]any{"email": "asha.k@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "asha.k@example.com", decode(t, rec)["student"].(map[string]any)["email"])

	rec = e.doJSON(http.MethodPut, path, tok, map[string]any{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusNotFound, e.doJSON(http.MethodGet, "/v1/students/not-a-uuid", tok, nil).Code)

	assert.Equal(t, http.StatusForbidden, e.doJSON(http.MethodGet, "/v1/students", e.studentToken(t), nil).Code)

	rec = e.doJSON(http.MethodDelete, path, tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, e.doJSON(http.MethodDelete, path, tok, nil).Code)
}

func TestSendIDCard(t *testing.T) {
	e := newEnv(t, nil)
	path := "/v1/students/" + e.asha.ID.String() + "/send-id-card"

	rec := e.doJSON(http.MethodPost, path, e.adminToken(t), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{e.asha.ID.String() + " by lead@seds.org"}, e.students.cards)

	e.students.cardErr = errors.New("redis down")
	rec = e.doJSON(http.MethodPost, path, e.adminToken(t), nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = e.doJSON(http.MethodPost, "/v1/students/"+uuid.NewString()+"/send-id-card", e.adminToken(t), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerify(t *testing.T) {
	e := newEnv(t, nil)
	tok := e.adminToken(t)

	rec := e.doJSON(http.MethodPost, "/v1/students/verify", tok, map[string]string{"unique_id": e.asha.UniqueID})
	require.Equal(t, http.StatusOK, rec.Code)
	st := decode(t, rec)["student"].(map[string]any)
	assert.Equal(t, "Asha K", st["name"])
	assert.NotContains(t, st, "google_id")

	rec = e.doJSON(http.MethodPost, "/v1/students/verify", tok, map[string]string{"unique_id": uuid.NewString()})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.doJSON(http.MethodPost, "/v1/students/verify", tok, map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.doJSON(http.MethodPost, "/v1/students/verify", tok, map[string]string{"unique_id": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.doJSON(http.MethodPost, "/v1/students/verify", e.studentToken(t), map[string]string{"unique_id": e.asha.UniqueID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Equal(t, 1.0, promtest.ToFloat64(e.metrics.Verifications.WithLabelValues("found")))
	assert.Equal(t, 1.0, promtest.ToFloat64(e.metrics.Verifications.WithLabelValues("not_found")))
	assert.Equal(t, 2.0, promtest.ToFloat64(e.metrics.Verifications.WithLabelValues("invalid")))
}

func multipartImage(t *testing.T, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("image", "card.png")
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestVerifyScan(t *testing.T) {
	e := newEnv(t, nil)
	tok := e.adminToken(t)
	upload := func(data []byte) *httptest.ResponseRecorder {
		body, ct := multipartImage(t, data)
		req := httptest.NewRequest(http.MethodPost, "/v1/students/verify/scan", body)
		req.Header.Set("Content-Type", ct)
		return e.do(req, tok)
	}

	qr, err := qrstyle.ComposePNG(e.asha.UniqueID, nil, qrstyle.DefaultSpec())
	require.NoError(t, err)
	rec := upload(qr)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, e.asha.ID.String(), decode(t, rec)["student"].(map[string]any)["id"])

	other, err := qrstyle.ComposePNG(uuid.NewString(), nil, qrstyle.DefaultSpec())
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, upload(other).Code)

	blank := image.NewGray(image.Rect(0, 0, 120, 120))
	for i := range blank.Pix {
		blank.Pix[i] = 0xff
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, blank))
	assert.Equal(t, http.StatusUnprocessableEntity, upload(buf.Bytes()).Code)

	assert.Equal(t, http.StatusBadRequest, upload([]byte("plain text")).Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/students/verify/scan", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, e.do(req, tok).Code)
}

func TestVerify_RateLimited(t *testing.T) {
	e := newEnv(t, httpmiddleware.NewSimpleTokenBucket(1, 1))
	tok := e.adminToken(t)
	body := map[string]string{"unique_id": e.asha.UniqueID}

	assert.Equal(t, http.StatusOK, e.doJSON(http.MethodPost, "/v1/students/verify", tok, body).Code)
	assert.Equal(t, http.StatusTooManyRequests, e.doJSON(http.MethodPost, "/v1/students/verify", tok, body).Code)
	assert.Equal(t, http.StatusOK, e.doJSON(http.MethodGet, "/v1/students", tok, nil).Code, "other routes are not limited")
}
