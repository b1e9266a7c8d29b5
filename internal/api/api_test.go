package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appointment-booking-api/internal/api"
	"appointment-booking-api/internal/directory"
	"appointment-booking-api/internal/logging"
	"appointment-booking-api/internal/middleware"
	"appointment-booking-api/internal/revocation"
	"appointment-booking-api/internal/scheduling"
	"appointment-booking-api/internal/store"
)

func setupAPI(t *testing.T, rps float64, burst int) http.Handler {
	t.Helper()
	log := logging.Discard()
	st, err := store.Open(context.Background(), store.SQLite, ":memory:", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	rl := middleware.NewRateLimiter(rps, burst)
	t.Cleanup(rl.Stop)

	dir := directory.New(st, revocation.NewMemory(), "test-secret", time.Hour, log)
	a := api.NewAPI(scheduling.New(), dir, scheduling.DefaultHours(), rl, log)
	a.RegisterRoutes()
	return a.Handler()
}

type call struct {
	method, path, body, token string
	cookie                    *http.Cookie
}

func do(t *testing.T, h http.Handler, c call) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if c.body != "" {
		body = bytes.NewBufferString(c.body)
	} else {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(c.method, c.path, body)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

// signup registers a user and returns the session token registration
// starts.
func signup(t *testing.T, h http.Handler, email string) string {
	t.Helper()
	rec := do(t, h, call{method: http.MethodPost, path: "/register",
		body: `{"email":"` + email + `","password":"secret1","name":"Test"}`})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[map[string]any](t, rec)["token"].(string)
}

func TestHealth(t *testing.T) {
	h := setupAPI(t, 100, 100)
	rec := do(t, h, call{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestUsersAPI(t *testing.T) {
	h := setupAPI(t, 100, 100)

	t.Run("register", func(t *testing.T) {
		rec := do(t, h, call{method: http.MethodPost, path: "/register",
			body: `{"email":"Alice@Example.com","password":"secret1","name":"Alice"}`})
		require.Equal(t, http.StatusCreated, rec.Code)
		cookies := rec.Result().Cookies()
		s := decodeBody[map[string]any](t, rec)
		require.NotEmpty(t, s["token"])
		assert.NotEmpty(t, s["expires_at"])
		u := s["user"].(map[string]any)
		assert.Equal(t, "alice@example.com", u["email"])
		assert.NotEmpty(t, u["id"])
		assert.NotContains(t, u, "password_hash")

		require.Len(t, cookies, 1)
		assert.Equal(t, middleware.SessionCookie, cookies[0].Name)
		assert.Equal(t, s["token"], cookies[0].Value)

		// the new session can book straight away
		rec = do(t, h, call{method: http.MethodPost, path: "/appointments", cookie: cookies[0],
			body: `{"date":"2025-03-10","time":"09:00"}`})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Equal(t, "alice@example.com", decodeBody[map[string]any](t, rec)["owner"])
	})

	t.Run("register duplicate", func(t *testing.T) {
		rec := do(t, h, call{method: http.MethodPost, path: "/register",
			body: `{"email":"alice@example.com","password":"secret1","name":"Alice"}`})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, directory.ErrEmailTaken.Error(), decodeBody[map[string]string](t, rec)["message"])
	})

	t.Run("register invalid", func(t *testing.T) {
		for _, body := range []string{
			`not json`,
			`{"email":"bob@example.com","password":"123","name":"Bob"}`,
			`{"email":"bob","password":"secret1","name":"Bob"}`,
			`{"email":"bob@example.com","password":"secret1"}`,
		} {
			rec := do(t, h, call{method: http.MethodPost, path: "/register", body: body})
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})

	t.Run("login", func(t *testing.T) {
		rec := do(t, h, call{method: http.MethodPost, path: "/login",
			body: `{"email":"alice@example.com","password":"secret1"}`})
		require.Equal(t, http.StatusOK, rec.Code)
		s := decodeBody[map[string]any](t, rec)
		assert.NotEmpty(t, s["token"])

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, middleware.SessionCookie, cookies[0].Name)
		assert.Equal(t, s["token"], cookies[0].Value)
		assert.True(t, cookies[0].HttpOnly)
	})

	t.Run("login failures", func(t *testing.T) {
		rec := do(t, h, call{method: http.MethodPost, path: "/login",
			body: `{"email":"alice@example.com","password":"wrong-pass"}`})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)

		rec = do(t, h, call{method: http.MethodPost, path: "/login", body: `{`})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list and delete", func(t *testing.T) {
		rec := do(t, h, call{method: http.MethodGet, path: "/users"})
		require.Equal(t, http.StatusOK, rec.Code)
		users := decodeBody[[]map[string]any](t, rec)
		require.Len(t, users, 1)
		id := users[0]["id"].(string)

		rec = do(t, h, call{method: http.MethodDelete, path: "/users/" + id})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"user `+id+` deleted"}`, rec.Body.String())

		rec = do(t, h, call{method: http.MethodDelete, path: "/users/" + id})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestLogout(t *testing.T) {
	h := setupAPI(t, 100, 100)
	tok := signup(t, h, "carol@example.com")

	rec := do(t, h, call{method: http.MethodPost, path: "/appointments", token: tok,
		body: `{"date":"2025-03-10","time":"09:00"}`})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, call{method: http.MethodPost, path: "/logout", token: tok})
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Negative(t, cookies[0].MaxAge)

	rec = do(t, h, call{method: http.MethodPost, path: "/appointments", token: tok,
		body: `{"date":"2025-03-10","time":"10:00"}`})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, call{method: http.MethodPost, path: "/logout"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAppointmentsAPI(t *testing.T) {
	h := setupAPI(t, 100, 100)
	alice := signup(t, h, "alice@example.com")
	bob := signup(t, h, "bob@example.com")

	t.Run("create requires login", func(t *testing.T) {
		rec := do(t, h, call{method: http.MethodPost, path: "/appointments",
			body: `{"date":"2025-03-10","time":"09:00"}`})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("create", func(t *testing.T) {
		rec := do(t, h, call{method: http.MethodPost, path: "/appointments", token: alice,
			body: `{"date":"2025-03-10","time":"09:00"}`})
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"id":1,"date":"2025-03-10","time":"09:00","owner":"alice@example.com"}`, rec.Body.String())
	})

	t.Run("create with session cookie", func(t *testing.T) {
		rec := do(t, h, call{method: http.MethodPost, path: "/appointments",
			cookie: &http.Cookie{Name: middleware.SessionCookie, Value: bob},
			body:   `{"date":"2025-03-10","time":"10:00"}`})
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "bob@example.com", decodeBody[map[string]any](t, rec)["owner"])
	})

	t.Run("conflict", func(t *testing.T) {
		rec := do(t, h, call{method: http.MethodPost, path: "/appointments", token: bob,
			body: `{"date":"2025-03-10","time":"09:00"}`})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, scheduling.ErrSlotConflict.Error(), decodeBody[map[string]string](t, rec)["message"])
	})

	t.Run("invalid", func(t *testing.T) {
		for _, body := range []string{
			`{"date":"2025-03-10"}`,
			`{"date":"03/10/2025","time":"09:00"}`,
			`{"date":"2025-03-10","time":"09:15"}`,
			`[]`,
		} {
			rec := do(t, h, call{method: http.MethodPost, path: "/appointments", token: alice, body: body})
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
	})

	t.Run("list", func(t *testing.T) {
		rec := do(t, h, call{method: http.MethodGet, path: "/appointments"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody[[]map[string]any](t, rec), 2)

		rec = do(t, h, call{method: http.MethodGet, path: "/appointments?mine=true", token: bob})
		require.Equal(t, http.StatusOK, rec.Code)
		mine := decodeBody[[]map[string]any](t, rec)
		require.Len(t, mine, 1)
		assert.Equal(t, "10:00", mine[0]["time"])

		rec = do(t, h, call{method: http.MethodGet, path: "/appointments?mine=true"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("slots", func(t *testing.T) {
		rec := do(t, h, call{method: http.MethodGet, path: "/slots?date=2025-03-10&end=12:00"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"date":"2025-03-10","slots":["11:00","12:00"]}`, rec.Body.String())

		rec = do(t, h, call{method: http.MethodGet, path: "/slots?date=2025-03-11&start=09:00&end=09:00"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"date":"2025-03-11","slots":["09:00"]}`, rec.Body.String())

		rec = do(t, h, call{method: http.MethodGet, path: "/slots?date=nope"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		rec = do(t, h, call{method: http.MethodGet, path: "/slots?date=2025-03-10&step=0s"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("cancel", func(t *testing.T) {
		rec := do(t, h, call{method: http.MethodDelete, path: "/appointments/1"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"message":"appointment cancelled","id":1}`, rec.Body.String())

		rec = do(t, h, call{method: http.MethodDelete, path: "/appointments/1"})
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = do(t, h, call{method: http.MethodDelete, path: "/appointments/abc"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = do(t, h, call{method: http.MethodGet, path: "/slots?date=2025-03-10&end=10:00"})
		assert.JSONEq(t, `{"date":"2025-03-10","slots":["09:00"]}`, rec.Body.String())
	})

	t.Run("ids are not reused", func(t *testing.T) {
		rec := do(t, h, call{method: http.MethodPost, path: "/appointments", token: alice,
			body: `{"date":"2025-03-10","time":"09:00"}`})
		require.Equal(t, http.StatusCreated, rec.Code)
		assert.EqualValues(t, 3, decodeBody[map[string]any](t, rec)["id"])
	})
}

func TestRateLimitedLogin(t *testing.T) {
	h := setupAPI(t, 0.001, 1)

	rec := do(t, h, call{method: http.MethodPost, path: "/login", body: `{"email":"x@y.z","password":"whatever"}`})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = do(t, h, call{method: http.MethodPost, path: "/login", body: `{"email":"x@y.z","password":"whatever"}`})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = do(t, h, call{method: http.MethodGet, path: "/appointments"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := setupAPI(t, 100, 100)
	req := httptest.NewRequest(http.MethodOptions, "/appointments", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestEmptyListsAreArrays(t *testing.T) {
	h := setupAPI(t, 100, 100)
	for _, path := range []string{"/appointments", "/users"} {
		rec := do(t, h, call{method: http.MethodGet, path: path})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String(), path)
	}
}
