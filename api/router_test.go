package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Domenick1991/skybooking/internal/auth"
	"github.com/Domenick1991/skybooking/internal/domain"
	"github.com/Domenick1991/skybooking/internal/repository/memory"
	"github.com/Domenick1991/skybooking/internal/service/booking"
	"github.com/Domenick1991/skybooking/internal/service/companies"
	"github.com/Domenick1991/skybooking/internal/service/flights"
	"github.com/Domenick1991/skybooking/internal/service/users"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testApp struct {
	t      *testing.T
	router *gin.Engine
	store  *memory.Store
}

func newTestApp(t *testing.T, limiter *IPRateLimiter) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()

	hash := func(p string) (string, error) { return auth.HashPassword(p, bcrypt.MinCost) }
	sessions := users.NewSessionService(store.Users(), auth.NewTokenIssuer("router-secret", time.Hour), log)

	router := NewRouter(log, sessions, Handlers{
		Users:     NewUserHandler(users.NewUserService(store.Users(), hash)),
		Companies: NewCompanyHandler(companies.NewCompanyService(store.Companies())),
		Flights:   NewFlightHandler(flights.NewFlightService(store.Flights(), store.Companies(), store.Bookings())),
		Bookings:  NewBookingHandler(booking.NewBookingService(store.Bookings(), store.Flights())),
		Session:   NewSessionHandler(sessions, limiter),
	})

	digest, err := hash("rootpass")
	require.NoError(t, err)
	root := domain.User{FirstName: "Root", Email: "root@example.com", Role: domain.RoleAdmin, PasswordDigest: digest}
	require.NoError(t, store.Users().Create(context.Background(), &root))

	return &testApp{t: t, router: router, store: store}
}

func (a *testApp) do(method, path, token string, body any) (int, map[string]any) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w.Code, out
}

func (a *testApp) login(email, password string) string {
	a.t.Helper()
	status, body := a.do(http.MethodPost, "/api/session", "", map[string]any{"session": map[string]any{"email": email, "password": password}})
	require.Equal(a.t, http.StatusCreated, status, body)
	return body["session"].(map[string]any)["token"].(string)
}

func (a *testApp) signup(first, email string) {
	a.t.Helper()
	status, body := a.do(http.MethodPost, "/api/users", "", map[string]any{"user": map[string]any{
		"first_name": first, "last_name": "Doe", "email": email, "password": "secret123"}})
	require.Equal(a.t, http.StatusCreated, status, body)
	assert.Equal(a.t, "traveler", body["user"].(map[string]any)["role"])
}

func idOf(body map[string]any, root string) int64 {
	return int64(body[root].(map[string]any)["id"].(float64))
}

func TestRouter_BookingFlow(t *testing.T) {
	app := newTestApp(t, nil)
	app.signup("Alice", "alice@example.com")
	app.signup("Bob", "bob@example.com")
	admin := app.login("root@example.com", "rootpass")
	alice := "Bearer " + app.login("alice@example.com", "secret123")
	bob := app.login("bob@example.com", "secret123")

	status, _ := app.do(http.MethodPost, "/api/companies", "", map[string]any{"name": "Sky"})
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = app.do(http.MethodPost, "/api/companies", alice, map[string]any{"name": "Sky"})
	assert.Equal(t, http.StatusForbidden, status)
	status, body := app.do(http.MethodPost, "/api/companies", admin, map[string]any{"company": map[string]any{"name": "Sky"}})
	require.Equal(t, http.StatusCreated, status, body)
	companyID := idOf(body, "company")

	departs := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second)
	status, body = app.do(http.MethodPost, "/api/flights", admin, map[string]any{
		"name": "SB-1", "no_of_seats": 3, "base_price": 100, "company_id": companyID,
		"departs_at": departs, "arrives_at": departs.Add(2 * time.Hour)})
	require.Equal(t, http.StatusCreated, status, body)
	flightID := idOf(body, "flight")
	assert.Equal(t, float64(100), body["flight"].(map[string]any)["current_price"])

	status, body = app.do(http.MethodPost, "/api/flights", admin, map[string]any{
		"name": "SB-2", "no_of_seats": 3, "base_price": 100, "company_id": companyID,
		"departs_at": departs.Add(time.Hour), "arrives_at": departs.Add(4 * time.Hour)})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []any{"no available aircrafts"}, body["errors"].(map[string]any)["departs_at"])

	status, body = app.do(http.MethodPost, "/api/bookings", alice, map[string]any{"flight_id": flightID, "no_of_seats": 2, "seat_price": 120})
	require.Equal(t, http.StatusCreated, status, body)
	bookingID := idOf(body, "booking")
	assert.Equal(t, float64(240), body["booking"].(map[string]any)["total_price"])

	status, body = app.do(http.MethodPost, "/api/bookings", bob, map[string]any{"booking": map[string]any{"flight_id": flightID, "no_of_seats": 2, "seat_price": 120}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["errors"], "no_of_seats")

	status, body = app.do(http.MethodGet, fmt.Sprintf("/api/flights/%d", flightID), "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["flight"].(map[string]any)["no_of_booked_seats"])
	assert.Equal(t, float64(1), body["flight"].(map[string]any)["available_seats"])

	status, _ = app.do(http.MethodGet, fmt.Sprintf("/api/bookings/%d", bookingID), bob, nil)
	assert.Equal(t, http.StatusForbidden, status)
	status, _ = app.do(http.MethodGet, "/api/bookings/999", bob, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = app.do(http.MethodGet, "/api/bookings", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = app.do(http.MethodPost, "/api/bookings", "", map[string]any{"flight_id": flightID, "no_of_seats": 1, "seat_price": 120})
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = app.do(http.MethodPatch, fmt.Sprintf("/api/bookings/%d", bookingID), "", map[string]any{"no_of_seats": 1})
	assert.Equal(t, http.StatusUnauthorized, status)
	status, _ = app.do(http.MethodDelete, fmt.Sprintf("/api/bookings/%d", bookingID), "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = app.do(http.MethodGet, "/api/bookings", bob, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["bookings"])
	status, body = app.do(http.MethodGet, "/api/bookings?active=true", admin, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["bookings"], 1)

	status, _ = app.do(http.MethodPatch, fmt.Sprintf("/api/bookings/%d", bookingID), alice, map[string]any{"no_of_seats": 3})
	assert.Equal(t, http.StatusOK, status)

	status, body = app.do(http.MethodGet, "/api/companies?active=true", "", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["companies"], 1)

	status, _ = app.do(http.MethodDelete, fmt.Sprintf("/api/flights/%d", flightID), admin, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, body = app.do(http.MethodGet, fmt.Sprintf("/api/bookings/%d", bookingID), alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, body["booking"].(map[string]any)["flight_id"])
}

func TestRouter_SessionLifecycle(t *testing.T) {
	app := newTestApp(t, nil)
	app.signup("Alice", "alice@example.com")

	status, body := app.do(http.MethodPost, "/api/session", "", map[string]any{"session": map[string]any{"email": "alice@example.com", "password": "nope"}})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, map[string]any{"credentials": []any{"are invalid"}}, body["errors"])

	token := app.login("alice@example.com", "secret123")
	status, _ = app.do(http.MethodGet, "/api/users", token, nil)
	assert.Equal(t, http.StatusForbidden, status, "only admins list users")

	status, _ = app.do(http.MethodDelete, "/api/session", token, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = app.do(http.MethodGet, "/api/bookings", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, map[string]any{"token": []any{"is invalid"}}, body["errors"])

	status, _ = app.do(http.MethodGet, "/api/flights", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, status, "a token that does not resolve is rejected")
}

func TestRouter_SessionRateLimit(t *testing.T) {
	app := newTestApp(t, NewIPRateLimiter(1, 2))
	creds := map[string]any{"session": map[string]any{"email": "root@example.com", "password": "bad"}}

	status, _ := app.do(http.MethodPost, "/api/session", "", creds)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = app.do(http.MethodPost, "/api/session", "", creds)
	assert.Equal(t, http.StatusBadRequest, status)
	status, _ = app.do(http.MethodPost, "/api/session", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestRouter_RequestIDIsEchoed(t *testing.T) {
	app := newTestApp(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/flights", nil)
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	status, body := app.do(http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Record not found", body["errors"])
}
