// README: End-to-end tests of the gin router over the in-memory store.
package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	httptransport "ridecore/internal/http"
	"ridecore/internal/infra"
	"ridecore/internal/logging"
	"ridecore/internal/maps"
	"ridecore/internal/modules/booking"
	"ridecore/internal/modules/driver"
	"ridecore/internal/modules/location"
	"ridecore/internal/modules/passenger"
	"ridecore/internal/modules/pricing"
	"ridecore/internal/modules/ranking"
	"ridecore/internal/storage/memory"
)

// stubTokenVerifier is a test double for infra.TokenVerifier.
type stubTokenVerifier struct {
	token *infra.FirebaseToken
	err   error
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.FirebaseToken, error) {
	return s.token, s.err
}

func makeVerifier(uid, role string) *stubTokenVerifier {
	claims := map[string]interface{}{}
	if role != "" {
		claims["role"] = role
	}
	return &stubTokenVerifier{token: &infra.FirebaseToken{UID: uid, Claims: claims}}
}

// buildTestRouter wires every service over a seeded in-memory store.
func buildTestRouter(t *testing.T, verifier infra.TokenVerifier) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logging.Discard()
	store := memory.NewStore()
	if err := store.SeedDemo(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	distance := maps.HaversineProvider{}
	pricingSvc := pricing.NewService(pricing.DefaultConfig())
	locations := location.NewService(nil, nil, location.Config{}, log)

	deps := httptransport.Deps{
		Bookings:   booking.NewService(store, pricingSvc, distance, booking.Config{ProviderTimeout: time.Second}, log),
		Drivers:    driver.NewService(store, locations, log),
		Passengers: passenger.NewService(store, locations, log),
		Ranking:    ranking.NewService(distance, pricingSvc, time.Second, log).WithDirectory(store, locations),
		Verifier:   verifier,
		Log:        log,
	}
	return httptransport.NewRouter(deps)
}

func doRequest(r *gin.Engine, method, path string, body interface{}, authHeader string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type bookingResp struct {
	Booking struct {
		ID       string   `json:"booking_id"`
		Status   string   `json:"status"`
		Fare     *float64 `json:"fare"`
		Version  int      `json:"version"`
		Fee      *float64 `json:"cancellation_fee"`
		DriverID string   `json:"driver_id"`
	} `json:"booking"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func createBooking(t *testing.T, r *gin.Engine, auth string) string {
	t.Helper()
	w := doRequest(r, http.MethodPost, "/api/bookings", map[string]any{
		"user_id":           "passenger_001",
		"driver_id":         "driver_001",
		"pickup_latitude":   28.6139,
		"pickup_longitude":  77.2090,
		"dropoff_latitude":  28.7041,
		"dropoff_longitude": 77.1025,
	}, auth)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	b := decode[bookingResp](t, w)
	if b.Booking.Status != "pending" || b.Booking.Fare == nil {
		t.Fatalf("unexpected booking %+v", b.Booking)
	}
	return b.Booking.ID
}

func TestHealth(t *testing.T) {
	r := buildTestRouter(t, nil)
	w := doRequest(r, http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("expected 200 OK, got %d %q", w.Code, w.Body.String())
	}
}

func TestMetricsExposed(t *testing.T) {
	r := buildTestRouter(t, nil)
	doRequest(r, http.MethodGet, "/health", nil, "")
	w := doRequest(r, http.MethodGet, "/metrics", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("ridecore_http_requests_total")) {
		t.Error("expected http request counter in metrics output")
	}
}

func TestBookingLifecycle(t *testing.T) {
	r := buildTestRouter(t, nil)
	id := createBooking(t, r, "")

	steps := []struct {
		path   string
		body   map[string]any
		status string
	}{
		{"/api/drivers/bookings/" + id + "/accept", map[string]any{"driver_id": "driver_001"}, "driver_accepted"},
		{"/api/bookings/" + id + "/confirm", map[string]any{"user_id": "passenger_001"}, "confirmed"},
		{"/api/drivers/bookings/" + id + "/start", map[string]any{"driver_id": "driver_001"}, "in_progress"},
		{"/api/drivers/bookings/" + id + "/complete", map[string]any{"driver_id": "driver_001"}, "completed"},
	}
	for _, s := range steps {
		w := doRequest(r, http.MethodPost, s.path, s.body, "")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", s.path, w.Code, w.Body.String())
		}
		if got := decode[bookingResp](t, w).Booking.Status; got != s.status {
			t.Fatalf("%s: expected status %s, got %s", s.path, s.status, got)
		}
	}

	w := doRequest(r, http.MethodGet, "/api/bookings/"+id+"/events", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("events: expected 200, got %d", w.Code)
	}
	events := decode[struct {
		Count int `json:"count"`
	}](t, w)
	if events.Count != 5 {
		t.Errorf("expected 5 events, got %d", events.Count)
	}

	w = doRequest(r, http.MethodGet, "/api/drivers/driver_001/bookings?status=COMPLETED", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("driver bookings: expected 200, got %d", w.Code)
	}
	if got := decode[struct {
		Count int `json:"count"`
	}](t, w).Count; got != 1 {
		t.Errorf("expected 1 completed booking, got %d", got)
	}
}

func TestErrorMapping(t *testing.T) {
	r := buildTestRouter(t, nil)
	id := createBooking(t, r, "")

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"unknown booking", http.MethodGet, "/api/bookings/nope", nil, http.StatusNotFound},
		{"second active booking", http.MethodPost, "/api/bookings", map[string]any{
			"user_id": "passenger_001", "driver_id": "driver_002",
			"pickup_latitude": 28.6, "pickup_longitude": 77.2,
		}, http.StatusConflict},
		{"start before accept", http.MethodPost, "/api/drivers/bookings/" + id + "/start", map[string]any{"driver_id": "driver_001"}, http.StatusConflict},
		{"confirm by other passenger", http.MethodPost, "/api/bookings/" + id + "/confirm", map[string]any{"user_id": "passenger_002"}, http.StatusForbidden},
		{"invalid coordinates", http.MethodPut, "/api/drivers/driver_002/location", map[string]any{"latitude": 91, "longitude": 0}, http.StatusBadRequest},
		{"missing coordinates", http.MethodPost, "/api/bookings", map[string]any{"user_id": "passenger_002", "driver_id": "driver_002"}, http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/api/drivers/driver_001/bookings?status=flying", nil, http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/passengers", "not-an-object", http.StatusBadRequest},
		{"unknown driver", http.MethodGet, "/api/drivers/driver_999/status", nil, http.StatusNotFound},
		{"directions without provider", http.MethodPost, "/api/maps/directions", map[string]any{
			"coordinates": [][]float64{{77.2090, 28.6139}, {77.1025, 28.7041}},
		}, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(r, tc.method, tc.path, tc.body, "")
			if w.Code != tc.want {
				t.Errorf("expected %d, got %d: %s", tc.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestPassengerCancelChargesFee(t *testing.T) {
	r := buildTestRouter(t, nil)
	id := createBooking(t, r, "")
	w := doRequest(r, http.MethodPost, "/api/bookings/"+id+"/cancel", map[string]any{"user_id": "passenger_001"}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	b := decode[bookingResp](t, w)
	if b.Booking.Status != "cancelled" || b.Booking.Fee == nil || *b.Booking.Fee <= 0 {
		t.Errorf("expected cancelled booking with a fee, got %+v", b.Booking)
	}
}

func TestNearbyDrivers(t *testing.T) {
	r := buildTestRouter(t, nil)
	w := doRequest(r, http.MethodPost, "/api/passengers/nearby-drivers", map[string]any{
		"user_id":   "passenger_001",
		"latitude":  28.6139,
		"longitude": 77.2090,
		"destination": map[string]any{
			"latitude":  28.7041,
			"longitude": 77.1025,
		},
	}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	res := decode[struct {
		Count   int `json:"count"`
		Drivers []struct {
			DriverID string `json:"driver_id"`
		} `json:"drivers"`
	}](t, w)
	if res.Count != 3 {
		t.Fatalf("expected 3 drivers, got %d", res.Count)
	}
	if res.Drivers[0].DriverID != "driver_001" {
		t.Errorf("expected the co-located driver first, got %s", res.Drivers[0].DriverID)
	}

	w = doRequest(r, http.MethodPost, "/api/passengers/nearby-drivers", map[string]any{
		"user_id": "passenger_001", "latitude": 28.6, "longitude": 77.2, "vehicle_preference": "suv",
	}, "")
	if got := decode[struct {
		Count int `json:"count"`
	}](t, w).Count; got != 1 {
		t.Errorf("expected 1 suv, got %d", got)
	}
}

func TestDriverAvailabilityToggle(t *testing.T) {
	r := buildTestRouter(t, nil)
	w := doRequest(r, http.MethodPut, "/api/drivers/driver_001/availability", map[string]any{"is_available": false}, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = doRequest(r, http.MethodPost, "/api/bookings", map[string]any{
		"user_id": "passenger_001", "driver_id": "driver_001",
		"pickup_latitude": 28.6, "pickup_longitude": 77.2,
	}, "")
	if w.Code != http.StatusConflict {
		t.Errorf("expected 409 for an offline driver, got %d", w.Code)
	}
	w = doRequest(r, http.MethodPut, "/api/drivers/driver_001/availability", map[string]any{}, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without is_available, got %d", w.Code)
	}
}

func TestAuth_Unauthenticated(t *testing.T) {
	r := buildTestRouter(t, &stubTokenVerifier{err: errors.New("no token")})
	w := doRequest(r, http.MethodPost, "/api/bookings", map[string]any{"user_id": "passenger_001"}, "Bearer badtoken")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	w = doRequest(r, http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK {
		t.Errorf("health must stay public, got %d", w.Code)
	}
}

func TestAuth_CallerMustMatchActor(t *testing.T) {
	r := buildTestRouter(t, makeVerifier("passenger_002", ""))
	w := doRequest(r, http.MethodPost, "/api/bookings", map[string]any{
		"user_id": "passenger_001", "driver_id": "driver_001",
		"pickup_latitude": 28.6, "pickup_longitude": 77.2,
	}, "Bearer t")
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestAuth_DriverRoutesRequireRole(t *testing.T) {
	r := buildTestRouter(t, makeVerifier("driver_001", ""))
	w := doRequest(r, http.MethodGet, "/api/drivers/driver_001/status", nil, "Bearer t")
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 without driver role, got %d", w.Code)
	}

	r = buildTestRouter(t, makeVerifier("driver_001", "driver"))
	w = doRequest(r, http.MethodGet, "/api/drivers/driver_001/status", nil, "Bearer t")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for the driver, got %d: %s", w.Code, w.Body.String())
	}
	w = doRequest(r, http.MethodGet, "/api/drivers/driver_002/status", nil, "Bearer t")
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for another driver's status, got %d", w.Code)
	}
}

func TestAuth_ActorDefaultsToCaller(t *testing.T) {
	passengerAuth := buildTestRouter(t, makeVerifier("passenger_001", ""))
	w := doRequest(passengerAuth, http.MethodPost, "/api/bookings", map[string]any{
		"driver_id": "driver_001", "pickup_latitude": 28.6, "pickup_longitude": 77.2,
	}, "Bearer t")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	id := decode[bookingResp](t, w).Booking.ID

	w = doRequest(passengerAuth, http.MethodGet, "/api/bookings/"+id, nil, "Bearer t")
	if w.Code != http.StatusOK {
		t.Errorf("expected the passenger to read the booking, got %d", w.Code)
	}
}
