package trip

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newTestApp(t *testing.T, dispatch *fakeDispatch) (*fiber.App, *Manager) {
	t.Helper()
	m := NewManager(testConfig(), dispatch, testCache(t), &fakeTracker{}, nil, nil, nil)
	app := fiber.New()
	RegisterRoutes(app.Group("/trips"), m, func(c *fiber.Ctx) error { return c.Next() })
	return app, m
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app test: %v", err)
	}
	return resp
}

func TestStartTripHandler(t *testing.T) {
	app, _ := newTestApp(t, &fakeDispatch{online: true})

	resp := postJSON(t, app, "/trips/", testRequest())
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	var got Trip
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != "trip-1" {
		t.Fatalf("unexpected trip: %+v", got)
	}

	// a second start conflicts with the running trip
	resp = postJSON(t, app, "/trips/", testRequest())
	if resp.StatusCode != fiber.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
}

func TestStartTripHandlerValidation(t *testing.T) {
	app, _ := newTestApp(t, &fakeDispatch{online: true})

	resp := postJSON(t, app, "/trips/", CreateRequest{SiteID: "site-1"})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestStartTripHandlerDispatchDown(t *testing.T) {
	app, _ := newTestApp(t, &fakeDispatch{createErr: errors.New("dispatch down")})

	resp := postJSON(t, app, "/trips/", testRequest())
	if resp.StatusCode != fiber.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
}

func TestEndTripHandler(t *testing.T) {
	app, _ := newTestApp(t, &fakeDispatch{online: true})

	resp := postJSON(t, app, "/trips/end", nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 without a trip, got %d", resp.StatusCode)
	}

	if resp := postJSON(t, app, "/trips/", testRequest()); resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("start failed: %d", resp.StatusCode)
	}
	resp = postJSON(t, app, "/trips/end", nil)
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

func TestForceEndHandlerRequiresReason(t *testing.T) {
	app, _ := newTestApp(t, &fakeDispatch{online: true})
	if resp := postJSON(t, app, "/trips/", testRequest()); resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("start failed")
	}

	resp := postJSON(t, app, "/trips/force-end", map[string]string{})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}

	resp = postJSON(t, app, "/trips/force-end", map[string]string{"reason": "breakdown"})
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

func TestCurrentHandler(t *testing.T) {
	app, m := newTestApp(t, &fakeDispatch{online: true})
	if _, err := m.Start(context.Background(), testRequest()); err != nil {
		t.Fatalf("start: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/trips/current", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var snap Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snap.State != StateActive || snap.Trip == nil {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestHistoryHandlerRejectsBadDate(t *testing.T) {
	app, _ := newTestApp(t, &fakeDispatch{online: true})

	req := httptest.NewRequest(http.MethodGet, "/trips/history?date=yesterday", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestDriveModeHandler(t *testing.T) {
	app, m := newTestApp(t, &fakeDispatch{online: true})

	req := httptest.NewRequest(http.MethodPut, "/trips/drive-mode", bytes.NewReader([]byte(`{"mode":"smart"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app test: %v", err)
	}
	if resp.StatusCode != fiber.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if m.DriveMode(context.Background()) != ModeSmart {
		t.Fatalf("mode not applied")
	}

	req = httptest.NewRequest(http.MethodPut, "/trips/drive-mode", bytes.NewReader([]byte(`{"mode":"turbo"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app test: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
