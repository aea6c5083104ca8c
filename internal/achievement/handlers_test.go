package achievement

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/pashagolub/pgxmock/v3"
)

func passThrough(c *fiber.Ctx) error { return c.Next() }

func TestDefinitionsAndListValidation(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/achievements"), NewService(nil, nil, nil), passThrough)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/achievements/definitions", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("definitions status: %v", err)
	}
	var defs []Definition
	if err := json.NewDecoder(resp.Body).Decode(&defs); err != nil || len(defs) != 5 {
		t.Fatalf("definitions body: %v", err)
	}

	resp, _ = app.Test(httptest.NewRequest(http.MethodGet, "/achievements/", nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected bad request without userId, got %d", resp.StatusCode)
	}
}

func TestCheckHandler(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT type FROM user_achievements`).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"type"}))
	mock.ExpectExec(`INSERT INTO user_achievements`).
		WithArgs(pgxmock.AnyArg(), "user-1", ArtifactCollector, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), 150).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE users SET total_points`).
		WithArgs("user-1", 150).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	app := fiber.New()
	RegisterRoutes(app.Group("/achievements"), NewService(mock, nil, nil), passThrough)

	body := []byte(`{"userId":"user-1","type":"artifact","data":{}}`)
	req := httptest.NewRequest(http.MethodPost, "/achievements/check", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("check status: %v", err)
	}
	var res CheckResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.TotalPoints != 150 || len(res.NewAchievements) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCheckHandlerValidation(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/achievements"), NewService(nil, nil, nil), func(c *fiber.Ctx) error {
		c.Locals("user_id", "user-1")
		return c.Next()
	})

	cases := map[string]int{
		`{"type":"run","data":{}}`:                         http.StatusBadRequest,
		`{"userId":"user-1","type":"run"}`:                 http.StatusBadRequest,
		`{"userId":"user-1","type":"swim","data":{}}`:      http.StatusBadRequest,
		`{"userId":"someone-else","type":"run","data":{}}`: http.StatusForbidden,
	}
	for body, want := range cases {
		req := httptest.NewRequest(http.MethodPost, "/achievements/check", bytes.NewReader([]byte(body)))
		req.Header.Set("Content-Type", "application/json")
		resp, _ := app.Test(req)
		if resp.StatusCode != want {
			t.Fatalf("%s: expected %d, got %d", body, want, resp.StatusCode)
		}
	}
}
