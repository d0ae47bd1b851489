package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soltixdb/statseries/internal/chart"
	"github.com/soltixdb/statseries/internal/config"
	"github.com/soltixdb/statseries/internal/logging"
	"github.com/soltixdb/statseries/internal/models"
	"github.com/soltixdb/statseries/internal/series"
	"github.com/soltixdb/statseries/internal/services"
	"github.com/soltixdb/statseries/internal/statbank"
)

type fakeFetcher struct {
	group series.Group
	err   error
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string, _ map[string][]string) (series.Group, error) {
	return f.group, f.err
}

func month(m time.Month) time.Time { return series.Date(2020, m, 1) }

var electricCars = config.ReportConfig{
	Name:     "elbiler",
	Title:    "Elbiler",
	Table:    "BIL51",
	Selector: []config.SelectorConfig{{Variable: "DRIV", Values: []string{"El"}}},
	Steps:    []config.StepConfig{{Op: config.StepAccumulate}},
}

func newTestApp(f *fakeFetcher) *fiber.App {
	svc := services.NewReportService(logging.Nop(), f, []config.ReportConfig{electricCars})
	h := New(logging.Nop(), svc)

	app := fiber.New()
	app.Get("/v1/reports", h.ListReports)
	app.Post("/v1/reports/run", h.RunReport)
	app.Get("/v1/reports/:name", h.GetReport)
	app.Get("/v1/reports/:name/chart", h.GetReportChart)
	return app
}

func carsFetcher() *fakeFetcher {
	return &fakeFetcher{group: series.NewGroup(month(time.March),
		series.New(series.NewTagSet("El"),
			series.Point{Date: month(time.January), Value: 3},
			series.Point{Date: month(time.February), Value: 4},
		),
	)}
}

func TestHandler_ListReports(t *testing.T) {
	resp, err := newTestApp(carsFetcher()).Test(httptest.NewRequest("GET", "/v1/reports", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body models.ReportListResponse
	decode(t, resp.Body, &body)
	assert.Equal(t, []models.ReportSummary{{Name: "elbiler", Title: "Elbiler", Table: "BIL51", Steps: 1}}, body.Reports)
}

func TestHandler_GetReport(t *testing.T) {
	resp, err := newTestApp(carsFetcher()).Test(httptest.NewRequest("GET", "/v1/reports/elbiler", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body models.ReportResponse
	decode(t, resp.Body, &body)
	assert.Equal(t, "elbiler", body.Name)
	assert.Equal(t, []string{"2020-01", "2020-02"}, body.Labels)
	require.Len(t, body.Series, 1)
	assert.Equal(t, []int64{3, 7}, body.Series[0].Values)
}

func TestHandler_GetReport_Errors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		fetchErr   error
		wantStatus int
		wantCode   string
	}{
		{"unknown report", "/v1/reports/nope", nil, fiber.StatusNotFound, services.CodeReportNotFound},
		{"upstream failure", "/v1/reports/elbiler", fmt.Errorf("%w: status 503", statbank.ErrUpstream), fiber.StatusBadGateway, services.CodeUpstreamError},
		{"unknown selector", "/v1/reports/elbiler", fmt.Errorf("%w: DRIV=Hest", statbank.ErrUnknownSelector), fiber.StatusUnprocessableEntity, services.CodeUnknownSelector},
		{"deadline", "/v1/reports/elbiler", context.DeadlineExceeded, fiber.StatusGatewayTimeout, services.CodeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := carsFetcher()
			f.err = tt.fetchErr

			resp, err := newTestApp(f).Test(httptest.NewRequest("GET", tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body models.ErrorResponse
			decode(t, resp.Body, &body)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.Equal(t, tt.path, body.Error.Path)
		})
	}
}

func TestHandler_GetReportChart(t *testing.T) {
	app := newTestApp(carsFetcher())

	t.Run("html", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/v1/reports/elbiler/chart", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

		page, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(page), `<canvas id="elbiler">`)
		assert.Contains(t, string(page), `"2020-02"`)
	})

	t.Run("json", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest("GET", "/v1/reports/elbiler/chart?format=json", nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var cfg chart.Config
		decode(t, resp.Body, &cfg)
		assert.Equal(t, "bar", cfg.Type)
		assert.Equal(t, []string{"2020-01", "2020-02"}, cfg.Data.Labels)
	})
}

func TestHandler_RunReport(t *testing.T) {
	app := newTestApp(carsFetcher())

	body := `{"table":"BIL51","selector":[{"variable":"DRIV","values":["El"]}],"steps":[{"op":"scale","factor":10}]}`
	req := httptest.NewRequest("POST", "/v1/reports/run", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var report models.ReportResponse
	decode(t, resp.Body, &report)
	assert.Equal(t, "adhoc", report.Name)
	require.Len(t, report.Series, 1)
	assert.Equal(t, []int64{30, 40}, report.Series[0].Values)
}

func TestHandler_RunReport_BadRequests(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"table":`, "INVALID_JSON"},
		{"missing table", `{"steps":[]}`, services.CodeInvalidReport},
		{"unknown op", `{"table":"BIL51","steps":[{"op":"explode"}]}`, services.CodeInvalidReport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/reports/run", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			resp, err := newTestApp(carsFetcher()).Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

			var body models.ErrorResponse
			decode(t, resp.Body, &body)
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[string]int{
		services.CodeReportNotFound:  fiber.StatusNotFound,
		services.CodeInvalidReport:   fiber.StatusBadRequest,
		services.CodeUpstreamError:   fiber.StatusBadGateway,
		services.CodeDecodeError:     fiber.StatusBadGateway,
		services.CodePipelineError:   fiber.StatusUnprocessableEntity,
		services.CodeUnknownSelector: fiber.StatusUnprocessableEntity,
		services.CodeTimeout:         fiber.StatusGatewayTimeout,
		services.CodeInternalError:   fiber.StatusInternalServerError,
		"SOMETHING_ELSE":             fiber.StatusInternalServerError,
	}

	for code, want := range tests {
		assert.Equal(t, want, statusFor(code), code)
	}
}
