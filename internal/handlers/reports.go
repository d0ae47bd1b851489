package handlers

import (
	"bytes"

	"github.com/gofiber/fiber/v2"

	"github.com/soltixdb/statseries/internal/chart"
	"github.com/soltixdb/statseries/internal/config"
	"github.com/soltixdb/statseries/internal/models"
)

// ListReports lists the configured reports
// GET /v1/reports
func (h *Handler) ListReports(c *fiber.Ctx) error {
	return c.JSON(models.ReportListResponse{Reports: h.reports.List()})
}

// GetReport computes a configured report
// GET /v1/reports/:name
func (h *Handler) GetReport(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := h.reports.Run(ctx, c.Params("name"))
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(resp)
}

// GetReportChart renders a configured report as a chart page. With
// ?format=json the chart.js configuration is returned instead.
// GET /v1/reports/:name/chart
func (h *Handler) GetReportChart(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	name := c.Params("name")
	cfg, err := h.reports.Chart(ctx, name)
	if err != nil {
		return h.respondError(c, err)
	}

	if c.Query("format") == "json" {
		return c.JSON(cfg)
	}

	var buf bytes.Buffer
	if err := chart.RenderHTML(&buf, name, *cfg); err != nil {
		h.logger.Error("Failed to render chart", "report", name, "error", err)
		return h.respondError(c, err)
	}
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}

// RunReport computes a report definition supplied in the request body
// POST /v1/reports/run
func (h *Handler) RunReport(c *fiber.Ctx) error {
	var def config.ReportConfig
	if err := c.BodyParser(&def); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_JSON",
				Message: "Failed to parse JSON body",
				Path:    c.Path(),
				Details: map[string]interface{}{"error": err.Error()},
			},
		})
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := h.reports.RunAdHoc(ctx, def)
	if err != nil {
		return h.respondError(c, err)
	}
	return c.JSON(resp)
}
