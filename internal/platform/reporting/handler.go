package reporting

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/explorer/internal/dataset"
	"github.com/ehr/explorer/pkg/pagination"
)

// Handler provides HTTP handlers for the analysis API.
type Handler struct {
	runner *Runner
}

func NewHandler(runner *Runner) *Handler {
	return &Handler{runner: runner}
}

// RegisterRoutes registers the analysis API routes.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/analyses")
	g.GET("", h.ListAnalyses)
	g.GET("/:id", h.EvaluateAnalysis)
	g.GET("/:id/chart", h.Chart)
}

// ListAnalyses returns all analysis definitions.
func (h *Handler) ListAnalyses(c echo.Context) error {
	return c.JSON(http.StatusOK, Definitions)
}

// EvaluateAnalysis runs an analysis and returns one page of its rows.
func (h *Handler) EvaluateAnalysis(c echo.Context) error {
	report, err := h.evaluate(c)
	if err != nil {
		return err
	}

	total := len(report.Rows)
	p := pagination.FromContext(c).Clamp(total)
	start, end := p.Window(total)

	page := *report
	page.Rows = report.Rows[start:end]
	page.Chart = nil

	resp := pagination.NewResponse(page, total, p.Limit, p.Offset)
	resp.Links = p.Links(c.Request().URL.Path, c.QueryParams(), total)
	return c.JSON(http.StatusOK, resp)
}

// Chart runs an analysis and returns its Plotly figure.
func (h *Handler) Chart(c echo.Context) error {
	report, err := h.evaluate(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, report.Chart)
}

func (h *Handler) evaluate(c echo.Context) (*Report, error) {
	id := c.Param("id")
	def := Find(id)
	if def == nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "analysis not found")
	}

	// Collect parameters from query string
	params := Params{}
	for _, p := range def.Parameters {
		if v := c.QueryParam(p.Name); v != "" {
			params[p.Name] = v
		}
	}

	report, err := h.runner.Evaluate(c.Request().Context(), id, params)
	if err != nil {
		return nil, httpError(err)
	}
	return report, nil
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrUnknownAnalysis):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrMissingParameter), errors.Is(err, ErrInvalidParameter):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, dataset.ErrTableNotFound), errors.Is(err, dataset.ErrMissingColumn):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
}
