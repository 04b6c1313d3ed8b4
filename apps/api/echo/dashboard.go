package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-bff/core/dashboard"
)

// envelope is the success body: {code:0, message:"OK", data}.
type envelope struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func newEnvelope(data interface{}) envelope {
	return envelope{Code: 0, Message: "OK", Data: data}
}

type dashboardAPI struct {
	svc        dashboard.Service
	validate   *validator.Validate
	translator ut.Translator
}

func registerDashboardAPI(
	e *echo.Echo,
	prefix string,
	svc dashboard.Service,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := dashboardAPI{
		svc:        svc,
		validate:   validate,
		translator: translator,
	}

	e.GET(prefix+"/admin/dashboard/overview", api.adminOverview,
		requireAdmin(),
		validateResponse(validate, func() interface{} { return new(dashboard.AdminOverview) }),
	)
	e.GET(prefix+"/portal/dashboard/student", api.studentDashboard,
		validateResponse(validate, func() interface{} { return new(dashboard.StudentDashboard) }),
	)
}

// Handlers

func health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, newEnvelope(nil))
}

func (api *dashboardAPI) adminOverview(ctx echo.Context) error {
	var q overviewQuery
	if err := q.Bind(ctx); err != nil {
		return err
	}
	if err := q.Validate(api.validate, api.translator); err != nil {
		return err
	}

	req := ctx.Request()
	data := api.svc.AdminOverview(req.Context(), dashboard.OverviewParams{
		Days:          q.Days,
		Limit:         q.Limit,
		TraceID:       getRequestContext(ctx).TraceID,
		Authorization: req.Header.Get(echo.HeaderAuthorization),
	})
	return ctx.JSON(http.StatusOK, newEnvelope(data))
}

func (api *dashboardAPI) studentDashboard(ctx echo.Context) error {
	var q studentQuery
	if err := q.Bind(ctx); err != nil {
		return err
	}
	if err := q.Validate(api.validate, api.translator); err != nil {
		return err
	}

	req := ctx.Request()
	data := api.svc.StudentDashboard(req.Context(), dashboard.StudentParams{
		UserID:        q.UserID,
		TraceID:       getRequestContext(ctx).TraceID,
		Authorization: req.Header.Get(echo.HeaderAuthorization),
	})
	return ctx.JSON(http.StatusOK, newEnvelope(data))
}
