package echoapi

import (
	"strconv"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/masomo-bff/core"
)

const (
	defaultOverviewDays  = 30
	defaultOverviewLimit = 10
)

type (
	overviewQuery struct {
		Days  int `query:"days" validate:"min=1,max=180"`
		Limit int `query:"limit" validate:"min=1,max=100"`
	}

	studentQuery struct {
		UserID int64 `query:"userId" validate:"gt=0"`
	}
)

func (q *overviewQuery) Bind(ctx echo.Context) error {
	q.Days, q.Limit = defaultOverviewDays, defaultOverviewLimit

	var flds []core.FieldError
	bindInt(ctx, "days", &q.Days, &flds)
	bindInt(ctx, "limit", &q.Limit, &flds)
	if len(flds) > 0 {
		return core.NewValidationError(errInvalidQuery, flds...)
	}
	return nil
}

func (q overviewQuery) Validate(validate *validator.Validate, translator ut.Translator) error {
	return translateValidation(validate.Struct(q), translator)
}

// Bind falls back to the caller's own id when userId is absent.
func (q *studentQuery) Bind(ctx echo.Context) error {
	raw := core.CleanString(ctx.QueryParam("userId"))
	if raw == "" {
		if id := getRequestContext(ctx).Identity; id != nil {
			q.UserID = id.ID
		}
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return core.NewValidationError(errInvalidQuery, core.FieldError{Field: "userId", Error: "userId must be an integer"})
	}
	q.UserID = n
	return nil
}

func (q studentQuery) Validate(validate *validator.Validate, translator ut.Translator) error {
	return translateValidation(validate.Struct(q), translator)
}

func bindInt(ctx echo.Context, name string, dst *int, flds *[]core.FieldError) {
	raw := core.CleanString(ctx.QueryParam(name))
	if raw == "" {
		return
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*flds = append(*flds, core.FieldError{Field: name, Error: name + " must be an integer"})
		return
	}
	*dst = n
}

// translateValidation turns validator errors into a core.ValidationError with readable field messages.
func translateValidation(err error, translator ut.Translator) error {
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	flds := make([]core.FieldError, 0, len(vErrs))
	for _, vErr := range vErrs {
		flds = append(flds, core.FieldError{Field: vErr.Field(), Error: vErr.Translate(translator)})
	}
	return core.NewValidationError(errInvalidQuery, flds...)
}
