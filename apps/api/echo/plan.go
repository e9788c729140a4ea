package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core/plan"
)

type planApi struct {
	svc      plan.Service
	validate *validator.Validate
}

func registerPlanAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := planApi{
		svc:      deps.PlanSvc,
		validate: deps.Validate,
	}
	active := activeUserMiddleware(deps.UserSvc)

	pg := g.Group("/plans", jwt, active)
	pg.GET("", api.list)
	pg.POST("", api.create, teacherMiddleware())
	pg.GET("/:id", api.retrieve)
	pg.DELETE("/:id", api.destroy, teacherMiddleware())
	pg.POST("/:id/publish", api.publish(true), teacherMiddleware())
	pg.POST("/:id/unpublish", api.publish(false), teacherMiddleware())
	pg.POST("/:id/enroll", api.enroll)

	mg := g.Group("/me/plans", jwt, active)
	mg.GET("", api.mine)
	mg.POST("/:id/days/:day/complete", api.completeDay)
}

func (api *planApi) list(ctx echo.Context) error {
	plans, err := api.svc.List(ctx.Request().Context(), ctxUser(ctx), bindPagination(ctx))
	if err != nil {
		return errors.Wrap(err, "listing plans")
	}
	return ctx.JSON(http.StatusOK, plans)
}

func (api *planApi) create(ctx echo.Context) error {
	var data plan.NewPlan
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPlan")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), ctxUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating plan")
	}
	return ctx.JSON(http.StatusCreated, p)
}

// retrieve hides drafts from everyone but their author and admins.
func (api *planApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting plan")
	}
	usr := ctxUser(ctx)
	if !p.Published && p.AuthorID != usr.ID && !usr.IsAdmin() {
		return plan.ErrNotFound
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *planApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting plan")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *planApi) publish(published bool) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		p, err := api.svc.SetPublished(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), published)
		if err != nil {
			return errors.Wrap(err, "publishing plan")
		}
		return ctx.JSON(http.StatusOK, p)
	}
}

func (api *planApi) enroll(ctx echo.Context) error {
	var data plan.Enroll
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Enroll")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	en, err := api.svc.Enroll(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, en)
}

func (api *planApi) mine(ctx echo.Context) error {
	progress, err := api.svc.MyPlans(ctx.Request().Context(), ctxUser(ctx))
	if err != nil {
		return errors.Wrap(err, "listing my plans")
	}
	return ctx.JSON(http.StatusOK, progress)
}

func (api *planApi) completeDay(ctx echo.Context) error {
	day, err := intParam(ctx, "day")
	if err != nil {
		return err
	}
	res, err := api.svc.CompleteDay(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), day)
	if err != nil {
		return errors.Wrap(err, "completing plan day")
	}
	return ctx.JSON(http.StatusOK, res)
}
