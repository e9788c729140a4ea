package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core/prayer"
)

type prayerApi struct {
	svc      prayer.Service
	validate *validator.Validate
}

func registerPrayerAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := prayerApi{
		svc:      deps.PrayerSvc,
		validate: deps.Validate,
	}
	active := activeUserMiddleware(deps.UserSvc)

	mg := g.Group("/me/prayers", jwt, active)
	mg.GET("", api.mine)
	mg.POST("", api.create)
	mg.GET("/:id", api.retrieve)
	mg.PUT("/:id", api.update)
	mg.POST("/:id/answered", api.markAnswered)
	mg.DELETE("/:id", api.destroy)

	g.GET("/groups/:id/prayers", api.forGroup, jwt, active)
}

func (api *prayerApi) mine(ctx echo.Context) error {
	prayers, err := api.svc.Mine(ctx.Request().Context(), ctxUser(ctx).ID, bindPagination(ctx))
	if err != nil {
		return errors.Wrap(err, "listing prayers")
	}
	return ctx.JSON(http.StatusOK, prayers)
}

func (api *prayerApi) forGroup(ctx echo.Context) error {
	prayers, err := api.svc.ForGroup(ctx.Request().Context(), ctxUser(ctx).ID, ctx.Param("id"), bindPagination(ctx))
	if err != nil {
		return errors.Wrap(err, "listing group prayers")
	}
	return ctx.JSON(http.StatusOK, prayers)
}

func (api *prayerApi) create(ctx echo.Context) error {
	var data prayer.NewPrayer
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPrayer")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), ctxUser(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "creating prayer")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *prayerApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.Get(ctx.Request().Context(), ctxUser(ctx).ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting prayer")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *prayerApi) update(ctx echo.Context) error {
	var data prayer.UpdatePrayer
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePrayer")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Update(ctx.Request().Context(), ctxUser(ctx).ID, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating prayer")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *prayerApi) markAnswered(ctx echo.Context) error {
	var data AnsweredRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AnsweredRequest")
	}

	p, err := api.svc.MarkAnswered(ctx.Request().Context(), ctxUser(ctx).ID, ctx.Param("id"), data.Answered)
	if err != nil {
		return errors.Wrap(err, "marking prayer answered")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *prayerApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctxUser(ctx).ID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting prayer")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type AnsweredRequest struct {
	Answered bool `json:"answered"`
}
