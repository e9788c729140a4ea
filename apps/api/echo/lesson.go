package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core/lesson"
)

type lessonApi struct {
	svc      lesson.Service
	validate *validator.Validate
}

func registerLessonAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := lessonApi{
		svc:      deps.LessonSvc,
		validate: deps.Validate,
	}
	teacher := teacherMiddleware()

	lg := g.Group("/lessons", jwt, activeUserMiddleware(deps.UserSvc))
	lg.GET("", api.query)
	lg.POST("", api.create, teacher)
	lg.GET("/:id", api.retrieve)
	lg.PUT("/:id", api.update, teacher)
	lg.DELETE("/:id", api.destroy, teacher)
	lg.POST("/:id/publish", api.publish, teacher)
	lg.POST("/:id/unpublish", api.unpublish, teacher)
	lg.POST("/:id/complete", api.complete)
}

// query lists lessons: `?tag=&author=&search=&limit=&offset=`.
func (api *lessonApi) query(ctx echo.Context) error {
	filter := lesson.QueryFilter{
		Tag:        ctx.QueryParam("tag"),
		AuthorID:   ctx.QueryParam("author"),
		Search:     ctx.QueryParam("search"),
		Pagination: bindPagination(ctx),
	}
	lessons, err := api.svc.Query(ctx.Request().Context(), ctxUser(ctx), filter)
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *lessonApi) create(ctx echo.Context) error {
	var data lesson.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.Create(ctx.Request().Context(), ctxUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating lesson")
	}
	return ctx.JSON(http.StatusCreated, l)
}

func (api *lessonApi) retrieve(ctx echo.Context) error {
	l, err := api.svc.Get(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting lesson")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *lessonApi) update(ctx echo.Context) error {
	var data lesson.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	l, err := api.svc.Update(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *lessonApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *lessonApi) publish(ctx echo.Context) error {
	l, err := api.svc.Publish(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "publishing lesson")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *lessonApi) unpublish(ctx echo.Context) error {
	l, err := api.svc.Unpublish(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "unpublishing lesson")
	}
	return ctx.JSON(http.StatusOK, l)
}

func (api *lessonApi) complete(ctx echo.Context) error {
	res, err := api.svc.Complete(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "completing lesson")
	}
	return ctx.JSON(http.StatusOK, res)
}
