package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core/podcast"
)

type podcastApi struct {
	svc      podcast.Service
	validate *validator.Validate
}

func registerPodcastAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := podcastApi{
		svc:      deps.PodcastSvc,
		validate: deps.Validate,
	}
	teacher := teacherMiddleware()

	pg := g.Group("/podcasts", jwt, activeUserMiddleware(deps.UserSvc))
	pg.GET("", api.list)
	pg.POST("", api.create, teacher)
	pg.GET("/:id", api.retrieve)
	pg.PUT("/:id", api.update, teacher)
	pg.DELETE("/:id", api.destroy, teacher)
	pg.GET("/:id/episodes", api.episodes)
	pg.POST("/:id/episodes", api.addEpisode, teacher)

	pg.GET("/episodes/:id", api.episode)
	pg.PUT("/episodes/:id", api.updateEpisode, teacher)
	pg.DELETE("/episodes/:id", api.deleteEpisode, teacher)
	pg.GET("/episodes/:id/progress", api.progress)
	pg.PUT("/episodes/:id/progress", api.saveProgress)
}

// Podcasts

func (api *podcastApi) list(ctx echo.Context) error {
	podcasts, err := api.svc.List(ctx.Request().Context(), bindPagination(ctx))
	if err != nil {
		return errors.Wrap(err, "listing podcasts")
	}
	return ctx.JSON(http.StatusOK, podcasts)
}

func (api *podcastApi) create(ctx echo.Context) error {
	var data podcast.NewPodcast
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPodcast")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Create(ctx.Request().Context(), ctxUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating podcast")
	}
	return ctx.JSON(http.StatusCreated, p)
}

func (api *podcastApi) retrieve(ctx echo.Context) error {
	p, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting podcast")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *podcastApi) update(ctx echo.Context) error {
	var data podcast.NewPodcast
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewPodcast")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	p, err := api.svc.Update(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating podcast")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *podcastApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting podcast")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Episodes

func (api *podcastApi) episodes(ctx echo.Context) error {
	eps, err := api.svc.Episodes(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing episodes")
	}
	return ctx.JSON(http.StatusOK, eps)
}

func (api *podcastApi) addEpisode(ctx echo.Context) error {
	var data podcast.NewEpisode
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEpisode")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ep, err := api.svc.AddEpisode(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding episode")
	}
	return ctx.JSON(http.StatusCreated, ep)
}

func (api *podcastApi) episode(ctx echo.Context) error {
	ep, err := api.svc.Episode(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting episode")
	}
	return ctx.JSON(http.StatusOK, ep)
}

func (api *podcastApi) updateEpisode(ctx echo.Context) error {
	var data podcast.NewEpisode
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEpisode")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ep, err := api.svc.UpdateEpisode(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating episode")
	}
	return ctx.JSON(http.StatusOK, ep)
}

func (api *podcastApi) deleteEpisode(ctx echo.Context) error {
	if err := api.svc.DeleteEpisode(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting episode")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Listening progress

func (api *podcastApi) progress(ctx echo.Context) error {
	p, err := api.svc.Progress(ctx.Request().Context(), ctxUser(ctx).ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting progress")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *podcastApi) saveProgress(ctx echo.Context) error {
	var data podcast.UpdateProgress
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProgress")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.SaveProgress(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "saving progress")
	}
	return ctx.JSON(http.StatusOK, res)
}
