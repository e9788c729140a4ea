package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core/annotation"
)

type annotationApi struct {
	svc      annotation.Service
	validate *validator.Validate
}

func registerAnnotationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := annotationApi{
		svc:      deps.AnnotationSvc,
		validate: deps.Validate,
	}

	mg := g.Group("/me", jwt, activeUserMiddleware(deps.UserSvc))

	mg.GET("/bookmarks", api.bookmarks)
	mg.POST("/bookmarks", api.addBookmark)
	mg.DELETE("/bookmarks/:id", api.removeBookmark)

	mg.GET("/highlights", api.highlights)
	mg.PUT("/highlights", api.highlight)
	mg.DELETE("/highlights/:id", api.removeHighlight)

	mg.GET("/notes", api.notes)
	mg.POST("/notes", api.createNote)
	mg.GET("/notes/:id", api.note)
	mg.PUT("/notes/:id", api.updateNote)
	mg.DELETE("/notes/:id", api.deleteNote)
}

func bindFilter(ctx echo.Context) (annotation.Filter, error) {
	var filter annotation.Filter
	if err := ctx.Bind(&filter); err != nil {
		return filter, errors.Wrap(err, "binding to Filter")
	}
	return filter, nil
}

// Bookmarks

func (api *annotationApi) bookmarks(ctx echo.Context) error {
	filter, err := bindFilter(ctx)
	if err != nil {
		return err
	}
	bms, err := api.svc.Bookmarks(ctx.Request().Context(), ctxUser(ctx).ID, filter)
	if err != nil {
		return errors.Wrap(err, "listing bookmarks")
	}
	return ctx.JSON(http.StatusOK, bms)
}

// addBookmark answers 201 for a new bookmark and 200 with the existing one otherwise.
func (api *annotationApi) addBookmark(ctx echo.Context) error {
	var data annotation.NewBookmark
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBookmark")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	bm, created, err := api.svc.AddBookmark(ctx.Request().Context(), ctxUser(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "adding bookmark")
	}
	if created {
		return ctx.JSON(http.StatusCreated, bm)
	}
	return ctx.JSON(http.StatusOK, bm)
}

func (api *annotationApi) removeBookmark(ctx echo.Context) error {
	if err := api.svc.RemoveBookmark(ctx.Request().Context(), ctxUser(ctx).ID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "removing bookmark")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Highlights

func (api *annotationApi) highlights(ctx echo.Context) error {
	filter, err := bindFilter(ctx)
	if err != nil {
		return err
	}
	hls, err := api.svc.Highlights(ctx.Request().Context(), ctxUser(ctx).ID, filter)
	if err != nil {
		return errors.Wrap(err, "listing highlights")
	}
	return ctx.JSON(http.StatusOK, hls)
}

func (api *annotationApi) highlight(ctx echo.Context) error {
	var data annotation.NewHighlight
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewHighlight")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	hl, err := api.svc.Highlight(ctx.Request().Context(), ctxUser(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "highlighting")
	}
	return ctx.JSON(http.StatusOK, hl)
}

func (api *annotationApi) removeHighlight(ctx echo.Context) error {
	if err := api.svc.RemoveHighlight(ctx.Request().Context(), ctxUser(ctx).ID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "removing highlight")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Notes

func (api *annotationApi) notes(ctx echo.Context) error {
	filter, err := bindFilter(ctx)
	if err != nil {
		return err
	}
	notes, err := api.svc.Notes(ctx.Request().Context(), ctxUser(ctx).ID, filter)
	if err != nil {
		return errors.Wrap(err, "listing notes")
	}
	return ctx.JSON(http.StatusOK, notes)
}

func (api *annotationApi) createNote(ctx echo.Context) error {
	var data annotation.NewNote
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewNote")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	n, err := api.svc.CreateNote(ctx.Request().Context(), ctxUser(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "creating note")
	}
	return ctx.JSON(http.StatusCreated, n)
}

func (api *annotationApi) note(ctx echo.Context) error {
	n, err := api.svc.GetNote(ctx.Request().Context(), ctxUser(ctx).ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting note")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *annotationApi) updateNote(ctx echo.Context) error {
	var data annotation.UpdateNote
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateNote")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	n, err := api.svc.UpdateNote(ctx.Request().Context(), ctxUser(ctx).ID, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating note")
	}
	return ctx.JSON(http.StatusOK, n)
}

func (api *annotationApi) deleteNote(ctx echo.Context) error {
	if err := api.svc.DeleteNote(ctx.Request().Context(), ctxUser(ctx).ID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting note")
	}
	return ctx.NoContent(http.StatusNoContent)
}
