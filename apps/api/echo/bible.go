package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/bible"
)

type bibleApi struct {
	svc bible.Service
}

// registerBibleAPI mounts the public Bible browsing endpoints.
func registerBibleAPI(g *echo.Group, deps *Deps) {
	api := bibleApi{svc: deps.BibleSvc}

	bg := g.Group("/bible")
	bg.GET("/translations", api.translations)
	bg.GET("/books", api.books)
	bg.GET("/books/:book", api.book)
	bg.GET("/passage", api.passage)
	bg.GET("/verse-of-the-day", api.verseOfTheDay)
	bg.GET("/:translation/:book/:chapter", api.chapter)
	bg.GET("/:translation/:book/:chapter/audio", api.audio)
}

func (api *bibleApi) translations(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Translations())
}

func (api *bibleApi) books(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.svc.Books())
}

func (api *bibleApi) book(ctx echo.Context) error {
	b, err := api.svc.Book(ctx.Param("book"))
	if err != nil {
		return errors.Wrap(err, "getting book")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *bibleApi) chapter(ctx echo.Context) error {
	chapter, err := intParam(ctx, "chapter")
	if err != nil {
		return err
	}
	p, err := api.svc.Chapter(ctx.Request().Context(), ctx.Param("translation"), ctx.Param("book"), chapter)
	if err != nil {
		return errors.Wrap(err, "getting chapter")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *bibleApi) passage(ctx echo.Context) error {
	p, err := api.svc.Passage(ctx.Request().Context(), ctx.QueryParam("translation"), ctx.QueryParam("ref"))
	if err != nil {
		return errors.Wrap(err, "getting passage")
	}
	return ctx.JSON(http.StatusOK, p)
}

// audio redirects to the chapter recording unless `?json=1` asks for the URL itself.
func (api *bibleApi) audio(ctx echo.Context) error {
	chapter, err := intParam(ctx, "chapter")
	if err != nil {
		return err
	}
	url, err := api.svc.AudioURL(ctx.Param("translation"), ctx.Param("book"), chapter)
	if err != nil {
		return errors.Wrap(err, "getting audio URL")
	}
	if ctx.QueryParam("json") != "" {
		return ctx.JSON(http.StatusOK, AudioResponse{URL: url})
	}
	return ctx.Redirect(http.StatusFound, url)
}

// verseOfTheDay picks the verse of `?date=YYYY-MM-DD`, today (UTC) by default.
func (api *bibleApi) verseOfTheDay(ctx echo.Context) error {
	day := core.Now()
	if d := ctx.QueryParam("date"); d != "" {
		var err error
		if day, err = time.Parse(core.DateLayout, d); err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "date", Error: "must be a date in the YYYY-MM-DD format"})
		}
	}
	p, err := api.svc.VerseOfTheDay(ctx.Request().Context(), ctx.QueryParam("translation"), day)
	if err != nil {
		return errors.Wrap(err, "getting verse of the day")
	}
	return ctx.JSON(http.StatusOK, p)
}

type AudioResponse struct {
	URL string `json:"url"`
}
