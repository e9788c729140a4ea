package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/bible"
	"github.com/trezcool/selah/core/gamification"
)

var errNotAChapter = errors.New("chapter_read expects a chapter reference, e.g. JHN.3")

type gamificationApi struct {
	svc      gamification.Service
	validate *validator.Validate
}

func registerGamificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := gamificationApi{
		svc:      deps.GamificationSvc,
		validate: deps.Validate,
	}
	active := activeUserMiddleware(deps.UserSvc)

	g.GET("/achievements", api.achievements, jwt, active)
	g.GET("/leaderboard", api.leaderboard, jwt, active)

	mg := g.Group("/me", jwt, active)
	mg.GET("/stats", api.stats)
	mg.GET("/achievements", api.myAchievements)
	mg.POST("/activity", api.recordActivity)
}

func (api *gamificationApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context(), ctxUser(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "getting stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *gamificationApi) achievements(ctx echo.Context) error {
	achs, err := api.svc.Achievements(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing achievements")
	}
	return ctx.JSON(http.StatusOK, achs)
}

func (api *gamificationApi) myAchievements(ctx echo.Context) error {
	achs, err := api.svc.UserAchievements(ctx.Request().Context(), ctxUser(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "listing user achievements")
	}
	return ctx.JSON(http.StatusOK, achs)
}

// leaderboard lists the top `?limit=n` users by XP.
func (api *gamificationApi) leaderboard(ctx echo.Context) error {
	limit, _ := strconv.Atoi(ctx.QueryParam(limitParam))
	entries, err := api.svc.Leaderboard(ctx.Request().Context(), limit)
	if err != nil {
		return errors.Wrap(err, "getting leaderboard")
	}
	return ctx.JSON(http.StatusOK, entries)
}

// recordActivity rewards the activities reported by the client itself.
func (api *gamificationApi) recordActivity(ctx echo.Context) error {
	var data ActivityRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ActivityRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Reward(ctx.Request().Context(), ctxUser(ctx).ID, gamification.Kind(data.Kind), data.Ref)
	if err != nil {
		return errors.Wrap(err, "rewarding activity")
	}
	return ctx.JSON(http.StatusOK, res)
}

type ActivityRequest struct {
	Kind string `json:"kind" validate:"required,oneof=chapter_read prayer"`
	Ref  string `json:"ref" validate:"required,max=100"`
}

// Validate also normalizes chapter references, so re-reading JHN.3 and jhn.3 the same day earns XP once.
func (ar *ActivityRequest) Validate(validate *validator.Validate) error {
	ar.Ref = core.CleanString(ar.Ref)
	if err := validate.Struct(ar); err != nil {
		return err
	}
	if gamification.Kind(ar.Kind) != gamification.KindChapterRead {
		return nil
	}
	ref, err := bible.ParseReference(ar.Ref)
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "ref", Error: err.Error()})
	}
	if !ref.IsChapter() {
		return core.NewValidationError(errNotAChapter, core.FieldError{Field: "ref", Error: errNotAChapter.Error()})
	}
	ar.Ref = ref.String()
	return nil
}
