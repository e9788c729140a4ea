package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core/notification"
)

type notificationApi struct {
	svc      notification.Service
	validate *validator.Validate
}

func registerNotificationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := notificationApi{
		svc:      deps.NotificationSvc,
		validate: deps.Validate,
	}

	g.GET("/push/vapid-key", api.vapidKey)

	mg := g.Group("/me", jwt, activeUserMiddleware(deps.UserSvc))
	mg.POST("/push-subscriptions", api.subscribe)
	mg.DELETE("/push-subscriptions", api.unsubscribe)
	mg.GET("/notification-preferences", api.preferences)
	mg.PUT("/notification-preferences", api.updatePreferences)
}

func (api *notificationApi) vapidKey(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, VAPIDKeyResponse{PublicKey: api.svc.VAPIDPublicKey()})
}

func (api *notificationApi) subscribe(ctx echo.Context) error {
	var data notification.NewSubscription
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubscription")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.Subscribe(ctx.Request().Context(), ctxUser(ctx).ID, data)
	if err != nil {
		return errors.Wrap(err, "subscribing")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *notificationApi) unsubscribe(ctx echo.Context) error {
	var data notification.Unsubscribe
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Unsubscribe")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.Unsubscribe(ctx.Request().Context(), ctxUser(ctx).ID, data.Endpoint); err != nil {
		return errors.Wrap(err, "unsubscribing")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *notificationApi) preferences(ctx echo.Context) error {
	prefs, err := api.svc.Preferences(ctx.Request().Context(), ctxUser(ctx))
	if err != nil {
		return errors.Wrap(err, "listing notification preferences")
	}
	return ctx.JSON(http.StatusOK, prefs)
}

func (api *notificationApi) updatePreferences(ctx echo.Context) error {
	var data notification.UpdatePreferences
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdatePreferences")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	prefs, err := api.svc.UpdatePreferences(ctx.Request().Context(), ctxUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "updating notification preferences")
	}
	return ctx.JSON(http.StatusOK, prefs)
}

type VAPIDKeyResponse struct {
	PublicKey string `json:"public_key"`
}
