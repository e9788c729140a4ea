package echoapi

import (
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core"
	"github.com/trezcool/selah/core/donation"
	"github.com/trezcool/selah/core/user"
)

const (
	stripeSignatureHeader = "Stripe-Signature"
	maxWebhookBodySize    = 64 << 10
)

type donationApi struct {
	conf     *core.Config
	svc      donation.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerDonationAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := donationApi{
		conf:     deps.Conf,
		svc:      deps.DonationSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}
	active := activeUserMiddleware(deps.UserSvc)

	// anonymous donations are welcome
	g.POST("/donations", api.create)
	g.GET("/donations/summary", api.summary, jwt, active, adminMiddleware())
	g.GET("/me/donations", api.mine, jwt, active)

	g.POST("/webhooks/stripe", api.stripeWebhook)
}

func (api *donationApi) create(ctx echo.Context) error {
	donor, err := getOptionalContextUser(ctx, api.conf, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data donation.NewDonation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDonation")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	res, err := api.svc.Create(ctx.Request().Context(), donor, data)
	if err != nil {
		return errors.Wrap(err, "creating donation")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *donationApi) mine(ctx echo.Context) error {
	donations, err := api.svc.Mine(ctx.Request().Context(), ctxUser(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "listing donations")
	}
	return ctx.JSON(http.StatusOK, donations)
}

func (api *donationApi) summary(ctx echo.Context) error {
	totals, err := api.svc.Summary(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "summarizing donations")
	}
	return ctx.JSON(http.StatusOK, totals)
}

// stripeWebhook needs the raw body: the signature covers the exact bytes sent.
func (api *donationApi) stripeWebhook(ctx echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxWebhookBodySize))
	if err != nil {
		return errors.Wrap(err, "reading webhook body")
	}
	if err := api.svc.HandleWebhook(ctx.Request().Context(), payload, ctx.Request().Header.Get(stripeSignatureHeader)); err != nil {
		return errors.Wrap(err, "handling stripe webhook")
	}
	return ctx.JSON(http.StatusOK, WebhookResponse{Received: true})
}

type WebhookResponse struct {
	Received bool `json:"received"`
}
