package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/selah/core/group"
)

type groupApi struct {
	svc      group.Service
	validate *validator.Validate
}

func registerGroupAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps *Deps) {
	api := groupApi{
		svc:      deps.GroupSvc,
		validate: deps.Validate,
	}
	active := activeUserMiddleware(deps.UserSvc)

	gg := g.Group("/groups", jwt, active)
	gg.GET("", api.mine)
	gg.POST("", api.create)
	gg.POST("/join", api.join)
	gg.GET("/:id", api.retrieve)
	gg.PUT("/:id", api.update)
	gg.DELETE("/:id", api.destroy)
	gg.POST("/:id/invite-code", api.regenerateInviteCode)
	gg.POST("/:id/invites", api.invite)
	gg.POST("/:id/leave", api.leave)
	gg.GET("/:id/members", api.members)
	gg.DELETE("/:id/members/:member", api.removeMember)
	gg.GET("/:id/messages", api.messages)
	gg.POST("/:id/messages", api.postMessage)
	gg.GET("/:id/discussions", api.discussions)
	gg.POST("/:id/discussions", api.openDiscussion)

	dg := g.Group("/discussions", jwt, active)
	dg.GET("/:id", api.thread)
	dg.POST("/:id/posts", api.reply)
	dg.POST("/:id/assistant", api.askAssistant)
}

// Groups

func (api *groupApi) mine(ctx echo.Context) error {
	groups, err := api.svc.Mine(ctx.Request().Context(), ctxUser(ctx).ID)
	if err != nil {
		return errors.Wrap(err, "listing groups")
	}
	return ctx.JSON(http.StatusOK, groups)
}

func (api *groupApi) create(ctx echo.Context) error {
	var data group.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grp, err := api.svc.Create(ctx.Request().Context(), ctxUser(ctx), data)
	if err != nil {
		return errors.Wrap(err, "creating group")
	}
	return ctx.JSON(http.StatusCreated, grp)
}

func (api *groupApi) retrieve(ctx echo.Context) error {
	grp, err := api.svc.Get(ctx.Request().Context(), ctxUser(ctx).ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) update(ctx echo.Context) error {
	var data group.NewGroup
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewGroup")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grp, err := api.svc.Update(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) regenerateInviteCode(ctx echo.Context) error {
	grp, err := api.svc.RegenerateInviteCode(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "regenerating invite code")
	}
	return ctx.JSON(http.StatusOK, grp)
}

// Membership

func (api *groupApi) join(ctx echo.Context) error {
	var data group.Join
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Join")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	grp, err := api.svc.Join(ctx.Request().Context(), ctxUser(ctx), data.InviteCode)
	if err != nil {
		return errors.Wrap(err, "joining group")
	}
	return ctx.JSON(http.StatusOK, grp)
}

func (api *groupApi) invite(ctx echo.Context) error {
	var data group.Invite
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Invite")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.Invite(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), data.Email); err != nil {
		return errors.Wrap(err, "inviting to group")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Invitation sent."})
}

func (api *groupApi) leave(ctx echo.Context) error {
	if err := api.svc.Leave(ctx.Request().Context(), ctxUser(ctx).ID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "leaving group")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *groupApi) members(ctx echo.Context) error {
	members, err := api.svc.Members(ctx.Request().Context(), ctxUser(ctx).ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing members")
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *groupApi) removeMember(ctx echo.Context) error {
	if err := api.svc.RemoveMember(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), ctx.Param("member")); err != nil {
		return errors.Wrap(err, "removing member")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Chat

// messages pages through the chat oldest first: `?after=<next_cursor>&limit=n`.
func (api *groupApi) messages(ctx echo.Context) error {
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))
	page, err := api.svc.Messages(ctx.Request().Context(), ctxUser(ctx).ID, ctx.Param("id"), ctx.QueryParam("after"), limit)
	if err != nil {
		return errors.Wrap(err, "listing messages")
	}
	return ctx.JSON(http.StatusOK, page)
}

func (api *groupApi) postMessage(ctx echo.Context) error {
	var data group.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	msg, err := api.svc.PostMessage(ctx.Request().Context(), ctxUser(ctx).ID, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "posting message")
	}
	return ctx.JSON(http.StatusCreated, msg)
}

// Discussions

func (api *groupApi) discussions(ctx echo.Context) error {
	ds, err := api.svc.Discussions(ctx.Request().Context(), ctxUser(ctx).ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing discussions")
	}
	return ctx.JSON(http.StatusOK, ds)
}

func (api *groupApi) openDiscussion(ctx echo.Context) error {
	var data group.NewDiscussion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDiscussion")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	d, err := api.svc.OpenDiscussion(ctx.Request().Context(), ctxUser(ctx), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "opening discussion")
	}
	return ctx.JSON(http.StatusCreated, d)
}

func (api *groupApi) thread(ctx echo.Context) error {
	th, err := api.svc.Thread(ctx.Request().Context(), ctxUser(ctx).ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting thread")
	}
	return ctx.JSON(http.StatusOK, th)
}

func (api *groupApi) reply(ctx echo.Context) error {
	var data group.NewMessage
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMessage")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	post, err := api.svc.Reply(ctx.Request().Context(), ctxUser(ctx).ID, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "replying")
	}
	return ctx.JSON(http.StatusCreated, post)
}

func (api *groupApi) askAssistant(ctx echo.Context) error {
	post, err := api.svc.AskAssistant(ctx.Request().Context(), ctxUser(ctx).ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "asking assistant")
	}
	return ctx.JSON(http.StatusCreated, post)
}
