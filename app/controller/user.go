package controller

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kalvora/accounts-auth/app/dto"
	dtohttp "github.com/kalvora/accounts-auth/app/dto/http"
	"github.com/kalvora/accounts-auth/app/entity"
)

type userFinder interface {
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	List(ctx context.Context) ([]*entity.User, error)
}

type UserController struct {
	users userFinder
}

func NewUserController(users userFinder) *UserController {
	return &UserController{users: users}
}

func (c *UserController) Me(ctx echo.Context) error {
	email, ok := ctx.Get("user_email").(string)
	if !ok {
		return ctx.JSON(http.StatusUnauthorized, dtohttp.ErrorResponse{Error: "unauthorized"})
	}

	user, err := c.users.FindByEmail(ctx.Request().Context(), email)
	if err != nil {
		return internalError(ctx, err)
	}
	if user == nil {
		return ctx.JSON(http.StatusNotFound, dtohttp.ErrorResponse{Error: "user not found"})
	}

	return ctx.JSON(http.StatusOK, dto.NewUserInfo(user))
}

func (c *UserController) List(ctx echo.Context) error {
	users, err := c.users.List(ctx.Request().Context())
	if err != nil {
		return internalError(ctx, err)
	}

	infos := make([]*dto.UserInfo, 0, len(users))
	for _, user := range users {
		infos = append(infos, dto.NewUserInfo(user))
	}
	return ctx.JSON(http.StatusOK, infos)
}
