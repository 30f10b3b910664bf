package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"chatkit/internal/usecase"
	"chatkit/pkg/response"
)

type UserHandler struct {
	userUseCase *usecase.UserUseCase
}

func NewUserHandler(userUseCase *usecase.UserUseCase) *UserHandler {
	return &UserHandler{
		userUseCase: userUseCase,
	}
}

type updateProfileRequest struct {
	Username        string `json:"username" validate:"omitempty,min=3"`
	ProfileImageURL string `json:"profile_image_url" validate:"omitempty,url"`
}

// SearchUsers finds chat partners by username or email fragment. The
// authenticated user is never part of the result.
func (h *UserHandler) SearchUsers(c echo.Context) error {
	requesterID := c.Get("uid").(string)
	query := c.QueryParam("q")

	limit := 20
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	users, err := h.userUseCase.SearchUsers(c.Request().Context(), requesterID, query, limit)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, users)
}

func (h *UserHandler) UpdateProfile(c echo.Context) error {
	userID := c.Get("uid").(string)

	var req updateProfileRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	user, err := h.userUseCase.UpdateProfile(c.Request().Context(), userID, usecase.UpdateProfileInput{
		Username:        req.Username,
		ProfileImageURL: req.ProfileImageURL,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, user)
}
