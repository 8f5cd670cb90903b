package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eaglebank/webclient/internal/sandbox/repository"
	"github.com/eaglebank/webclient/shared/cqrs"
	"github.com/eaglebank/webclient/shared/middleware"
	"github.com/eaglebank/webclient/shared/models"
)

// UserCommander defines the write-side operations used by UserHandler.
type UserCommander interface {
	UpdateUser(cqrs.UpdateProfileCommand) (*models.UserProfile, error)
}

// UserQuerier defines the read-side operations used by UserHandler.
type UserQuerier interface {
	GetUser(cqrs.GetUserQuery) (*models.UserProfile, error)
}

type UserHandler struct {
	commands UserCommander
	queries  UserQuerier
}

func NewUserHandler(commands UserCommander, queries UserQuerier) *UserHandler {
	return &UserHandler{commands: commands, queries: queries}
}

func (h *UserHandler) GetUser(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	profile, err := h.queries.GetUser(cqrs.GetUserQuery{
		UserID:           c.Param("id"),
		RequestingUserID: userID,
	})
	if err != nil {
		respondUserError(c, err, "Error fetching user profile")
		return
	}

	middleware.RespondWithData(c, http.StatusOK, profile, "")
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req models.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	profile, err := h.commands.UpdateUser(cqrs.UpdateProfileCommand{
		UserID:           c.Param("id"),
		RequestingUserID: userID,
		ProfileUpdate:    req,
	})
	if err != nil {
		respondUserError(c, err, "Error updating user profile")
		return
	}

	middleware.RespondWithData(c, http.StatusOK, profile, "Profile updated successfully")
}

func respondUserError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, repository.ErrForbidden):
		middleware.RespondWithError(c, http.StatusForbidden, "You can only access your own profile")
	case errors.Is(err, repository.ErrUserNotFound):
		middleware.RespondWithError(c, http.StatusNotFound, "User not found")
	case errors.Is(err, repository.ErrEmailTaken):
		middleware.RespondWithError(c, http.StatusConflict, "Email is already registered")
	default:
		middleware.RespondWithError(c, http.StatusInternalServerError, fallback)
	}
}
