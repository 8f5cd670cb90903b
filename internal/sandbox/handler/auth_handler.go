package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eaglebank/webclient/internal/sandbox/query"
	"github.com/eaglebank/webclient/internal/sandbox/repository"
	"github.com/eaglebank/webclient/shared/cqrs"
	"github.com/eaglebank/webclient/shared/middleware"
	"github.com/eaglebank/webclient/shared/models"
)

// AuthCommander defines the write-side operations used by AuthHandler.
type AuthCommander interface {
	Signup(cqrs.SignupCommand) (*models.UserProfile, string, error)
	VerifyAccount(cqrs.VerifyAccountCommand) error
}

// AuthQuerier defines the read-side operations used by AuthHandler.
type AuthQuerier interface {
	Login(cqrs.LoginCommand) (string, error)
}

type AuthHandler struct {
	commands AuthCommander
	queries  AuthQuerier
}

func NewAuthHandler(commands AuthCommander, queries AuthQuerier) *AuthHandler {
	return &AuthHandler{commands: commands, queries: queries}
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req models.SignupForm
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	profile, _, err := h.commands.Signup(cqrs.SignupCommand{SignupForm: req})
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			middleware.RespondWithError(c, http.StatusConflict, "Email is already registered")
			return
		}
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to register user")
		return
	}

	middleware.RespondWithData(c, http.StatusCreated, profile, "Sign up successful. Please check your email to verify your account.")
}

func (h *AuthHandler) VerifyAccount(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		middleware.RespondWithError(c, http.StatusBadRequest, "Verification token is required")
		return
	}

	if err := h.commands.VerifyAccount(cqrs.VerifyAccountCommand{Token: token}); err != nil {
		if errors.Is(err, repository.ErrInvalidVerification) {
			middleware.RespondWithError(c, http.StatusBadRequest, "Invalid or expired verification token")
			return
		}
		middleware.RespondWithError(c, http.StatusInternalServerError, "Account verification failed")
		return
	}

	c.JSON(http.StatusOK, models.Response[any]{Success: true, Message: "Account verified successfully. You can now log in."})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req cqrs.LoginCommand
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	token, err := h.queries.Login(req)
	if err != nil {
		if errors.Is(err, query.ErrNotVerified) {
			middleware.RespondWithError(c, http.StatusForbidden, "Please verify your email before logging in")
			return
		}
		middleware.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	middleware.RespondWithData(c, http.StatusOK, models.LoginData{AuthToken: token}, "Login successful")
}
