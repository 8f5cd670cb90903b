package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eaglebank/webclient/shared/models"
	"github.com/eaglebank/webclient/shared/validation"
)

type errorDetail struct {
	Field       string `json:"field"`
	Description string `json:"description"`
}

type BadRequestErrorResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Errors  []errorDetail `json:"errors"`
}

func ValidateRequest(obj any) validation.Errors {
	return validation.Struct(obj)
}

func RespondWithValidationError(c *gin.Context, errs validation.Errors) {
	details := make([]errorDetail, 0, len(errs))
	for _, fe := range errs {
		details = append(details, errorDetail{Field: fe.Field, Description: fe.Field + ": " + fe.Message})
	}
	c.JSON(http.StatusBadRequest, BadRequestErrorResponse{
		Message: "Invalid request data",
		Errors:  details,
	})
}

func RespondWithError(c *gin.Context, code int, message string) {
	c.JSON(code, models.Fail[any](message))
}

func RespondWithData(c *gin.Context, code int, data any, message string) {
	c.JSON(code, models.OK[any](data, message))
}
