package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/coffeeandit/transaction/shared/apperror"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRequest runs the validate tags of obj. It returns nil when obj is
// valid.
func ValidateRequest(obj any) *apperror.ValidationError {
	err := validate.Struct(obj)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &apperror.ValidationError{Message: err.Error()}
	}

	details := make([]apperror.FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		details = append(details, apperror.FieldError{
			Field:   fe.Namespace(),
			Message: getErrorMsg(fe),
			Type:    fe.Tag(),
		})
	}

	return &apperror.ValidationError{
		Message: "Invalid request data",
		Details: details,
	}
}

func getErrorMsg(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "This field is required"
	case "oneof":
		return "Value must be one of: " + err.Param()
	case "gt":
		return "Value must be greater than " + err.Param()
	case "gte":
		return "Value must be greater than or equal to " + err.Param()
	default:
		return "Invalid value"
	}
}

// BindJSON decodes the request body into obj and validates it.
func BindJSON(c *gin.Context, obj any) *apperror.ValidationError {
	if err := c.ShouldBindJSON(obj); err != nil {
		return &apperror.ValidationError{Message: "Invalid request body: " + err.Error()}
	}
	return ValidateRequest(obj)
}

// RespondWithError writes err as an APIError JSON body and aborts the chain.
func RespondWithError(c *gin.Context, err error) {
	apiErr := apperror.ToAPIError(err)
	c.AbortWithStatusJSON(apiErr.HTTPStatus, apiErr)
}

// RespondNoContent is the reply for successful mutations without a body.
func RespondNoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
