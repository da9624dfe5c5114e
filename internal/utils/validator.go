// internal/utils/validator.go
package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/javajoker/eshop-backend/internal/models"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("product_category", validateProductCategory)
	validate.RegisterValidation("order_status", validateOrderStatus)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validateProductCategory(fl validator.FieldLevel) bool {
	return models.Category(fl.Field().String()).Valid()
}

func validateOrderStatus(fl validator.FieldLevel) bool {
	return models.OrderStatus(fl.Field().String()).Valid()
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "gte", "lte":
		return e.Field() + " is out of range"
	case "product_category":
		return "Category must be one of Electronics, Laptops, Arts, Food, Home, Kitchen"
	case "order_status":
		return "Status must be one of Pending, Processing, Shipped, Delivered, Cancelled"
	default:
		return e.Field() + " is invalid"
	}
}
