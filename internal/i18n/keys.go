// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthUserExists         = "auth.user_exists"
	KeyAuthRegisterSuccess    = "auth.register_success"
	KeyAuthResetEmailSent     = "auth.reset_email_sent"
	KeyAuthPasswordReset      = "auth.password_reset"
	KeyAuthTokenExpired       = "auth.reset_token_expired"
	KeyAuthPasswordMismatch   = "auth.password_mismatch"
	KeyAdminAccessDenied      = "auth.admin_access_denied"

	// User
	KeyUserNotFound       = "user.not_found"
	KeyUserProfileUpdated = "user.profile_updated"

	// Products
	KeyProductNotFound     = "product.not_found"
	KeyProductDeleted      = "product.deleted"
	KeyProductNotOwner     = "product.not_owner"
	KeyProductImageDeleted = "product_image.deleted"
	KeyProductImageMissing = "product_image.not_found"
	KeyProductImageInvalid = "product_image.invalid"

	// Reviews
	KeyReviewNotFound    = "review.not_found"
	KeyReviewDeleted     = "review.deleted"
	KeyReviewRatingRange = "review.rating_range"
	KeyReviewSaved       = "review.saved"

	// Orders
	KeyOrderNotFound          = "order.not_found"
	KeyOrderDeleted           = "order.deleted"
	KeyOrderEmptyCart         = "order.empty_cart"
	KeyOrderInsufficientStock = "order.insufficient_stock"
	KeyOrderInvalidStatus     = "order.invalid_status"

	// Payments
	KeyPaymentProviderError    = "payment.provider_error"
	KeyWebhookInvalidPayload   = "webhook.invalid_payload"
	KeyWebhookInvalidSignature = "webhook.invalid_signature"

	// Validation
	KeyValidationInvalid = "validation.invalid"

	// Errors
	KeyErrorInternal  = "error.internal"
	KeyErrorRateLimit = "error.rate_limit"
)
