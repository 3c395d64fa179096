package domain

import (
	apperrors "github.com/utafrali/gallery/pkg/errors"
)

// Error codes returned to clients. They are part of the HTTP contract.
const (
	CodeEmailExists          = "EMAIL_EXISTS"
	CodeUserNotFound         = "USER_NOT_FOUND"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeTokenMissing         = "TOKEN_MISSING"
	CodeTokenInvalid         = "TOKEN_INVALID"
	CodeTokenExpired         = "TOKEN_EXPIRED"
	CodeRefreshTokenInvalid  = "REFRESH_TOKEN_INVALID"
	CodeRefreshTokenReused   = "REFRESH_TOKEN_REUSED"
	CodeUserIDNotProvided    = "USER_ID_NOT_PROVIDED"
	CodeWrongPassword        = "WRONG_PASSWORD"
	CodeSetDifferentPassword = "SET_DIFFERENT_PASSWORD"
	CodeTooManyAttempts      = "TOO_MANY_ATTEMPTS"
	CodeImageNotFound        = "IMAGE_NOT_FOUND"
	CodeImageOrderWrong      = "IMAGE_ORDER_WRONG"
	CodeRequiredData         = "REQUIRED_DATA"
)

func ErrEmailExists() *apperrors.AppError {
	return apperrors.New(apperrors.ErrAlreadyExists, CodeEmailExists, "email already registered")
}

func ErrUserNotFound() *apperrors.AppError {
	return apperrors.New(apperrors.ErrNotFound, CodeUserNotFound, "user not found")
}

func ErrInvalidCredentials() *apperrors.AppError {
	return apperrors.New(apperrors.ErrUnauthorized, CodeInvalidCredentials, "invalid email or password")
}

func ErrTokenMissing() *apperrors.AppError {
	return apperrors.New(apperrors.ErrUnauthorized, CodeTokenMissing, "token missing")
}

func ErrTokenInvalid() *apperrors.AppError {
	return apperrors.New(apperrors.ErrUnauthorized, CodeTokenInvalid, "token invalid")
}

func ErrTokenExpired() *apperrors.AppError {
	return apperrors.New(apperrors.ErrUnauthorized, CodeTokenExpired, "token expired")
}

func ErrRefreshTokenInvalid() *apperrors.AppError {
	return apperrors.New(apperrors.ErrUnauthorized, CodeRefreshTokenInvalid, "refresh token invalid")
}

// ErrRefreshTokenReused is returned when a refresh token is no longer the
// user's current one, either because it was rotated or the user signed out.
func ErrRefreshTokenReused() *apperrors.AppError {
	return apperrors.New(apperrors.ErrUnauthorized, CodeRefreshTokenReused, "refresh token invalid or reused")
}

func ErrUserIDNotProvided() *apperrors.AppError {
	return apperrors.New(apperrors.ErrUnauthorized, CodeUserIDNotProvided, "user id not provided")
}

func ErrWrongPassword() *apperrors.AppError {
	return apperrors.New(apperrors.ErrUnauthorized, CodeWrongPassword, "wrong password")
}

func ErrSetDifferentPassword() *apperrors.AppError {
	return apperrors.New(apperrors.ErrInvalidInput, CodeSetDifferentPassword, "new password must differ from the current one")
}

func ErrTooManyAttempts() *apperrors.AppError {
	return apperrors.New(apperrors.ErrTooManyRequests, CodeTooManyAttempts, "too many failed login attempts, try again later")
}

func ErrImageNotFound() *apperrors.AppError {
	return apperrors.New(apperrors.ErrNotFound, CodeImageNotFound, "image not found")
}

func ErrImageOrderWrong(message string) *apperrors.AppError {
	return apperrors.New(apperrors.ErrInvalidInput, CodeImageOrderWrong, message)
}

func ErrRequiredData(message string) *apperrors.AppError {
	return apperrors.New(apperrors.ErrInvalidInput, CodeRequiredData, message)
}
