package asset

import "errors"

// Common asset-layer errors
var (
	ErrUnauthorized          = errors.New("caller is not the administrator")
	ErrAlreadyAdmitted       = errors.New("asset already admitted")
	ErrNotAdmitted           = errors.New("asset not admitted")
	ErrUnknownAsset          = errors.New("unknown asset")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("amount must be positive")
)
