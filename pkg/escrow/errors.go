package escrow

import (
	"errors"
	"fmt"
)

// Ledger errors. Failures originating in the asset-transfer primitive
// (insufficient balance/allowance) are NOT re-wrapped into these; they
// propagate verbatim so callers can tell a ledger rejection apart from
// an asset rejection.
var (
	ErrInvalidAmount  = errors.New("amounts must be greater than 0")
	ErrSameAsset      = errors.New("offered and requested assets must differ")
	ErrOrderNotFound  = errors.New("order not found")
	ErrOrderNotActive = errors.New("order is not active")
	ErrNotCreator     = errors.New("not the order creator")
	ErrUnauthorized   = errors.New("caller is not authorized")

	// ErrAssetNotSupported is the common sentinel under both side-specific
	// admission failures; errors.Is matches either side against it.
	ErrAssetNotSupported          = errors.New("asset not supported")
	ErrOfferedAssetNotSupported   = fmt.Errorf("offered %w", ErrAssetNotSupported)
	ErrRequestedAssetNotSupported = fmt.Errorf("requested %w", ErrAssetNotSupported)
)
