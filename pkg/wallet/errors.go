package wallet

import "errors"

// Errors returned by wallet construction and lookups. Repositories map
// database failures to these so that callers can branch on semantics.
var (
	// ErrUnsupportedNetwork is returned for networks outside the enum.
	ErrUnsupportedNetwork = errors.New("unsupported network")
	// ErrInvalidAddress is returned when an address fails its network's
	// format validation.
	ErrInvalidAddress = errors.New("invalid wallet address")
	// ErrNotFound is returned when no wallet exists for (user, network).
	ErrNotFound = errors.New("wallet not found")
	// ErrAlreadyExists is returned on (user, network) or address
	// uniqueness violation.
	ErrAlreadyExists = errors.New("wallet already exists")
)
