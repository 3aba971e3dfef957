package domain

import "errors"

var (
	ErrAssignedAtWithoutOwner = errors.New("ticket has assigned_at without an owner")
	ErrSoldWithoutOwner       = errors.New("ticket is sold without an owner")

	ErrNotOwner    = errors.New("ticket is not held by the caller")
	ErrAlreadySold = errors.New("ticket already sold")
)
