package types

import (
	errorsmod "cosmossdk.io/errors"
)

const codespace = "dfc"

// Every rejected call maps to exactly one of these, so operators can tell
// "too soon" apart from "bad input" apart from "not configured".
var (
	ErrPoolNotConfigured  = errorsmod.Register(codespace, 2, "pool not configured")
	ErrInvalidRatio       = errorsmod.Register(codespace, 3, "observed ratio inadmissible")
	ErrCooldownNotElapsed = errorsmod.Register(codespace, 4, "cooldown not elapsed")
	ErrInvalidParams      = errorsmod.Register(codespace, 5, "invalid fee parameters")
	ErrUnauthorized       = errorsmod.Register(codespace, 6, "caller not authorized")
	ErrPaused             = errorsmod.Register(codespace, 7, "controller is paused")
	ErrFeeSinkUnavailable = errorsmod.Register(codespace, 8, "fee sink rejected update")
	ErrPoolExists         = errorsmod.Register(codespace, 9, "pool already configured")
	ErrCategoryNotFound   = errorsmod.Register(codespace, 10, "category not configured")
)
