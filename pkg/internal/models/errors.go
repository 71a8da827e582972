package models

import "errors"

// Discriminable stage error conditions. Everything else surfacing from the
// realtime backend is intentionally opaque (ErrTokenCreation).
var (
	ErrTokenCreation = errors.New("failed to create token")
	ErrStageFull     = errors.New("stage is at capacity")
	ErrHostPresent   = errors.New("a host is already connected to this stage")
	ErrStageOccupied = errors.New("this channel already has an active stage")
)
