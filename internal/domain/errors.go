package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrNoSourceImage      = errors.New("no source image")
	ErrNoAd               = errors.New("no ad generated")
	ErrNoImage            = errors.New("no image generated")
	ErrTierExhausted      = errors.New("image transform failed on every tier")
	ErrGenerationInFlight = errors.New("generation already in progress")
	ErrProviderFailure    = errors.New("provider failure")
)
