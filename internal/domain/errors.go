package domain

import "errors"

var (
	ErrMissingURL   = errors.New("hub API URL is required")
	ErrMissingToken = errors.New("hub API token is required")
)
