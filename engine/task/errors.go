package task

import "errors"

var (
	ErrValidation        = errors.New("validation error")
	ErrTaskNotFound      = errors.New("task not found")
	ErrTaskExists        = errors.New("task already exists for file")
	ErrSettingsNotFound  = errors.New("settings not found")
	ErrAIConfigMissing   = errors.New("AI settings not configured")
	ErrBrokerUnavailable = errors.New("broker unavailable")
	ErrMalformedEvent    = errors.New("malformed event")
)
