package hubgen

import "errors"

var (
	// ErrMissingToken indicates no hub bearer token was configured.
	ErrMissingToken = errors.New("please set the HF_TOKEN environment variable")

	// ErrUnauthorized indicates the hub rejected the bearer token.
	ErrUnauthorized = errors.New("hubgen: unauthorized")

	// ErrInvalidParams indicates decoding hyperparameters outside their valid range.
	ErrInvalidParams = errors.New("hubgen: invalid generation params")

	ErrEmptyPrompt = errors.New("hubgen: empty prompt")

	// ErrImageLoadFailed indicates an image could not be read or encoded for a captioning request.
	ErrImageLoadFailed = errors.New("hubgen: image load failed")

	// ErrVisionNotSupported indicates the backend cannot take image inputs.
	ErrVisionNotSupported = errors.New("hubgen: vision not supported by this backend")

	// ErrGenerationFailed indicates the backend returned an error or unusable output.
	ErrGenerationFailed = errors.New("hubgen: generation failed")

	ErrPresetNotFound = errors.New("hubgen: preset not found")
)
