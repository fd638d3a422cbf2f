package geneva

import "errors"

// Coarse failure classes reported by the client.
var (
	ErrInvalidConfig        = errors.New("invalid geneva configuration")
	ErrInitializationFailed = errors.New("geneva client initialization failed")
	ErrUploadFailed         = errors.New("geneva upload failed")
	ErrInvalidData          = errors.New("invalid telemetry data")
	ErrInternal             = errors.New("geneva internal error")
)

// Granular errors, wrapped into the coarse classes where they surface.
var (
	ErrClientClosed    = errors.New("geneva client is closed")
	ErrEmptyInput      = errors.New("empty input")
	ErrDecodeFailed    = errors.New("decode failed")
	ErrIndexOutOfRange = errors.New("batch index out of range")

	ErrInvalidAuthMethod = errors.New("invalid auth method")
	ErrInvalidCertConfig = errors.New("invalid certificate config")

	ErrMissingEndpoint     = errors.New("missing endpoint")
	ErrMissingEnvironment  = errors.New("missing environment")
	ErrMissingAccount      = errors.New("missing account")
	ErrMissingNamespace    = errors.New("missing namespace")
	ErrMissingRegion       = errors.New("missing region")
	ErrMissingTenant       = errors.New("missing tenant")
	ErrMissingRoleName     = errors.New("missing role name")
	ErrMissingRoleInstance = errors.New("missing role instance")
)
