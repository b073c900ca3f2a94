package domain

import "errors"

var (
	ErrCredentialDecryption       = errors.New("credential decryption failed")
	ErrMissingSourceConfiguration = errors.New("no source configured for primary transport")
	ErrUnsupportedProtocol        = errors.New("unsupported stream protocol")
	ErrProcessSpawn               = errors.New("transcoder spawn failed")
	ErrSessionNotFound            = errors.New("session not found")
	ErrTokenInvalid               = errors.New("stream token invalid or expired")
	ErrCameraAccessDenied         = errors.New("camera access denied")
	ErrCameraUnavailable          = errors.New("camera unavailable")
	ErrInvalidSegmentName         = errors.New("invalid segment name")
	ErrArtifactNotFound           = errors.New("artifact not found")
	ErrConcurrencyLimit           = errors.New("concurrent session limit reached for store")
)
