package sharing

import "errors"

var (
	ErrUnknownShareType    = errors.New("unknown share type")
	ErrMissingTarget       = errors.New("target reference missing for share type")
	ErrTargetNotOwned      = errors.New("target resource not found or not owned by the practitioner")
	ErrShareNotFound       = errors.New("share not found")
	ErrNotShareOwner       = errors.New("share does not belong to the practitioner")
	ErrInvalidSession      = errors.New("invalid or expired share session")
	ErrPermissionDenied    = errors.New("share permissions do not allow this operation")
	ErrResourceNotFound    = errors.New("shared resource not found")
	ErrUnsupportedResource = errors.New("unsupported resource type")
)
