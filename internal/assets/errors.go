package assets

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound reports an absent file or record.
	ErrNotFound = errors.New("not found")
	// ErrRepositoryNotFound reports a lookup of an unregistered repository name.
	ErrRepositoryNotFound = errors.New("repository not found")
	// ErrRepositoryAlreadyRegistered reports a duplicate repository name.
	ErrRepositoryAlreadyRegistered = errors.New("repository already registered")
	// ErrInvalidParameters reports missing or malformed required input.
	ErrInvalidParameters = errors.New("invalid parameters")
	// ErrThumbnailGenerationFailed reports a failure of the thumbnail tool.
	ErrThumbnailGenerationFailed = errors.New("thumbnail generation failed")
	// ErrMissingAssets reports that a housekeeping scan found absent files.
	ErrMissingAssets = errors.New("missing assets")
	// ErrOperationDisabled reports a deliberately unsupported operation.
	ErrOperationDisabled = errors.New("operation disabled")
)

// NotFoundError identifies what was not found. AssetID is an asset id or a
// path, whichever the failing layer knows.
type NotFoundError struct {
	AssetID string
	Err     error
}

func (e *NotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: not found: %v", e.AssetID, e.Err)
	}
	return e.AssetID + ": not found"
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func (e *NotFoundError) Unwrap() error { return e.Err }

// NotFound builds a NotFoundError.
func NotFound(assetID string, cause error) error {
	return &NotFoundError{AssetID: assetID, Err: cause}
}

// IsNotFound reports whether err is, or wraps, ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// InvalidParametersError names the offending input.
type InvalidParametersError struct {
	Field  string
	Reason string
}

func (e *InvalidParametersError) Error() string {
	return fmt.Sprintf("invalid parameters: %s: %s", e.Field, e.Reason)
}

func (e *InvalidParametersError) Is(target error) bool { return target == ErrInvalidParameters }

// InvalidParameters builds an InvalidParametersError.
func InvalidParameters(field, reason string) error {
	return &InvalidParametersError{Field: field, Reason: reason}
}

// ThumbnailError wraps the tool failure that prevented a thumbnail.
type ThumbnailError struct {
	AssetID string
	Err     error
}

func (e *ThumbnailError) Error() string {
	return fmt.Sprintf("thumbnail generation failed for %s: %v", e.AssetID, e.Err)
}

func (e *ThumbnailError) Is(target error) bool { return target == ErrThumbnailGenerationFailed }

func (e *ThumbnailError) Unwrap() error { return e.Err }

// MissingAssetsError aggregates the per-asset failures of a verification scan.
type MissingAssetsError struct {
	Errors []error
}

func (e *MissingAssetsError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d missing assets: %s", len(e.Errors), strings.Join(msgs, "; "))
}

func (e *MissingAssetsError) Is(target error) bool { return target == ErrMissingAssets }

func (e *MissingAssetsError) Unwrap() []error { return e.Errors }
