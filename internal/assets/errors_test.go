package assets

import (
	"errors"
	"fmt"
	"os"
	"testing"
)

func TestNotFoundError(t *testing.T) {
	err := fmt.Errorf("read: %w", NotFound("abc.png", os.ErrNotExist))

	if !errors.Is(err, ErrNotFound) {
		t.Error("wrapped NotFoundError should match ErrNotFound")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("NotFoundError should unwrap to its cause")
	}

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatal("errors.As should find NotFoundError")
	}
	if nf.AssetID != "abc.png" {
		t.Errorf("AssetID = %q, want abc.png", nf.AssetID)
	}
}

func TestThumbnailError(t *testing.T) {
	cause := errors.New("ffmpeg exited 1")
	err := &ThumbnailError{AssetID: "id-1", Err: cause}

	if !errors.Is(err, ErrThumbnailGenerationFailed) {
		t.Error("ThumbnailError should match ErrThumbnailGenerationFailed")
	}
	if !errors.Is(err, cause) {
		t.Error("ThumbnailError should unwrap to cause")
	}
}

func TestMissingAssetsError(t *testing.T) {
	a := NotFound("a.png", nil)
	b := NotFound("b.png", nil)
	err := &MissingAssetsError{Errors: []error{a, b}}

	if !errors.Is(err, ErrMissingAssets) {
		t.Error("MissingAssetsError should match ErrMissingAssets")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("MissingAssetsError should expose its members")
	}
	if err.Error() == "" {
		t.Error("Error() should not be empty")
	}
}
