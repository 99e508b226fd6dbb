package assets

import (
	"mime"
	"strings"
)

// Kind is the coarse media class of an asset.
type Kind string

const (
	// KindImage represents still images.
	KindImage Kind = "image"
	// KindVideo represents video streams.
	KindVideo Kind = "video"
	// KindAudio represents audio streams.
	KindAudio Kind = "audio"
	// KindOther represents everything that is not media.
	KindOther Kind = "other"
)

// KindOf maps a top-level MIME type to its Kind.
func KindOf(mimeType string) Kind {
	switch strings.ToLower(mimeType) {
	case "image":
		return KindImage
	case "video":
		return KindVideo
	case "audio":
		return KindAudio
	default:
		return KindOther
	}
}

// vectorSubtypes are image subtypes that cannot be rasterized by the thumbnail tool.
var vectorSubtypes = map[string]bool{
	"svg":     true,
	"svg+xml": true,
}

// ParseMimeType splits a MIME type into its lowercase type and subtype,
// dropping parameters. Both halves must be non-empty.
func ParseMimeType(value string) (string, string, error) {
	mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(value))
	if err != nil {
		return "", "", InvalidParameters("mimeType", err.Error())
	}
	typ, subtype, ok := strings.Cut(mediaType, "/")
	if !ok || typ == "" || subtype == "" {
		return "", "", InvalidParameters("mimeType", "expected type/subtype, got "+value)
	}
	return typ, subtype, nil
}

// HasThumbnail reports whether assets of this MIME type get a thumbnail:
// raster images and videos only.
func HasThumbnail(typ, subtype string) bool {
	switch KindOf(typ) {
	case KindImage:
		return !vectorSubtypes[strings.ToLower(subtype)]
	case KindVideo:
		return true
	default:
		return false
	}
}

// ShouldProbe reports whether metadata extraction is worth attempting.
func ShouldProbe(typ string) bool {
	return KindOf(typ) != KindOther
}

// MimeAccepted reports whether mimeType matches one of the accepted
// patterns. Patterns are exact types or "type/*" wildcards; an empty list
// accepts everything.
func MimeAccepted(accepted []string, mimeType string) bool {
	if len(accepted) == 0 {
		return true
	}
	typ, subtype, err := ParseMimeType(mimeType)
	if err != nil {
		return false
	}
	for _, pattern := range accepted {
		pattern = strings.ToLower(strings.TrimSpace(pattern))
		if pattern == "*/*" || pattern == typ+"/*" || pattern == typ+"/"+subtype {
			return true
		}
	}
	return false
}

// ThumbnailMimeTypes maps thumbnail extensions to the content type they are served with.
var ThumbnailMimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

// MimeTypeForExtension returns the content type of a thumbnail extension.
// Returns "application/octet-stream" if the extension is not recognized.
func MimeTypeForExtension(ext string) string {
	if m, ok := ThumbnailMimeTypes[strings.ToLower(ext)]; ok {
		return m
	}
	return "application/octet-stream"
}

// NormalizeExtension lowercases ext and ensures a leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
