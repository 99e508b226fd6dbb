package assets

import (
	"errors"
	"testing"
)

func TestParseMimeType(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantType    string
		wantSubtype string
		wantErr     bool
	}{
		{"png", "image/png", "image", "png", false},
		{"uppercase", "IMAGE/JPEG", "image", "jpeg", false},
		{"svg", "image/svg+xml", "image", "svg+xml", false},
		{"with params", "video/mp4; codecs=avc1", "video", "mp4", false},
		{"missing subtype", "image", "", "", true},
		{"empty", "", "", "", true},
		{"garbage", "not a mime", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			typ, subtype, err := ParseMimeType(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMimeType(%q) expected error", tt.input)
				}
				if !errors.Is(err, ErrInvalidParameters) {
					t.Errorf("error %v should match ErrInvalidParameters", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMimeType(%q) unexpected error: %v", tt.input, err)
			}
			if typ != tt.wantType || subtype != tt.wantSubtype {
				t.Errorf("ParseMimeType(%q) = %s/%s, want %s/%s", tt.input, typ, subtype, tt.wantType, tt.wantSubtype)
			}
		})
	}
}

func TestHasThumbnail(t *testing.T) {
	tests := []struct {
		typ, subtype string
		want         bool
	}{
		{"image", "png", true},
		{"image", "jpeg", true},
		{"image", "svg+xml", false},
		{"image", "svg", false},
		{"video", "mp4", true},
		{"audio", "mpeg", false},
		{"application", "pdf", false},
	}

	for _, tt := range tests {
		if got := HasThumbnail(tt.typ, tt.subtype); got != tt.want {
			t.Errorf("HasThumbnail(%s/%s) = %v, want %v", tt.typ, tt.subtype, got, tt.want)
		}
	}
}

func TestMimeAccepted(t *testing.T) {
	accepted := []string{"image/*", "video/mp4"}

	tests := []struct {
		mime string
		want bool
	}{
		{"image/png", true},
		{"image/svg+xml", true},
		{"video/mp4", true},
		{"video/webm", false},
		{"application/pdf", false},
		{"broken", false},
	}

	for _, tt := range tests {
		if got := MimeAccepted(accepted, tt.mime); got != tt.want {
			t.Errorf("MimeAccepted(%q) = %v, want %v", tt.mime, got, tt.want)
		}
	}

	if !MimeAccepted(nil, "application/zip") {
		t.Error("empty accept list should accept everything")
	}
}

func TestPathConventions(t *testing.T) {
	if got := PrimaryPath("abc", "png"); got != "abc.png" {
		t.Errorf("PrimaryPath = %q, want abc.png", got)
	}
	if got := ThumbnailName("abc", ".jpg"); got != "abc.jpg" {
		t.Errorf("ThumbnailName = %q, want abc.jpg", got)
	}
	if got := NormalizeExtension("JPG"); got != ".jpg" {
		t.Errorf("NormalizeExtension = %q, want .jpg", got)
	}
	if got := MimeTypeForExtension(".webp"); got != "image/webp" {
		t.Errorf("MimeTypeForExtension = %q, want image/webp", got)
	}
}

func TestRecordAccessors(t *testing.T) {
	r := &Record{Type: "video", Subtype: "mp4", Width: 1920, Height: 1080}
	if r.MimeType() != "video/mp4" {
		t.Errorf("MimeType = %q", r.MimeType())
	}
	if r.Resolution() != "1920x1080" {
		t.Errorf("Resolution = %q", r.Resolution())
	}
	if r.Kind() != KindVideo {
		t.Errorf("Kind = %q", r.Kind())
	}
	if (&Record{}).Resolution() != "" {
		t.Error("Resolution of empty record should be empty")
	}
}
