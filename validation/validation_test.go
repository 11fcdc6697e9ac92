package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"social-dashboard/models"
)

func strPtr(s string) *string { return &s }

func TestValidateCredentials(t *testing.T) {
	tests := []struct {
		name  string
		input CredentialInput
		valid bool
		msg   string
	}{
		{"token only", CredentialInput{AccessToken: "abc", Platform: models.PlatformFacebook}, true, ""},
		{"missing token", CredentialInput{Platform: models.PlatformFacebook}, false, "Facebook access token is missing"},
		{"user id present and set", CredentialInput{AccessToken: "abc", UserID: strPtr("42"), Platform: models.PlatformInstagram}, true, ""},
		{"user id present but empty", CredentialInput{AccessToken: "abc", UserID: strPtr(""), Platform: models.PlatformInstagram}, false, "Instagram account ID is missing"},
		{"token is not format checked", CredentialInput{AccessToken: "x"}, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateCredentials(tt.input)
			assert.Equal(t, tt.valid, got.IsValid)
			if tt.msg != "" {
				assert.Contains(t, got.Message, tt.msg)
			} else {
				assert.Empty(t, got.Message)
			}
		})
	}
}

func TestValidatePostContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		opts    PostContentOptions
		valid   bool
	}{
		{"required and missing", "", DefaultPostOptions(), false},
		{"optional and missing", "", CaptionOptions(), true},
		{"whitespace only", "   \n\t", DefaultPostOptions(), false},
		{"whitespace allowed", "   ", CaptionOptions(), true},
		{"normal text", "hello world", DefaultPostOptions(), true},
		{"too short", "hi", PostContentOptions{Required: true, MinLength: 3}, false},
		{"min counts trimmed text", "  hi  ", PostContentOptions{Required: true, MinLength: 3}, false},
		{"too long", strings.Repeat("a", 2201), CaptionOptions(), false},
		{"at max", strings.Repeat("a", 2200), CaptionOptions(), true},
		{"runes not bytes", strings.Repeat("é", 10), PostContentOptions{Required: true, MaxLength: 10}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidatePostContent(tt.content, tt.opts)
			assert.Equal(t, tt.valid, got.IsValid, got.Message)
			if !tt.valid {
				assert.NotEmpty(t, got.Message)
			}
		})
	}
}

func TestValidateImageURL(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{"https://cdn.example.com/a.jpg", true},
		{"http://example.com/a.png?size=large", true},
		{"", false},
		{"example.com/a.jpg", false},
		{"/relative/a.jpg", false},
		{"ftp://example.com/a.jpg", false},
		{"javascript:alert(1)", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got := ValidateImageURL(tt.url)
			assert.Equal(t, tt.valid, got.IsValid, got.Message)
		})
	}
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestValidateFileUpload(t *testing.T) {
	t.Run("declared allowed type", func(t *testing.T) {
		got := ValidateFileUpload(FileUpload{Name: "a.jpg", ContentType: "image/jpeg", Size: 1024}, FileOptions{})
		assert.True(t, got.IsValid, got.Message)
	})

	t.Run("declared type with parameters", func(t *testing.T) {
		got := ValidateFileUpload(FileUpload{Name: "a.png", ContentType: "image/png; q=1", Size: 10}, FileOptions{})
		assert.True(t, got.IsValid, got.Message)
	})

	t.Run("disallowed type", func(t *testing.T) {
		got := ValidateFileUpload(FileUpload{Name: "a.pdf", ContentType: "application/pdf", Size: 10}, FileOptions{})
		assert.False(t, got.IsValid)
		assert.Contains(t, got.Message, "application/pdf")
	})

	t.Run("sniffed when undeclared", func(t *testing.T) {
		got := ValidateFileUpload(FileUpload{Name: "a", Data: pngHeader}, FileOptions{})
		assert.True(t, got.IsValid, got.Message)
	})

	t.Run("too large", func(t *testing.T) {
		got := ValidateFileUpload(FileUpload{Name: "big.jpg", ContentType: "image/jpeg", Size: DefaultMaxFileSize + 1}, FileOptions{})
		assert.False(t, got.IsValid)
		assert.Contains(t, got.Message, "8.0 MiB")
	})

	t.Run("custom ceiling and types", func(t *testing.T) {
		opts := FileOptions{AllowedTypes: VideoTypes, MaxSize: 100}
		assert.True(t, ValidateFileUpload(FileUpload{ContentType: "video/mp4", Size: 100}, opts).IsValid)
		assert.False(t, ValidateFileUpload(FileUpload{ContentType: "video/mp4", Size: 101}, opts).IsValid)
		assert.False(t, ValidateFileUpload(FileUpload{ContentType: "image/png", Size: 1}, opts).IsValid)
	})

	t.Run("empty file", func(t *testing.T) {
		got := ValidateFileUpload(FileUpload{Name: "a.png", ContentType: "image/png"}, FileOptions{})
		assert.False(t, got.IsValid)
	})
}

func TestFirst(t *testing.T) {
	assert.True(t, First().IsValid)
	assert.True(t, First(valid(), valid()).IsValid)

	got := First(valid(), invalid("first"), invalid("second"))
	assert.False(t, got.IsValid)
	assert.Equal(t, "first", got.Message)
}
