// Package validation holds the checks every action runs before touching
// the network. All validators are pure and return a Result.
package validation

import (
	"fmt"
	"mime"
	"net/url"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"

	"social-dashboard/models"
)

// DefaultMaxFileSize is the upload ceiling when FileOptions.MaxSize is zero
const DefaultMaxFileSize int64 = 8 << 20

var (
	ImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	VideoTypes = []string{"video/mp4", "video/quicktime"}
)

var validate = validator.New()

// Result is the uniform outcome of every validator
type Result struct {
	IsValid bool   `json:"isValid"`
	Message string `json:"message"`
}

func valid() Result { return Result{IsValid: true} }

func invalid(format string, args ...any) Result {
	return Result{Message: fmt.Sprintf(format, args...)}
}

// First returns the first failing result, or a valid one
func First(results ...Result) Result {
	for _, r := range results {
		if !r.IsValid {
			return r
		}
	}
	return valid()
}

// CredentialInput mirrors what callers have at hand before an API call.
// UserID is a pointer so that "not checked" and "checked but empty" differ.
type CredentialInput struct {
	AccessToken string
	UserID      *string
	Platform    models.Platform
}

// ValidateCredentials checks presence only. The token format is never
// inspected.
func ValidateCredentials(in CredentialInput) Result {
	label := in.Platform.Label()
	if label == "" {
		label = "Account"
	}

	if err := validate.Var(in.AccessToken, "required"); err != nil {
		return invalid("%s access token is missing. Please connect your account again.", label)
	}
	if in.UserID != nil && *in.UserID == "" {
		return invalid("%s account ID is missing. Please connect your account again.", label)
	}
	return valid()
}

// PostContentOptions bounds the length of free text
type PostContentOptions struct {
	Required   bool
	MinLength  int
	MaxLength  int
	AllowEmpty bool
}

// DefaultPostOptions fits a Facebook page post
func DefaultPostOptions() PostContentOptions {
	return PostContentOptions{Required: true, MinLength: 1, MaxLength: 63206}
}

// CaptionOptions fits an Instagram caption, which may be omitted
func CaptionOptions() PostContentOptions {
	return PostContentOptions{MaxLength: 2200, AllowEmpty: true}
}

// ReplyOptions fits comment replies and direct messages
func ReplyOptions() PostContentOptions {
	return PostContentOptions{Required: true, MinLength: 1, MaxLength: 8000}
}

// ValidatePostContent checks presence, whitespace and length. Lengths are
// counted in runes on the trimmed text.
func ValidatePostContent(content string, opts PostContentOptions) Result {
	if content == "" {
		if opts.Required {
			return invalid("Content is required")
		}
		return valid()
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		if opts.AllowEmpty {
			return valid()
		}
		return invalid("Content cannot be empty or whitespace only")
	}

	if opts.MinLength > 0 {
		if err := validate.Var(trimmed, fmt.Sprintf("min=%d", opts.MinLength)); err != nil {
			return invalid("Content must be at least %d characters", opts.MinLength)
		}
	}
	if opts.MaxLength > 0 {
		if err := validate.Var(trimmed, fmt.Sprintf("max=%d", opts.MaxLength)); err != nil {
			return invalid("Content must be at most %d characters", opts.MaxLength)
		}
	}
	return valid()
}

// ValidateImageURL accepts absolute http and https URLs only
func ValidateImageURL(raw string) Result {
	if raw == "" {
		return invalid("Image URL is required")
	}
	if err := validate.Var(raw, "url"); err != nil {
		return invalid("Image URL must be a valid absolute URL")
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return invalid("Image URL must be a valid absolute URL")
	}
	if scheme := strings.ToLower(u.Scheme); scheme != "http" && scheme != "https" {
		return invalid("Image URL must use http or https")
	}
	return valid()
}

// FileUpload describes a file the user attached
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Data        []byte
}

// FileOptions restricts uploads. Zero values mean images only, 8 MiB.
type FileOptions struct {
	AllowedTypes []string
	MaxSize      int64
}

// ValidateFileUpload checks the MIME type and size of an upload. When the
// declared type is missing or generic the content is sniffed.
func ValidateFileUpload(f FileUpload, opts FileOptions) Result {
	allowed := opts.AllowedTypes
	if len(allowed) == 0 {
		allowed = ImageTypes
	}
	maxSize := opts.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	size := f.Size
	if size <= 0 {
		size = int64(len(f.Data))
	}
	if size <= 0 {
		return invalid("File %s is empty", displayName(f.Name))
	}

	contentType := baseType(f.ContentType)
	if (contentType == "" || contentType == "application/octet-stream") && len(f.Data) > 0 {
		contentType = baseType(mimetype.Detect(f.Data).String())
	}
	if !slices.Contains(allowed, contentType) {
		if contentType == "" {
			contentType = "unknown"
		}
		return invalid("File type %s is not allowed. Allowed types: %s", contentType, strings.Join(allowed, ", "))
	}

	if size > maxSize {
		return invalid("File %s is too large (max %s)", displayName(f.Name), humanize.IBytes(uint64(maxSize)))
	}
	return valid()
}

func baseType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType
}

func displayName(name string) string {
	if name == "" {
		return "upload"
	}
	return name
}
