package handlers

import (
	"io"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"

	"social-dashboard/actions"
	"social-dashboard/middleware"
	"social-dashboard/validation"
)

// CreatePostRequest is the JSON form of a new post. Files need a
// multipart request with "images" and "video" parts.
type CreatePostRequest struct {
	Content   string   `json:"content" form:"content"`
	PhotoURLs []string `json:"photoUrls" form:"photo_urls"`
}

type UpdatePostRequest struct {
	Content string `json:"content"`
}

// CreatePost publishes a post on the :platform route parameter
func CreatePost(c *fiber.Ctx) error {
	in, msg := postInput(c)
	if msg != "" {
		return errorJSON(c, fiber.StatusBadRequest, msg)
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	o := middleware.GetDashboard(c).Actions().CreatePost(ctx, middleware.GetPlatform(c), in)
	if o.Success() {
		return c.Status(fiber.StatusCreated).JSON(o)
	}
	return outcomeJSON(c, o)
}

// postInput reads a JSON or multipart post. The string is the message to
// show when the request cannot be read.
func postInput(c *fiber.Ctx) (actions.PostInput, string) {
	if !strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		var req CreatePostRequest
		if err := c.BodyParser(&req); err != nil {
			return actions.PostInput{}, "Invalid request body"
		}
		return actions.PostInput{Content: req.Content, PhotoURLs: nonEmpty(req.PhotoURLs)}, ""
	}

	form, err := c.MultipartForm()
	if err != nil {
		return actions.PostInput{}, "Invalid multipart form"
	}

	in := actions.PostInput{PhotoURLs: nonEmpty(form.Value["photo_urls"])}
	if v := form.Value["content"]; len(v) > 0 {
		in.Content = v[0]
	}
	for _, fh := range form.File["images"] {
		upload, msg := readUpload(fh)
		if msg != "" {
			return actions.PostInput{}, msg
		}
		in.Images = append(in.Images, upload)
	}
	if files := form.File["video"]; len(files) > 0 {
		upload, msg := readUpload(files[0])
		if msg != "" {
			return actions.PostInput{}, msg
		}
		in.Video = &upload
	}
	return in, ""
}

func readUpload(fh *multipart.FileHeader) (validation.FileUpload, string) {
	f, err := fh.Open()
	if err != nil {
		return validation.FileUpload{}, "Could not read " + fh.Filename
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return validation.FileUpload{}, "Could not read " + fh.Filename
	}
	return validation.FileUpload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
		Data:        data,
	}, ""
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// UpdatePost edits the text of a post
func UpdatePost(c *fiber.Ctx) error {
	var req UpdatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	o := middleware.GetDashboard(c).Actions().UpdatePost(ctx, ref(c, "id"), req.Content)
	return outcomeJSON(c, o)
}

// DeletePost removes a post
func DeletePost(c *fiber.Ctx) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	o := middleware.GetDashboard(c).Actions().DeletePost(ctx, ref(c, "id"))
	return outcomeJSON(c, o)
}
