package apiclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
)

type UploadResult struct {
	Message string `json:"message"`
	Image   string `json:"image"`
}

// Upload posts an image as multipart field "image" and returns where the server stored it.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", filepath.Base(filename))
	if err != nil {
		return UploadResult{}, err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return UploadResult{}, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, err
	}

	var out UploadResult
	err = c.send(ctx, http.MethodPost, "/api/uploads", mw.FormDataContentType(), &buf, &out)
	return out, err
}
