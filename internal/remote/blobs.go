package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// BlobClient sube binarios al object store y devuelve la URL resultante.
type BlobClient interface {
	Upload(ctx context.Context, filename string, content io.Reader, token string) (UploadResult, error)
}

// UploadResult es la respuesta del object store tras subir un blob.
type UploadResult struct {
	ImageURL  string `json:"imageUrl"`
	ImagePath string `json:"imagePath"`
}

// HTTPBlobClient implementa BlobClient contra el endpoint de subida.
type HTTPBlobClient struct {
	uploadURL string
	client    *http.Client
	logger    *zap.Logger
}

// NewHTTPBlobClient construye el cliente apuntando al endpoint de subida.
func NewHTTPBlobClient(uploadURL string, logger *zap.Logger) *HTTPBlobClient {
	return &HTTPBlobClient{
		uploadURL: strings.TrimSpace(uploadURL),
		client:    &http.Client{Timeout: 60 * time.Second},
		logger:    logger,
	}
}

func (c *HTTPBlobClient) Upload(ctx context.Context, filename string, content io.Reader, token string) (UploadResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return UploadResult{}, fmt.Errorf("copy blob: %w", err)
	}
	if err := writer.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.uploadURL, &buf)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return UploadResult{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		if c.logger != nil {
			c.logger.Warn("blob upload failed", zap.Int("status", resp.StatusCode))
		}
		return UploadResult{}, fmt.Errorf("blob store http error: status=%d", resp.StatusCode)
	}

	var result UploadResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return UploadResult{}, fmt.Errorf("unmarshal response: %w", err)
	}
	return result, nil
}
