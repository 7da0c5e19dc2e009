package mlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/card-grader/internal/inference"
	"github.com/example/card-grader/internal/logging"
)

// Client talks to the YOLO model service over HTTP multipart. It satisfies
// inference.Engine and is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// New builds a client for the model service. timeout bounds every call.
func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("mlclient"),
	}
}

// Health probes the model service. A failure here means grading requests
// will be rejected with a model-unavailable error until the service is back.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", inference.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned status %d", inference.ErrModelUnavailable, resp.StatusCode)
	}
	return nil
}

// Detect runs object detection with the given confidence floor.
func (c *Client) Detect(ctx context.Context, image []byte, confFloor float64) ([]inference.Detection, error) {
	fields := map[string]string{"conf": strconv.FormatFloat(confFloor, 'f', -1, 64)}
	var result struct {
		Detections []inference.Detection `json:"detections"`
	}
	if err := c.post(ctx, "/detect", image, fields, &result); err != nil {
		return nil, err
	}
	return result.Detections, nil
}

// Segment runs instance segmentation and returns the predicted masks.
func (c *Client) Segment(ctx context.Context, image []byte) ([]inference.Mask, error) {
	var result struct {
		Masks []inference.Mask `json:"masks"`
	}
	if err := c.post(ctx, "/segment", image, nil, &result); err != nil {
		return nil, err
	}
	return result.Masks, nil
}

func (c *Client) post(ctx context.Context, path string, image []byte, fields map[string]string, out interface{}) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(image)); err != nil {
		return fmt.Errorf("copy image data: %w", err)
	}
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return fmt.Errorf("write field %s: %w", key, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", inference.ErrModelUnavailable, err)
		c.logger.Error("model service call failed", zap.String("path", path), zap.Error(wrapped))
		return wrapped
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		wrapped := fmt.Errorf("%w: %s returned status %d", inference.ErrModelUnavailable, path, resp.StatusCode)
		c.logger.Error("model service call failed", zap.String("path", path), zap.Error(wrapped))
		return wrapped
	}
	if resp.StatusCode != http.StatusOK {
		return logging.NewOperationError("mlclient.post", "", fmt.Errorf("%s returned status %d", path, resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
