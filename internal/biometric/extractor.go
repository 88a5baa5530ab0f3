package biometric

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const (
	defaultEmbeddingURL   = "http://localhost:8000"
	defaultEmbeddingModel = "dlib_resnet_v1"
	defaultMinDetScore    = 0.5
	defaultClientTimeout  = 30 * time.Second
)

// Extractor turns a raw face sample into a template.
type Extractor interface {
	Extract(ctx context.Context, sample []byte) (Template, error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, sample []byte) (Template, error)

// Extract calls f.
func (f ExtractorFunc) Extract(ctx context.Context, sample []byte) (Template, error) {
	return f(ctx, sample)
}

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Client calls the face embedding server.
type Client struct {
	baseURL     string
	model       string
	minDetScore float64
	minFaceSize int
	dim         int
	client      *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithModel sets the model name recorded with enrolled templates.
func WithModel(model string) ClientOption {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMinDetScore sets the detector confidence below which a face is ignored.
func WithMinDetScore(score float64) ClientOption {
	return func(c *Client) { c.minDetScore = score }
}

// WithMinFaceSize sets the smallest accepted face edge in pixels.
func WithMinFaceSize(px int) ClientOption {
	return func(c *Client) { c.minFaceSize = px }
}

// WithDim makes the client reject embeddings of any other length.
func WithDim(dim int) ClientOption {
	return func(c *Client) { c.dim = dim }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// NewClient creates a new embedding server client
func NewClient(baseURL string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	c := &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		model:       defaultEmbeddingModel,
		minDetScore: defaultMinDetScore,
		minFaceSize: DefaultMinFaceSize,
		client:      &http.Client{Timeout: defaultClientTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the model name being used
func (c *Client) Model() string {
	return c.model
}

// Extract prepares the sample, asks the server for all faces in it and requires
// exactly one confident face of acceptable size.
func (c *Client) Extract(ctx context.Context, sample []byte) (Template, error) {
	prepared, err := PrepareSample(sample, c.minFaceSize)
	if err != nil {
		return nil, err
	}

	resp, err := c.DetectFaces(ctx, prepared)
	if err != nil {
		return nil, err
	}

	return c.selectFace(resp)
}

// DetectFaces posts the image to /embed/face and returns every detection.
func (c *Client) DetectFaces(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse response: %v", ErrExtractorUnavailable, err)
	}
	return &faceResp, nil
}

func (c *Client) selectFace(resp *FaceResponse) (Template, error) {
	var confident []FaceDetection
	for _, f := range resp.Faces {
		if f.DetScore >= c.minDetScore {
			confident = append(confident, f)
		}
	}

	switch {
	case len(confident) == 0 && len(resp.Faces) > 0:
		return nil, fmt.Errorf("%w: %d faces below detection score %.2f", ErrLowQuality, len(resp.Faces), c.minDetScore)
	case len(confident) == 0:
		return nil, ErrNoFaceDetected
	case len(confident) > 1:
		return nil, fmt.Errorf("%w: %d faces", ErrMultipleFacesDetected, len(confident))
	}

	face := confident[0]
	if len(face.BBox) == 4 {
		w := face.BBox[2] - face.BBox[0]
		h := face.BBox[3] - face.BBox[1]
		if w < float64(c.minFaceSize) || h < float64(c.minFaceSize) {
			return nil, fmt.Errorf("%w: face %.0fx%.0f is smaller than %d px", ErrLowQuality, w, h, c.minFaceSize)
		}
	}

	if len(face.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding returned", ErrExtractorUnavailable)
	}
	if c.dim > 0 && len(face.Embedding) != c.dim {
		return nil, fmt.Errorf("%w: extractor returned %d, expected %d", ErrDimensionMismatch, len(face.Embedding), c.dim)
	}

	return Template(face.Embedding).Clone(), nil
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
// Transport failures and 5xx answers are ErrExtractorUnavailable; 4xx answers mean the server
// could not use the image.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: request failed: %v", ErrExtractorUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrExtractorUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, fmt.Errorf("%w: embedding server rejected image (status %d): %s", ErrLowQuality, resp.StatusCode, strings.TrimSpace(string(body)))
	default:
		return nil, fmt.Errorf("%w: API error (status %d): %s", ErrExtractorUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	switch {
	case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return "image/png"
	case data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x38:
		return "image/gif"
	case data[0] == 0x42 && data[1] == 0x4D:
		return "image/bmp"
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "image/webp"
	}
	return "application/octet-stream"
}
