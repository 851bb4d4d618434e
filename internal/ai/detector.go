package ai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/kdimtricp/detectsnap/internal/models"
)

const (
	formFieldName    = "file"
	imageContentType = "image/jpeg"
)

var (
	errEmptyImage    = errors.New("image is empty")
	errMalformedJSON = errors.New("response body is not valid JSON")
)

// RemoteDetector sends images to the object-detection service. It holds no
// per-call state and makes exactly one request per Detect call.
type RemoteDetector struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

func NewRemoteDetector(config *Config, logger *zap.SugaredLogger) (*RemoteDetector, error) {
	if config == nil || config.Endpoint == "" {
		return nil, errors.New("detector endpoint is required")
	}
	if _, err := url.ParseRequestURI(config.Endpoint); err != nil {
		return nil, errors.Wrapf(err, "invalid detector endpoint %q", config.Endpoint)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &RemoteDetector{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}, nil
}

func (d *RemoteDetector) Detect(ctx context.Context, imageRef string) ([]models.Detection, error) {
	imageData, name, err := readImage(imageRef)
	if err != nil {
		return nil, &DetectionError{Kind: KindImage, Op: "read image", Err: err}
	}

	body, contentType, err := buildMultipart(name, imageData)
	if err != nil {
		return nil, &DetectionError{Kind: KindImage, Op: "build request body", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.Endpoint, body)
	if err != nil {
		return nil, &DetectionError{Kind: KindNetwork, Op: "create request", Err: err}
	}
	requestID := uuid.New().String()
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	d.logger.Debugw("sending image for detection", "image", imageRef, "bytes", len(imageData), "request_id", requestID)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &DetectionError{Kind: KindNetwork, Op: "send request", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(d.limit(resp.Body))
	if err != nil {
		return nil, &DetectionError{Kind: KindResponse, Op: "read response", StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &DetectionError{
			Kind:       KindNetwork,
			Op:         "detect",
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(respBody),
		}
	}

	detections, err := ParseDetections(respBody, d.logger)
	if err != nil {
		return nil, err
	}

	d.logger.Infow("detection completed", "image", imageRef, "detections", len(detections), "request_id", requestID)
	return detections, nil
}

// Health probes the service's health route.
func (d *RemoteDetector) Health(ctx context.Context) error {
	endpoint := d.config.HealthEndpoint
	if endpoint == "" {
		u, err := url.Parse(d.config.Endpoint)
		if err != nil {
			return errors.Wrap(err, "failed to parse detector endpoint")
		}
		u.Path = path.Join(path.Dir(u.Path), "health")
		endpoint = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create health request")
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return &DetectionError{Kind: KindNetwork, Op: "health", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &DetectionError{Kind: KindNetwork, Op: "health", StatusCode: resp.StatusCode}
	}
	return nil
}

func (d *RemoteDetector) limit(r io.Reader) io.Reader {
	if d.config.MaxResponseSize <= 0 {
		return r
	}
	return io.LimitReader(r, d.config.MaxResponseSize)
}

func buildMultipart(filename string, imageData []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, formFieldName, filename))
	header.Set("Content-Type", imageContentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to create form part")
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, "", errors.Wrap(err, "failed to write image data")
	}
	if err := writer.Close(); err != nil {
		return nil, "", errors.Wrap(err, "failed to close multipart writer")
	}

	return body, writer.FormDataContentType(), nil
}

// readImage resolves a plain path or file:// URI and returns its bytes and
// base name.
func readImage(imageRef string) ([]byte, string, error) {
	p := imageRef
	if strings.HasPrefix(imageRef, "file://") {
		u, err := url.Parse(imageRef)
		if err != nil {
			return nil, "", errors.Wrapf(err, "invalid image reference %q", imageRef)
		}
		p = u.Path
	}
	if p == "" {
		return nil, "", errors.New("empty image reference")
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to read image")
	}
	if len(data) == 0 {
		return nil, "", errEmptyImage
	}

	name := filepath.Base(p)
	if filepath.Ext(name) == "" {
		name += ".jpg"
	}
	return data, name, nil
}
