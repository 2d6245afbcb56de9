// Package analysis talks to the external scoring engine.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"resume-reviewer/internal/ingest"
)

// DefaultTimeout bounds a single engine call.
const DefaultTimeout = 30 * time.Second

// maxResponseBytes caps how much of an engine response is read.
const maxResponseBytes = 1 << 20

// ErrUnavailable matches every engine failure.
var ErrUnavailable = errors.New("analysis temporarily unavailable")

// FailureKind classifies an engine failure for logging.
type FailureKind string

const (
	FailureTimeout   FailureKind = "timeout"
	FailureNetwork   FailureKind = "network"
	FailureStatus    FailureKind = "status"
	FailureMalformed FailureKind = "malformed"
)

// UnavailableError reports why the engine could not produce a result.
type UnavailableError struct {
	Kind       FailureKind
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.Kind == FailureStatus {
		return fmt.Sprintf("analysis engine: %s %d", e.Kind, e.StatusCode)
	}
	if e.Err == nil {
		return fmt.Sprintf("analysis engine: %s", e.Kind)
	}
	return fmt.Sprintf("analysis engine: %s: %v", e.Kind, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// Result is the engine output in canonical form. Lists are never nil.
type Result struct {
	ATSScore           float64
	MatchedKeywords    []string
	MissingKeywords    []string
	KeywordSuggestions []string
	ImprovedBullets    []string
	ResumeExcerpt      string
}

// Client scores one normalized payload.
type Client interface {
	Analyze(ctx context.Context, payload *ingest.Payload) (*Result, error)
}

// Options configures HTTPClient.
type Options struct {
	Endpoint string
	Timeout  time.Duration
	Logger   *logrus.Logger
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// HTTPClient posts multipart requests to the engine. It never retries.
type HTTPClient struct {
	endpoint string
	http     *http.Client
	logger   *logrus.Logger
}

func NewHTTPClient(opts Options) (*HTTPClient, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errors.New("analysis endpoint is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := &http.Client{}
	if opts.HTTPClient != nil {
		copied := *opts.HTTPClient
		client = &copied
	}
	client.Timeout = timeout

	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &HTTPClient{endpoint: endpoint, http: client, logger: logger}, nil
}

type engineResponse struct {
	ATSScore           *float64 `json:"ats_score"`
	MatchedKeywords    []string `json:"matched_keywords"`
	MissingKeywords    []string `json:"missing_keywords"`
	KeywordSuggestions []string `json:"keyword_suggestions"`
	ImprovedBullets    []string `json:"improved_bullets"`
	ResumeExcerpt      string   `json:"resume_excerpt"`
}

func (c *HTTPClient) Analyze(ctx context.Context, payload *ingest.Payload) (*Result, error) {
	if payload == nil || payload.Resume == nil {
		return nil, errors.New("analysis: payload is required")
	}

	body, contentType, err := encodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("encode analysis request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build analysis request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(classifyTransportError(err), start)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.fail(classifyTransportError(err), start)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.fail(&UnavailableError{
			Kind:       FailureStatus,
			StatusCode: resp.StatusCode,
			Err:        errors.New(snippet(raw)),
		}, start)
	}

	var decoded engineResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, c.fail(&UnavailableError{Kind: FailureMalformed, Err: err}, start)
	}
	if decoded.ATSScore == nil {
		return nil, c.fail(&UnavailableError{Kind: FailureMalformed, Err: errors.New("ats_score missing")}, start)
	}

	c.logger.WithFields(logrus.Fields{
		"resume_kind": payload.Resume.Kind(),
		"ats_score":   *decoded.ATSScore,
		"elapsed":     time.Since(start).String(),
	}).Debug("analysis engine responded")

	return &Result{
		ATSScore:           *decoded.ATSScore,
		MatchedKeywords:    nonNil(decoded.MatchedKeywords),
		MissingKeywords:    nonNil(decoded.MissingKeywords),
		KeywordSuggestions: nonNil(decoded.KeywordSuggestions),
		ImprovedBullets:    nonNil(decoded.ImprovedBullets),
		ResumeExcerpt:      strings.TrimSpace(decoded.ResumeExcerpt),
	}, nil
}

func (c *HTTPClient) fail(err *UnavailableError, start time.Time) error {
	c.logger.WithError(err).WithFields(logrus.Fields{
		"kind":    err.Kind,
		"status":  err.StatusCode,
		"elapsed": time.Since(start).String(),
	}).Warn("analysis engine call failed")
	return err
}

func encodePayload(payload *ingest.Payload) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("jd", payload.JobDescription); err != nil {
		return nil, "", err
	}

	switch resume := payload.Resume.(type) {
	case ingest.Document:
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="resume_pdf"; filename=%q`, resume.Filename))
		h.Set("Content-Type", resume.ContentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(resume.Data); err != nil {
			return nil, "", err
		}
	case ingest.Text:
		if err := w.WriteField("resume_text", resume.Content); err != nil {
			return nil, "", err
		}
	default:
		return nil, "", fmt.Errorf("unsupported resume kind %q", payload.Resume.Kind())
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func classifyTransportError(err error) *UnavailableError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &UnavailableError{Kind: FailureTimeout, Err: err}
	}
	return &UnavailableError{Kind: FailureNetwork, Err: err}
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	if s == "" {
		return "empty response body"
	}
	return s
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

var _ Client = (*HTTPClient)(nil)
