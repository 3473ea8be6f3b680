// Package api implements the submission client for the literature-review
// backend: discovery submissions (multipart, with attachments) and
// verification submissions (entity pair).
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lira/internal/log"
	"lira/internal/protocol"
)

// Validation errors surfaced to the user before any network call.
var (
	// ErrEmptySubmission means a discovery submission has neither text nor
	// attachments.
	ErrEmptySubmission = errors.New("provide a message or attach at least one file")
	// ErrMissingEntity means a verification submission is missing one or
	// both entity names.
	ErrMissingEntity = errors.New("both entity names are required")
)

// HTTPError is a non-2xx backend response.
type HTTPError struct {
	Status  int
	Snippet string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Snippet)
}

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 4096
)

// Client submits jobs to the backend. All methods are safe to call from the
// single update-loop goroutine; the client itself holds no mutable state.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// NewClient creates a client for the given base URL. A zero timeout selects
// the 30s default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

// ValidateDiscovery checks a discovery request locally. Controllers call
// this before disabling the form so a validation failure never leaves the
// form stuck in its processing state.
func ValidateDiscovery(req protocol.DiscoveryRequest) error {
	if strings.TrimSpace(req.Content) == "" && len(req.Files) == 0 {
		return ErrEmptySubmission
	}
	return nil
}

// ValidateVerification checks a verification request locally.
func ValidateVerification(req protocol.VerificationRequest) error {
	if strings.TrimSpace(req.Entity1) == "" || strings.TrimSpace(req.Entity2) == "" {
		return ErrMissingEntity
	}
	return nil
}

// SubmitDiscovery sends a discovery submission: optional continuation job
// id, optional free text, and all staged attachments as multipart file
// parts. Validation failures return before any network activity.
func (c *Client) SubmitDiscovery(ctx context.Context, req protocol.DiscoveryRequest) (*protocol.SubmitResponse, error) {
	if err := ValidateDiscovery(req); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("lira/api").Start(ctx, "submit.discovery")
	defer span.End()
	span.SetAttributes(
		attribute.Int("files", len(req.Files)),
		attribute.Bool("continuation", req.JobID != nil),
	)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if req.JobID != nil {
		if err := writer.WriteField("job_id", strconv.FormatInt(*req.JobID, 10)); err != nil {
			return nil, fmt.Errorf("writing job_id field: %w", err)
		}
	}
	if strings.TrimSpace(req.Content) != "" {
		if err := writer.WriteField("content", req.Content); err != nil {
			return nil, fmt.Errorf("writing content field: %w", err)
		}
	}
	for _, att := range req.Files {
		if err := appendFilePart(writer, att); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing multipart body: %w", err)
	}

	resp, err := c.post(ctx, "/chat/", writer.FormDataContentType(), &body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int64("job_id", resp.JobID))

	log.Info(log.CatAPI, "Discovery submitted",
		"jobID", resp.JobID, "workflowTriggered", resp.WorkflowTriggered, "files", len(req.Files))
	return resp, nil
}

// SubmitVerification sends a verification submission for an entity pair.
func (c *Client) SubmitVerification(ctx context.Context, req protocol.VerificationRequest) (*protocol.SubmitResponse, error) {
	if err := ValidateVerification(req); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer("lira/api").Start(ctx, "submit.verification")
	defer span.End()

	form := url.Values{}
	form.Set("entity1", strings.TrimSpace(req.Entity1))
	form.Set("entity2", strings.TrimSpace(req.Entity2))

	resp, err := c.post(ctx, "/verify/", "application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int64("job_id", resp.JobID))

	log.Info(log.CatAPI, "Verification submitted",
		"jobID", resp.JobID, "entity1", req.Entity1, "entity2", req.Entity2)
	return resp, nil
}

// appendFilePart streams one attachment into the multipart body. The file
// content is passed through untouched.
func appendFilePart(writer *multipart.Writer, att protocol.Attachment) error {
	f, err := os.Open(att.Path)
	if err != nil {
		return fmt.Errorf("opening attachment %s: %w", att.Name, err)
	}
	defer f.Close()

	part, err := writer.CreateFormFile("files", att.Name)
	if err != nil {
		return fmt.Errorf("creating file part for %s: %w", att.Name, err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copying attachment %s: %w", att.Name, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body io.Reader) (*protocol.SubmitResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpc.Do(req)
	if err != nil {
		log.ErrorErr(log.CatAPI, "Submission transport failure", err, "path", path)
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		httpErr := &HTTPError{Status: resp.StatusCode, Snippet: strings.TrimSpace(string(raw))}
		log.Error(log.CatAPI, "Submission rejected", "path", path, "status", resp.StatusCode)
		return nil, httpErr
	}

	var submitResp protocol.SubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if submitResp.JobID == 0 {
		return nil, fmt.Errorf("response missing job_id")
	}
	return &submitResp, nil
}
