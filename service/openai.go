package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/config"
	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/pkg/logger"
)

// OpenAIService talks to the OpenAI Assistants v2 API
type OpenAIService struct {
	config     *config.OpenAIConfig
	httpClient *http.Client
}

type listResponse[T any] struct {
	Data    []T  `json:"data"`
	HasMore bool `json:"has_more"`
}

type deleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

func NewOpenAIService(cfg *config.OpenAIConfig) *OpenAIService {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIService{
		config: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// UploadFile uploads a document as multipart form data
func (s *OpenAIService) UploadFile(ctx context.Context, upload FileUpload) (*RemoteFile, error) {
	purpose := upload.Purpose
	if purpose == "" {
		purpose = PurposeAssistants
	}
	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", purpose); err != nil {
		return nil, fmt.Errorf("failed to write purpose field: %w", err)
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(upload.Filename)))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(upload.Data); err != nil {
		return nil, fmt.Errorf("failed to write file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	var file RemoteFile
	if err := s.do(ctx, http.MethodPost, "/files", &buf, mw.FormDataContentType(), &file); err != nil {
		return nil, err
	}
	return &file, nil
}

// DeleteFile removes an uploaded file
func (s *OpenAIService) DeleteFile(ctx context.Context, fileID string) error {
	var result deleteResponse
	if err := s.do(ctx, http.MethodDelete, "/files/"+url.PathEscape(fileID), nil, "", &result); err != nil {
		return err
	}
	if !result.Deleted {
		return fmt.Errorf("file %s was not deleted", fileID)
	}
	return nil
}

// ListFiles lists uploaded files with the given purpose
func (s *OpenAIService) ListFiles(ctx context.Context, purpose string) ([]RemoteFile, error) {
	path := "/files"
	if purpose != "" {
		path += "?purpose=" + url.QueryEscape(purpose)
	}
	var result listResponse[RemoteFile]
	if err := s.do(ctx, http.MethodGet, path, nil, "", &result); err != nil {
		return nil, err
	}
	return result.Data, nil
}

func (s *OpenAIService) CreateAssistant(ctx context.Context, req AssistantRequest) (*Assistant, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	var assistant Assistant
	if err := s.do(ctx, http.MethodPost, "/assistants", bytes.NewReader(body), "application/json", &assistant); err != nil {
		return nil, err
	}
	return &assistant, nil
}

func (s *OpenAIService) DeleteAssistant(ctx context.Context, assistantID string) error {
	var result deleteResponse
	return s.do(ctx, http.MethodDelete, "/assistants/"+url.PathEscape(assistantID), nil, "", &result)
}

// CreateThreadAndRun starts a run on a fresh thread without waiting for it
func (s *OpenAIService) CreateThreadAndRun(ctx context.Context, req ThreadRunRequest) (*Run, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	var run Run
	if err := s.do(ctx, http.MethodPost, "/threads/runs", bytes.NewReader(body), "application/json", &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *OpenAIService) GetRun(ctx context.Context, threadID, runID string) (*Run, error) {
	var run Run
	path := fmt.Sprintf("/threads/%s/runs/%s", url.PathEscape(threadID), url.PathEscape(runID))
	if err := s.do(ctx, http.MethodGet, path, nil, "", &run); err != nil {
		return nil, err
	}
	return &run, nil
}

func (s *OpenAIService) CancelRun(ctx context.Context, threadID, runID string) error {
	var run Run
	path := fmt.Sprintf("/threads/%s/runs/%s/cancel", url.PathEscape(threadID), url.PathEscape(runID))
	return s.do(ctx, http.MethodPost, path, nil, "", &run)
}

// CreateThreadAndRunPoll starts a run and polls it until it reaches a terminal status.
// If ctx ends first the run is cancelled remotely on a best-effort basis.
func (s *OpenAIService) CreateThreadAndRunPoll(ctx context.Context, req ThreadRunRequest) (*Run, error) {
	run, err := s.CreateThreadAndRun(ctx, req)
	if err != nil {
		return nil, err
	}

	interval := s.config.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for !run.Status.Terminal() {
		select {
		case <-ctx.Done():
			s.cancelDetached(ctx, run)
			return nil, fmt.Errorf("run %s interrupted: %w", run.ID, ctx.Err())
		case <-ticker.C:
		}

		next, err := s.GetRun(ctx, run.ThreadID, run.ID)
		if err != nil {
			if ctx.Err() != nil {
				s.cancelDetached(ctx, run)
			}
			return nil, fmt.Errorf("failed to poll run %s: %w", run.ID, err)
		}
		run = next
		logger.Debug(ctx, "run status", "run_id", run.ID, "status", string(run.Status))
	}

	return run, nil
}

func (s *OpenAIService) cancelDetached(ctx context.Context, run *Run) {
	cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.CancelRun(cancelCtx, run.ThreadID, run.ID); err != nil {
		logger.Warn(ctx, "failed to cancel run", "run_id", run.ID, "error", err)
	}
}

// ListMessages returns the thread's messages in delivery order
func (s *OpenAIService) ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	var messages []ThreadMessage
	after := ""
	for {
		query := url.Values{}
		query.Set("order", "asc")
		query.Set("limit", "100")
		if after != "" {
			query.Set("after", after)
		}
		path := fmt.Sprintf("/threads/%s/messages?%s", url.PathEscape(threadID), query.Encode())

		var page listResponse[ThreadMessage]
		if err := s.do(ctx, http.MethodGet, path, nil, "", &page); err != nil {
			return nil, err
		}
		messages = append(messages, page.Data...)
		if !page.HasMore || len(page.Data) == 0 {
			return messages, nil
		}
		after = page.Data[len(page.Data)-1].ID
	}
}

func (s *OpenAIService) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(s.config.APIURL, "/")+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("OpenAI-Beta", "assistants=v2")
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, respBody)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func parseAPIError(status int, body []byte) error {
	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Error == nil {
		return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
	}
	envelope.Error.StatusCode = status
	return envelope.Error
}

// IsNotFound reports whether err is a 404 from the remote API
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
