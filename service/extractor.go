package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/config"
	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/model"
	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/pkg/logger"
)

var (
	ErrUploadFailed  = errors.New("document upload failed")
	ErrRunFailed     = errors.New("extraction run did not complete")
	ErrNoResponse    = errors.New("no text response from assistant")
	ErrMalformedJSON = errors.New("assistant response is not valid JSON")
)

// ExtractionErrorKind classifies a failed extraction
type ExtractionErrorKind string

const (
	KindUploadFailed  ExtractionErrorKind = "upload_failed"
	KindRunFailed     ExtractionErrorKind = "run_failed"
	KindNoResponse    ExtractionErrorKind = "no_response"
	KindMalformedJSON ExtractionErrorKind = "malformed_json"
)

func (k ExtractionErrorKind) sentinel() error {
	switch k {
	case KindUploadFailed:
		return ErrUploadFailed
	case KindRunFailed:
		return ErrRunFailed
	case KindNoResponse:
		return ErrNoResponse
	default:
		return ErrMalformedJSON
	}
}

// ExtractionError is returned by Extract for failures of the pipeline itself.
// It matches its kind's sentinel with errors.Is and exposes the cause, if any.
type ExtractionError struct {
	Kind   ExtractionErrorKind
	Detail string
	Err    error
}

func (e *ExtractionError) Error() string {
	msg := e.Kind.sentinel().Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ExtractionError) Unwrap() []error {
	errs := []error{e.Kind.sentinel()}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// SourceDocument is an uploaded declaration. The extractor does not retain it.
type SourceDocument struct {
	Data        []byte
	Filename    string
	ContentType string
}

type ExtractorConfig struct {
	Model          string
	ReuseAssistant bool
	FilePrefix     string
	RunTimeout     time.Duration
	CleanupTimeout time.Duration
}

// ExtractorConfigFrom derives extractor settings from the openai config section
func ExtractorConfigFrom(cfg *config.OpenAIConfig) ExtractorConfig {
	reuse := true
	if cfg.ReuseAssistant != nil {
		reuse = *cfg.ReuseAssistant
	}
	return ExtractorConfig{
		Model:          cfg.Model,
		ReuseAssistant: reuse,
		FilePrefix:     cfg.FilePrefix,
		RunTimeout:     cfg.RunTimeout,
		CleanupTimeout: 30 * time.Second,
	}
}

// Extractor turns a declaration PDF into LegalData using a remote assistant
type Extractor struct {
	client AssistantClient
	cfg    ExtractorConfig

	mu         sync.Mutex
	assistants map[string]string // config fingerprint -> assistant id
}

func NewExtractor(client AssistantClient, cfg ExtractorConfig) *Extractor {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.CleanupTimeout == 0 {
		cfg.CleanupTimeout = 30 * time.Second
	}
	return &Extractor{
		client:     client,
		cfg:        cfg,
		assistants: make(map[string]string),
	}
}

// Extract uploads the document, runs the assistant over it and decodes the answer.
// The uploaded file is deleted on every path once the upload succeeded.
func (e *Extractor) Extract(ctx context.Context, doc SourceDocument) (*model.LegalData, error) {
	start := time.Now()

	filename := doc.Filename
	if filename == "" {
		filename = "declaration.pdf"
	}
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}

	file, err := e.client.UploadFile(ctx, FileUpload{
		Filename:    e.cfg.FilePrefix + filename,
		ContentType: contentType,
		Purpose:     PurposeAssistants,
		Data:        doc.Data,
	})
	if err != nil {
		return nil, &ExtractionError{Kind: KindUploadFailed, Detail: err.Error(), Err: err}
	}
	ctx = logger.With(ctx, "file_id", file.ID)
	logger.Info(ctx, "document uploaded", "filename", filename, "bytes", len(doc.Data))
	defer e.deleteFile(ctx, file.ID)

	assistantID, release, err := e.acquireAssistant(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create assistant: %w", err)
	}
	defer release()

	runCtx := ctx
	if e.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.RunTimeout)
		defer cancel()
	}

	run, err := e.client.CreateThreadAndRunPoll(runCtx, ThreadRunRequest{
		AssistantID: assistantID,
		Thread: ThreadInput{Messages: []MessageInput{{
			Role:    "user",
			Content: extractionPrompt,
			Attachments: []Attachment{{
				FileID: file.ID,
				Tools:  []Tool{{Type: ToolFileSearch}},
			}},
		}}},
	})
	if err != nil {
		if IsNotFound(err) {
			e.forgetAssistant(assistantID)
		}
		return nil, fmt.Errorf("failed to run extraction: %w", err)
	}
	ctx = logger.With(ctx, "run_id", run.ID, "thread_id", run.ThreadID)

	if run.Status != RunCompleted {
		var reason string
		if run.LastError != nil {
			reason = run.LastError.Message
		}
		logger.Warn(ctx, "extraction run did not complete", "status", string(run.Status), "reason", reason)
		return nil, &ExtractionError{Kind: KindRunFailed, Detail: fmt.Sprintf("%s - %s", run.Status, reason)}
	}

	messages, err := e.client.ListMessages(ctx, run.ThreadID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	text, ok := latestAssistantText(messages)
	if !ok {
		return nil, &ExtractionError{Kind: KindNoResponse}
	}

	data, err := ParseLegalData(text)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "declaration extracted",
		"buildings", len(data.Buildings),
		"units", len(data.Units),
		"duration_ms", time.Since(start).Milliseconds())
	return data, nil
}

// SanitizeResponse strips markdown code fences the model may wrap its JSON in
func SanitizeResponse(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// ParseLegalData sanitizes an assistant reply and decodes it
func ParseLegalData(text string) (*model.LegalData, error) {
	var data model.LegalData
	if err := json.Unmarshal([]byte(SanitizeResponse(text)), &data); err != nil {
		return nil, &ExtractionError{Kind: KindMalformedJSON, Detail: err.Error(), Err: err}
	}
	return &data, nil
}

// latestAssistantText returns the first content part of the newest assistant message
// if that part is text.
func latestAssistantText(messages []ThreadMessage) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != "assistant" {
			continue
		}
		content := messages[i].Content
		if len(content) == 0 || content[0].Type != "text" || content[0].Text == nil {
			return "", false
		}
		return content[0].Text.Value, true
	}
	return "", false
}

func (e *Extractor) deleteFile(ctx context.Context, fileID string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.CleanupTimeout)
	defer cancel()

	if err := e.client.DeleteFile(cleanupCtx, fileID); err != nil {
		logger.Warn(ctx, "failed to delete uploaded document", "error", err)
		return
	}
	logger.Debug(ctx, "uploaded document deleted")
}

func (e *Extractor) assistantRequest() AssistantRequest {
	return AssistantRequest{
		Model:        e.cfg.Model,
		Name:         extractorName,
		Instructions: extractorInstructions,
		Tools:        []Tool{{Type: ToolFileSearch}},
	}
}

// acquireAssistant returns the assistant to run and a release func for the caller to defer.
func (e *Extractor) acquireAssistant(ctx context.Context) (string, func(), error) {
	req := e.assistantRequest()

	if !e.cfg.ReuseAssistant {
		assistant, err := e.client.CreateAssistant(ctx, req)
		if err != nil {
			return "", nil, err
		}
		release := func() {
			cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.CleanupTimeout)
			defer cancel()
			if err := e.client.DeleteAssistant(cleanupCtx, assistant.ID); err != nil {
				logger.Warn(ctx, "failed to delete assistant", "assistant_id", assistant.ID, "error", err)
			}
		}
		return assistant.ID, release, nil
	}

	key := fingerprint(req)

	e.mu.Lock()
	defer e.mu.Unlock()

	if id, ok := e.assistants[key]; ok {
		return id, func() {}, nil
	}

	assistant, err := e.client.CreateAssistant(ctx, req)
	if err != nil {
		return "", nil, err
	}
	e.assistants[key] = assistant.ID
	logger.Info(ctx, "assistant created", "assistant_id", assistant.ID, "model", req.Model)
	return assistant.ID, func() {}, nil
}

func (e *Extractor) forgetAssistant(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, cached := range e.assistants {
		if cached == id {
			delete(e.assistants, key)
		}
	}
}

func fingerprint(req AssistantRequest) string {
	h := sha256.New()
	h.Write([]byte(req.Model))
	h.Write([]byte{0})
	h.Write([]byte(req.Name))
	h.Write([]byte{0})
	h.Write([]byte(req.Instructions))
	for _, tool := range req.Tools {
		h.Write([]byte{0})
		h.Write([]byte(tool.Type))
	}
	return hex.EncodeToString(h.Sum(nil))
}
