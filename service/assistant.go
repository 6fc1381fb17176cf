package service

import (
	"context"
	"encoding/json"
	"fmt"
)

// AssistantClient is the remote document-understanding API used by the extractor
type AssistantClient interface {
	UploadFile(ctx context.Context, upload FileUpload) (*RemoteFile, error)
	DeleteFile(ctx context.Context, fileID string) error
	CreateAssistant(ctx context.Context, req AssistantRequest) (*Assistant, error)
	DeleteAssistant(ctx context.Context, assistantID string) error
	// CreateThreadAndRunPoll starts a run on a new thread and blocks until the run
	// reaches a terminal status or ctx is done.
	CreateThreadAndRunPoll(ctx context.Context, req ThreadRunRequest) (*Run, error)
	// ListMessages returns the thread's messages oldest first
	ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error)
}

// RemoteFileLister is implemented by clients that can enumerate uploaded files
type RemoteFileLister interface {
	ListFiles(ctx context.Context, purpose string) ([]RemoteFile, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// PurposeAssistants marks files uploaded as assistant input
const PurposeAssistants = "assistants"

// ToolFileSearch lets an assistant read attached files
const ToolFileSearch = "file_search"

type FileUpload struct {
	Filename    string
	ContentType string
	Purpose     string
	Data        []byte
}

type RemoteFile struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Purpose   string `json:"purpose"`
	Bytes     int64  `json:"bytes"`
	CreatedAt int64  `json:"created_at"`
}

type Tool struct {
	Type string `json:"type"`
}

type AssistantRequest struct {
	Model        string `json:"model"`
	Name         string `json:"name,omitempty"`
	Instructions string `json:"instructions,omitempty"`
	Tools        []Tool `json:"tools,omitempty"`
}

type Assistant struct {
	ID    string `json:"id"`
	Model string `json:"model"`
	Name  string `json:"name"`
}

type Attachment struct {
	FileID string `json:"file_id"`
	Tools  []Tool `json:"tools"`
}

type MessageInput struct {
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

type ThreadInput struct {
	Messages []MessageInput `json:"messages"`
}

type ThreadRunRequest struct {
	AssistantID string      `json:"assistant_id"`
	Thread      ThreadInput `json:"thread"`
}

// RunStatus is the lifecycle state of a remote run
type RunStatus string

const (
	RunQueued         RunStatus = "queued"
	RunInProgress     RunStatus = "in_progress"
	RunRequiresAction RunStatus = "requires_action"
	RunCancelling     RunStatus = "cancelling"
	RunCancelled      RunStatus = "cancelled"
	RunFailed         RunStatus = "failed"
	RunCompleted      RunStatus = "completed"
	RunIncomplete     RunStatus = "incomplete"
	RunExpired        RunStatus = "expired"
)

// Terminal reports whether polling should stop at this status.
// requires_action is terminal because the extractor never registers function tools.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunQueued, RunInProgress, RunCancelling:
		return false
	default:
		return true
	}
}

type RunError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Run struct {
	ID          string    `json:"id"`
	ThreadID    string    `json:"thread_id"`
	AssistantID string    `json:"assistant_id"`
	Status      RunStatus `json:"status"`
	LastError   *RunError `json:"last_error"`
}

type ThreadMessage struct {
	ID        string           `json:"id"`
	Role      string           `json:"role"`
	RunID     string           `json:"run_id"`
	Content   []MessageContent `json:"content"`
	CreatedAt int64            `json:"created_at"`
}

type MessageContent struct {
	Type string       `json:"type"`
	Text *MessageText `json:"text,omitempty"`
}

type MessageText struct {
	Value       string            `json:"value"`
	Annotations []json.RawMessage `json:"annotations,omitempty"`
}

// APIError is a non-2xx response from the remote API
type APIError struct {
	StatusCode int    `json:"-"`
	Type       string `json:"type"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("openai API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("openai API error: status %d: %s", e.StatusCode, e.Message)
}
