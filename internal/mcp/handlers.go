package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/pocket/internal/capsule"
	"github.com/hpungsan/pocket/internal/config"
	"github.com/hpungsan/pocket/internal/errors"
	"github.com/hpungsan/pocket/internal/logging"
	"github.com/hpungsan/pocket/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store ops.Learner
	cfg   *config.Config
	log   *logging.Logger
}

// NewHandlers creates a new Handlers instance. A nil logger discards output.
func NewHandlers(s ops.Learner, cfg *config.Config, log *logging.Logger) *Handlers {
	if log == nil {
		log = logging.Nop()
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Handlers{store: s, cfg: cfg, log: log.With("component", "mcp")}
}

// Request types for each tool

// ListRequest represents the arguments for capsule_list.
type ListRequest struct {
	Subject string `json:"subject,omitempty"`
	Level   string `json:"level,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// IDRequest represents tools addressed by capsule id only.
type IDRequest struct {
	ID string `json:"id"`
}

// SaveRequest represents the arguments for capsule_save.
type SaveRequest struct {
	ID      string           `json:"id,omitempty"`
	Capsule *capsule.Capsule `json:"capsule"`
}

// ExportRequest represents the arguments for capsule_export.
type ExportRequest struct {
	ID     string `json:"id"`
	Path   string `json:"path,omitempty"`
	Inline bool   `json:"inline,omitempty"`
}

// ExportInlineOutput is returned by capsule_export with inline=true.
type ExportInlineOutput struct {
	ID   string `json:"id"`
	JSON string `json:"json"`
}

// ImportRequest represents the arguments for capsule_import.
type ImportRequest struct {
	Path string `json:"path,omitempty"`
	Text string `json:"text,omitempty"`
}

// ProgressSaveRequest represents the arguments for progress_save.
type ProgressSaveRequest struct {
	ID       string            `json:"id"`
	Progress *capsule.Progress `json:"progress,omitempty"`
	Card     *int              `json:"card,omitempty"`
	Known    *bool             `json:"known,omitempty"`
}

// QuizSubmitRequest represents the arguments for quiz_submit.
type QuizSubmitRequest struct {
	ID      string `json:"id"`
	Answers []int  `json:"answers"`
}

// Handler implementations

// HandleList handles capsule_list.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return h.errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.List(ctx, h.store, ops.ListInput{
		Subject: input.Subject,
		Level:   input.Level,
		Limit:   input.Limit,
		Offset:  input.Offset,
	})
	if err != nil {
		return h.errorResult(err), nil
	}
	return successResult(result)
}

// HandleLoad handles capsule_load.
func (h *Handlers) HandleLoad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return h.errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.Fetch(ctx, h.store, input.ID)
	if err != nil {
		return h.errorResult(err), nil
	}
	return successResult(result)
}

// HandleSave handles capsule_save.
func (h *Handlers) HandleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SaveRequest](req)
	if err != nil {
		return h.errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.Store(ctx, h.store, ops.StoreInput{ID: input.ID, Capsule: input.Capsule})
	if err != nil {
		return h.errorResult(err), nil
	}
	return successResult(result)
}

// HandleDelete handles capsule_delete.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return h.errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.Delete(ctx, h.store, input.ID)
	if err != nil {
		return h.errorResult(err), nil
	}
	return successResult(result)
}

// HandleExport handles capsule_export.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return h.errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if input.Inline {
		if input.Path != "" {
			return h.errorResult(errors.NewInvalidRequest("path and inline are mutually exclusive")), nil
		}
		text, fetched, err := ops.ExportText(ctx, h.store, input.ID)
		if err != nil {
			return h.errorResult(err), nil
		}
		return successResult(ExportInlineOutput{ID: fetched.ID, JSON: text})
	}

	result, err := ops.Export(ctx, h.store, h.cfg, ops.ExportInput{ID: input.ID, Path: input.Path})
	if err != nil {
		return h.errorResult(err), nil
	}
	return successResult(result)
}

// HandleImport handles capsule_import.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return h.errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	hasPath := strings.TrimSpace(input.Path) != ""
	hasText := strings.TrimSpace(input.Text) != ""
	var result *ops.ImportOutput
	switch {
	case hasPath && hasText:
		return h.errorResult(errors.NewInvalidRequest("specify either path or text, not both")), nil
	case hasPath:
		result, err = ops.Import(ctx, h.store, h.cfg, ops.ImportInput{Path: input.Path})
	case hasText:
		result, err = ops.ImportText(ctx, h.store, []byte(input.Text))
	default:
		return h.errorResult(errors.NewInvalidRequest("path or text is required")), nil
	}
	if err != nil {
		return h.errorResult(err), nil
	}
	return successResult(result)
}

// HandleProgressGet handles progress_get.
func (h *Handlers) HandleProgressGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[IDRequest](req)
	if err != nil {
		return h.errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.GetProgress(ctx, h.store, input.ID)
	if err != nil {
		return h.errorResult(err), nil
	}
	return successResult(result)
}

// HandleProgressSave handles progress_save. Either progress or card+known is required.
func (h *Handlers) HandleProgressSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProgressSaveRequest](req)
	if err != nil {
		return h.errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var result *ops.ProgressOutput
	switch {
	case input.Progress != nil && input.Card != nil:
		return h.errorResult(errors.NewInvalidRequest("specify either progress or card, not both")), nil
	case input.Progress != nil:
		result, err = ops.SaveProgress(ctx, h.store, input.ID, *input.Progress)
	case input.Card != nil:
		known := input.Known == nil || *input.Known
		result, err = ops.MarkKnown(ctx, h.store, input.ID, *input.Card, known)
	default:
		return h.errorResult(errors.NewInvalidRequest("progress or card is required")), nil
	}
	if err != nil {
		return h.errorResult(err), nil
	}
	return successResult(result)
}

// HandleQuizSubmit handles quiz_submit.
func (h *Handlers) HandleQuizSubmit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[QuizSubmitRequest](req)
	if err != nil {
		return h.errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := ops.SubmitQuiz(ctx, h.store, input.ID, input.Answers)
	if err != nil {
		return h.errorResult(err), nil
	}
	return successResult(result)
}

// Result helpers

// errorResult logs err and converts it to an MCP error result (IsError: true).
// INTERNAL errors carry a generic message so backend details stay private.
func (h *Handlers) errorResult(err error) *mcp.CallToolResult {
	var pErr *errors.PocketError
	if !stderrors.As(err, &pErr) || pErr.Code == errors.ErrInternal {
		h.log.Error("tool failed", "error", err)
	}
	return errorResult(err)
}

func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var pErr *errors.PocketError
	if stderrors.As(err, &pErr) && pErr.Code != errors.ErrInternal {
		msg := pErr.Message
		// Keep wrapper context such as "items[2]: "
		if prefix := strings.TrimSuffix(err.Error(), pErr.Error()); prefix != err.Error() {
			msg = prefix + msg
		}
		errorObj := map[string]any{
			"code":    pErr.Code,
			"message": msg,
			"status":  pErr.Status,
		}
		if pErr.Details != nil {
			errorObj["details"] = pErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
