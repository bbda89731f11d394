package mcp

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/reqlens/internal/errors"
	"github.com/hpungsan/reqlens/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	env *ops.Env
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(env *ops.Env) *Handlers {
	return &Handlers{env: env}
}

// Request types for each tool

// ExtractRequest represents the arguments for requirements_extract.
type ExtractRequest struct {
	Path  string `json:"path"`
	Force bool   `json:"force,omitempty"`
}

// ReviewRequest represents the arguments for requirements_review.
type ReviewRequest struct {
	Path     string `json:"path"`
	Segments bool   `json:"segments,omitempty"`
}

// AllocateRequest represents the arguments for requirements_allocate.
type AllocateRequest struct {
	Path           string `json:"path"`
	SubsystemsFile string `json:"subsystems_file,omitempty"`
	UseAI          bool   `json:"use_ai,omitempty"`
}

// ApplyAllocationRequest represents the arguments for requirements_apply_allocation.
type ApplyAllocationRequest struct {
	Path           string  `json:"path"`
	CandidateID    string  `json:"candidate_id"`
	Allocation     *string `json:"allocation,omitempty"`
	Create         bool    `json:"create,omitempty"`
	SubsystemsFile string  `json:"subsystems_file,omitempty"`
	UseAI          bool    `json:"use_ai,omitempty"`
}

// PathRequest represents tools that only take a document path.
type PathRequest struct {
	Path string `json:"path"`
}

// SelectRequest represents the arguments for requirements_select.
type SelectRequest struct {
	Path        string `json:"path"`
	CandidateID string `json:"candidate_id"`
	Selected    *bool  `json:"selected"`
}

// AddRequest represents the arguments for requirements_add.
type AddRequest struct {
	Path string `json:"path"`
	Text string `json:"text"`
}

// RemoveRequest represents the arguments for requirements_remove.
type RemoveRequest struct {
	Path        string `json:"path"`
	CandidateID string `json:"candidate_id"`
}

// ExportRequest represents the arguments for requirements_export.
type ExportRequest struct {
	Path         string `json:"path"`
	Format       string `json:"format"`
	Out          string `json:"out,omitempty"`
	SelectedOnly bool   `json:"selected_only,omitempty"`
}

// AcceptRequest represents the arguments for requirements_accept.
type AcceptRequest struct {
	Path         string   `json:"path"`
	CandidateIDs []string `json:"candidate_ids,omitempty"`
}

// DeleteRequest represents the arguments for requirements_delete.
type DeleteRequest struct {
	ID string `json:"id"`
}

// Handler implementations

// HandleExtract handles the requirements_extract tool call.
func (h *Handlers) HandleExtract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExtractRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Extract(ctx, h.env, ops.ExtractInput{Path: input.Path, Force: input.Force})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleReview handles the requirements_review tool call.
func (h *Handlers) HandleReview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReviewRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Review(ctx, h.env, ops.ReviewInput{Path: input.Path, Segments: input.Segments})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleAllocate handles the requirements_allocate tool call.
func (h *Handlers) HandleAllocate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AllocateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Allocate(ctx, h.env, ops.AllocateInput{
		Path:           input.Path,
		SubsystemsFile: input.SubsystemsFile,
		UseAI:          input.UseAI,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleApplyAllocation handles the requirements_apply_allocation tool call.
func (h *Handlers) HandleApplyAllocation(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ApplyAllocationRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ApplyAllocation(ctx, h.env, ops.ApplyInput{
		Path:           input.Path,
		CandidateID:    input.CandidateID,
		Allocation:     input.Allocation,
		Create:         input.Create,
		SubsystemsFile: input.SubsystemsFile,
		UseAI:          input.UseAI,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleQualityReview handles the requirements_quality_review tool call.
func (h *Handlers) HandleQualityReview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PathRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.QualityReview(ctx, h.env, ops.QualityInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSelect handles the requirements_select tool call.
func (h *Handlers) HandleSelect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SelectRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Selected == nil {
		return errorResult(errors.NewInvalidRequest("selected is required")), nil
	}

	result, err := ops.Select(ctx, h.env, ops.SelectInput{
		Path:        input.Path,
		CandidateID: input.CandidateID,
		Selected:    *input.Selected,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleAdd handles the requirements_add tool call.
func (h *Handlers) HandleAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Add(ctx, h.env, ops.AddInput{Path: input.Path, Text: input.Text})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRemove handles the requirements_remove tool call.
func (h *Handlers) HandleRemove(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RemoveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Remove(ctx, h.env, ops.RemoveInput{Path: input.Path, CandidateID: input.CandidateID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the requirements_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.env, ops.ExportInput{
		Path:         input.Path,
		Format:       input.Format,
		Out:          input.Out,
		SelectedOnly: input.SelectedOnly,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleAccept handles the requirements_accept tool call.
func (h *Handlers) HandleAccept(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[AcceptRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Accept(ctx, h.env, ops.AcceptInput{Path: input.Path, CandidateIDs: input.CandidateIDs})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the requirements_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PathRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.env, ops.ListInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDelete handles the requirements_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.DeleteRecord(ctx, h.env, ops.DeleteRecordInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleForget handles the document_forget tool call.
func (h *Handlers) HandleForget(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PathRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Forget(ctx, h.env, ops.ForgetInput{Path: input.Path})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if reqErr, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    reqErr.Code,
			"message": reqErr.Message,
			"status":  reqErr.Status,
		}
		// details can carry file paths or SQL text for internal errors
		if reqErr.Code != errors.ErrInternal && reqErr.Details != nil {
			errorObj["details"] = reqErr.Details
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
