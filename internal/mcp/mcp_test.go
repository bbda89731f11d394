package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/reqlens/internal/config"
	"github.com/hpungsan/reqlens/internal/db"
	"github.com/hpungsan/reqlens/internal/errors"
	"github.com/hpungsan/reqlens/internal/ops"
)

const sowText = `1 Scope
This document covers the pump skid.

2 Requirements
The pump shall stop within 2 seconds.
The valve must open in under 5 seconds.
The motor shall deliver 40 N of thrust.
`

// testSetup creates a temporary database, subsystem catalog and document,
// and returns the environment and the document path.
func testSetup(t *testing.T) (*ops.Env, string) {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.Init(filepath.Join(tmpDir, ".reqlens"))
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	catalog := filepath.Join(tmpDir, "subsystems.yaml")
	if err := os.WriteFile(catalog, []byte("subsystems:\n  - name: Pump\n"), 0o600); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}
	doc := filepath.Join(tmpDir, "sow.txt")
	if err := os.WriteFile(doc, []byte(sowText), 0o600); err != nil {
		t.Fatalf("failed to write document: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true // Allow temp dirs in tests
	cfg.SubsystemsFile = catalog

	env, err := ops.NewEnv(database, cfg, zap.NewNop(), nil)
	if err != nil {
		t.Fatalf("failed to build env: %v", err)
	}
	return env, doc
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// extractIDs runs requirements_extract and returns the candidate ids.
func extractIDs(t *testing.T, h *Handlers, path string) []string {
	t.Helper()
	result, err := h.HandleExtract(context.Background(), makeRequest(map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("HandleExtract error: %v", err)
	}
	out := parseOutput(t, result)
	var ids []string
	for _, c := range out["candidates"].([]any) {
		ids = append(ids, c.(map[string]any)["id"].(string))
	}
	return ids
}

func TestHandleExtract(t *testing.T) {
	env, doc := testSetup(t)
	h := NewHandlers(env)
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		result, err := h.HandleExtract(ctx, makeRequest(map[string]any{"path": doc}))
		if err != nil {
			t.Fatalf("HandleExtract error: %v", err)
		}
		out := parseOutput(t, result)
		if n := len(out["candidates"].([]any)); n != 3 {
			t.Errorf("candidates = %d, want 3", n)
		}
		if out["parser_mode"] != "heuristic" {
			t.Errorf("parser_mode = %v, want heuristic", out["parser_mode"])
		}
		if out["document"].(map[string]any)["name"] != "sow.txt" {
			t.Errorf("document = %v", out["document"])
		}
	})

	t.Run("cached on second call", func(t *testing.T) {
		result, _ := h.HandleExtract(ctx, makeRequest(map[string]any{"path": doc}))
		if out := parseOutput(t, result); out["cached"] != true {
			t.Errorf("cached = %v, want true", out["cached"])
		}
	})

	t.Run("missing file", func(t *testing.T) {
		result, _ := h.HandleExtract(ctx, makeRequest(map[string]any{"path": filepath.Join(t.TempDir(), "nope.txt")}))
		if !result.IsError {
			t.Fatal("expected error result")
		}
		assertErrorCode(t, result, "FILE_NOT_FOUND")
	})

	t.Run("unknown argument", func(t *testing.T) {
		result, _ := h.HandleExtract(ctx, makeRequest(map[string]any{"path": doc, "fast": true}))
		assertErrorCode(t, result, "INVALID_REQUEST")
	})

	t.Run("wrong argument type", func(t *testing.T) {
		result, _ := h.HandleExtract(ctx, makeRequest(map[string]any{"path": 42}))
		assertErrorCode(t, result, "INVALID_REQUEST")
	})
}

func TestHandleReview(t *testing.T) {
	env, doc := testSetup(t)
	h := NewHandlers(env)

	result, err := h.HandleReview(context.Background(), makeRequest(map[string]any{"path": doc, "segments": true}))
	if err != nil {
		t.Fatalf("HandleReview error: %v", err)
	}
	out := parseOutput(t, result)
	if n := len(out["matches"].([]any)); n != 3 {
		t.Errorf("matches = %d, want 3", n)
	}
	var rebuilt string
	for _, s := range out["segments"].([]any) {
		rebuilt += s.(map[string]any)["text"].(string)
	}
	if rebuilt != out["text"] {
		t.Error("segments do not cover the document text")
	}
}

func TestHandleAllocateAndApply(t *testing.T) {
	env, doc := testSetup(t)
	h := NewHandlers(env)
	ctx := context.Background()
	ids := extractIDs(t, h, doc)

	result, err := h.HandleAllocate(ctx, makeRequest(map[string]any{"path": doc, "use_ai": true}))
	if err != nil {
		t.Fatalf("HandleAllocate error: %v", err)
	}
	out := parseOutput(t, result)
	if out["source"] != "heuristic" {
		t.Errorf("source = %v, want heuristic", out["source"])
	}
	if out["ai_error"] != "no_api_key" {
		t.Errorf("ai_error = %v, want no_api_key", out["ai_error"])
	}
	first := out["suggestions"].([]any)[0].(map[string]any)
	if first["allocation"] != "Pump" || first["rule"] != "explicit" {
		t.Errorf("first suggestion = %v", first)
	}

	result, _ = h.HandleApplyAllocation(ctx, makeRequest(map[string]any{"path": doc, "candidate_id": ids[2], "create": true}))
	out = parseOutput(t, result)
	if out["created"].(map[string]any)["name"] != "Propulsion System" {
		t.Errorf("created = %v", out["created"])
	}

	result, _ = h.HandleApplyAllocation(ctx, makeRequest(map[string]any{"path": doc, "candidate_id": ids[1], "allocation": "Hydraulics"}))
	assertErrorCode(t, result, "NOT_FOUND")

	result, _ = h.HandleApplyAllocation(ctx, makeRequest(map[string]any{"path": doc, "candidate_id": ids[1], "allocation": "propulsion system"}))
	out = parseOutput(t, result)
	if out["candidate"].(map[string]any)["allocation"] != "Propulsion System" {
		t.Errorf("candidate = %v", out["candidate"])
	}
}

func TestHandleQualityReview_NoAI(t *testing.T) {
	env, doc := testSetup(t)
	h := NewHandlers(env)

	result, err := h.HandleQualityReview(context.Background(), makeRequest(map[string]any{"path": doc}))
	if err != nil {
		t.Fatalf("HandleQualityReview error: %v", err)
	}
	out := parseOutput(t, result)
	if out["message"] != ops.NoChanges {
		t.Errorf("message = %v, want %q", out["message"], ops.NoChanges)
	}
}

func TestHandleCandidateLifecycle(t *testing.T) {
	env, doc := testSetup(t)
	h := NewHandlers(env)
	ctx := context.Background()
	ids := extractIDs(t, h, doc)

	// selected is required
	result, _ := h.HandleSelect(ctx, makeRequest(map[string]any{"path": doc, "candidate_id": ids[0]}))
	assertErrorCode(t, result, "INVALID_REQUEST")

	result, _ = h.HandleSelect(ctx, makeRequest(map[string]any{"path": doc, "candidate_id": ids[0], "selected": true}))
	if out := parseOutput(t, result); out["candidate"].(map[string]any)["selected"] != true {
		t.Errorf("candidate not selected: %v", out)
	}

	result, _ = h.HandleAdd(ctx, makeRequest(map[string]any{"path": doc, "text": "This document covers the pump skid."}))
	added := parseOutput(t, result)["candidate"].(map[string]any)
	if added["origin"] != "manual" {
		t.Errorf("origin = %v, want manual", added["origin"])
	}

	result, _ = h.HandleRemove(ctx, makeRequest(map[string]any{"path": doc, "candidate_id": ids[1]}))
	if out := parseOutput(t, result); out["remaining"] != float64(3) {
		t.Errorf("remaining = %v, want 3", out["remaining"])
	}

	result, _ = h.HandleAccept(ctx, makeRequest(map[string]any{"path": doc}))
	out := parseOutput(t, result)
	if n := len(out["accepted"].([]any)); n != 2 {
		t.Fatalf("accepted = %d, want 2", n)
	}

	result, _ = h.HandleList(ctx, makeRequest(map[string]any{}))
	out = parseOutput(t, result)
	if out["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", out["count"])
	}
	recordID := out["records"].([]any)[0].(map[string]any)["id"].(string)

	result, _ = h.HandleSelect(ctx, makeRequest(map[string]any{"path": doc, "candidate_id": ids[0], "selected": false}))
	assertErrorCode(t, result, "CONFLICT")

	result, _ = h.HandleDelete(ctx, makeRequest(map[string]any{"id": recordID}))
	if out := parseOutput(t, result); out["deleted"] != true {
		t.Errorf("deleted = %v", out["deleted"])
	}
	result, _ = h.HandleDelete(ctx, makeRequest(map[string]any{"id": recordID}))
	assertErrorCode(t, result, "NOT_FOUND")
}

func TestHandleExport(t *testing.T) {
	env, doc := testSetup(t)
	h := NewHandlers(env)
	outPath := filepath.Join(t.TempDir(), "reqs.json")

	result, err := h.HandleExport(context.Background(), makeRequest(map[string]any{"path": doc, "format": "json", "out": outPath}))
	if err != nil {
		t.Fatalf("HandleExport error: %v", err)
	}
	out := parseOutput(t, result)
	if out["count"] != float64(3) || out["path"] != outPath {
		t.Errorf("export = %v", out)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("export file missing: %v", err)
	}

	result, _ = h.HandleExport(context.Background(), makeRequest(map[string]any{"path": doc, "format": "json", "out": filepath.Join(t.TempDir(), "reqs.csv")}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestHandleForget(t *testing.T) {
	env, doc := testSetup(t)
	h := NewHandlers(env)
	extractIDs(t, h, doc)

	result, err := h.HandleForget(context.Background(), makeRequest(map[string]any{"path": doc}))
	if err != nil {
		t.Fatalf("HandleForget error: %v", err)
	}
	parseOutput(t, result)

	result, _ = h.HandleExtract(context.Background(), makeRequest(map[string]any{"path": doc}))
	if out := parseOutput(t, result); out["cached"] != false {
		t.Errorf("cached = %v after forget, want false", out["cached"])
	}

	result, _ = h.HandleForget(context.Background(), makeRequest(map[string]any{}))
	assertErrorCode(t, result, "INVALID_REQUEST")
}

func TestServerRegistration(t *testing.T) {
	env, _ := testSetup(t)

	s := NewServer(env, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"requirements_extract",
		"requirements_review",
		"requirements_allocate",
		"requirements_apply_allocation",
		"requirements_quality_review",
		"requirements_select",
		"requirements_add",
		"requirements_remove",
		"requirements_export",
		"requirements_accept",
		"requirements_list",
		"requirements_delete",
		"document_forget",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}

	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	env, _ := testSetup(t)

	env.Config.DisabledTools = []string{"requirements_delete", "document_forget", "document_forget"}
	s := NewServer(env, "test")
	tools := s.ListTools()

	if len(tools) != len(toolRegistry)-2 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-2)
	}
	for _, name := range []string{"requirements_delete", "document_forget"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	env, _ := testSetup(t)

	env.Config.DisabledTools = AllToolNames()
	if tools := NewServer(env, "test").ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{"all valid", []string{"requirements_delete", "document_forget"}, 0},
		{"one unknown", []string{"requirements_delete", "bogus_tool"}, 1},
		{"all unknown", []string{"foo", "bar", "baz"}, 3},
		{"empty list", []string{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != len(toolRegistry) {
		t.Errorf("AllToolNames() returned %d names, want %d", len(names), len(toolRegistry))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("AllToolNames() not sorted: %v", names)
		}
	}
	if unknown := ValidateDisabledTools(names); len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	internal := errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied"))
	internal.Details = map[string]any{"path": "/tmp/secret.db"}
	r := errorResult(internal)
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedError(t *testing.T) {
	r := errorResult(fmt.Errorf("records[2]: %w", errors.NewConflict("duplicate text")))
	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrConflict) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrConflict)
	}
	if errObj["status"] != float64(409) {
		t.Errorf("status=%v, want 409", errObj["status"])
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	errObj := errorObject(t, errorResult(errors.NewNotFound("candidate", "abc")))
	if errObj["code"] != string(errors.ErrNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("disk on fire")))
	if errObj["code"] != string(errors.ErrInternal) || errObj["message"] != "an internal error occurred" {
		t.Errorf("error = %v", errObj)
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func errorObject(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("no error object in payload: %v", payload)
	}
	return errObj
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if !result.IsError {
		t.Errorf("expected error %s, got success", expectedCode)
		return
	}
	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}
	if code := errorObject(t, result)["code"]; code != expectedCode {
		t.Errorf("got error code %v, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
