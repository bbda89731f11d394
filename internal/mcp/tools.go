package mcp

import "github.com/mark3labs/mcp-go/mcp"

const pathDescription = "Path to the document (.txt, .md or .html)"

var extractToolDef = mcp.NewTool("requirements_extract",
	mcp.WithDescription("Extract requirement candidates from a document. Results are cached per document until its content changes."),
	mcp.WithString("path", mcp.Required(), mcp.Description(pathDescription)),
	mcp.WithBoolean("force", mcp.Description("Skip the cache and run the pipeline again")),
)

var reviewToolDef = mcp.NewTool("requirements_review",
	mcp.WithDescription("Locate each candidate's sentence in the document text and return the non-overlapping highlight spans."),
	mcp.WithString("path", mcp.Required(), mcp.Description(pathDescription)),
	mcp.WithBoolean("segments", mcp.Description("Also return the document split into plain and highlighted runs")),
)

var allocateToolDef = mcp.NewTool("requirements_allocate",
	mcp.WithDescription("Suggest a subsystem for every candidate not yet accepted. Falls back to heuristics when the AI reviewer is unavailable."),
	mcp.WithString("path", mcp.Required(), mcp.Description(pathDescription)),
	mcp.WithString("subsystems_file", mcp.Description("Subsystem catalog (YAML); defaults to the configured one")),
	mcp.WithBoolean("use_ai", mcp.Description("Ask the AI reviewer first")),
)

var applyAllocationToolDef = mcp.NewTool("requirements_apply_allocation",
	mcp.WithDescription("Set one candidate's allocation, either from a suggestion or from an explicit subsystem name."),
	mcp.WithString("path", mcp.Required(), mcp.Description(pathDescription)),
	mcp.WithString("candidate_id", mcp.Required(), mcp.Description("Candidate to allocate")),
	mcp.WithString("allocation", mcp.Description("Catalog subsystem or \"System Level\"; empty string clears the allocation")),
	mcp.WithBoolean("create", mcp.Description("Add a proposed new subsystem to the catalog")),
	mcp.WithString("subsystems_file", mcp.Description("Subsystem catalog (YAML); defaults to the configured one")),
	mcp.WithBoolean("use_ai", mcp.Description("Ask the AI reviewer for the suggestion")),
)

var qualityReviewToolDef = mcp.NewTool("requirements_quality_review",
	mcp.WithDescription("Run the AI quality pass over the weakest candidates and merge its name, confidence and flag updates."),
	mcp.WithString("path", mcp.Required(), mcp.Description(pathDescription)),
)

var selectToolDef = mcp.NewTool("requirements_select",
	mcp.WithDescription("Mark a candidate selected or unselected for acceptance and export."),
	mcp.WithString("path", mcp.Required(), mcp.Description(pathDescription)),
	mcp.WithString("candidate_id", mcp.Required(), mcp.Description("Candidate to toggle")),
	mcp.WithBoolean("selected", mcp.Required(), mcp.Description("New selection state")),
)

var addToolDef = mcp.NewTool("requirements_add",
	mcp.WithDescription("Add a sentence from the document as a manual candidate."),
	mcp.WithString("path", mcp.Required(), mcp.Description(pathDescription)),
	mcp.WithString("text", mcp.Required(), mcp.Description("Requirement sentence")),
)

var removeToolDef = mcp.NewTool("requirements_remove",
	mcp.WithDescription("Remove a candidate from the document's working set."),
	mcp.WithString("path", mcp.Required(), mcp.Description(pathDescription)),
	mcp.WithString("candidate_id", mcp.Required(), mcp.Description("Candidate to remove")),
)

var exportToolDef = mcp.NewTool("requirements_export",
	mcp.WithDescription("Write the document's candidates to a CSV, JSON or text file."),
	mcp.WithString("path", mcp.Required(), mcp.Description(pathDescription)),
	mcp.WithString("format", mcp.Required(), mcp.Enum("csv", "json", "text"), mcp.Description("Export format")),
	mcp.WithString("out", mcp.Description("Destination file; defaults to ~/.reqlens/exports/<document>-<timestamp>.<ext>")),
	mcp.WithBoolean("selected_only", mcp.Description("Export only selected candidates")),
)

var acceptToolDef = mcp.NewTool("requirements_accept",
	mcp.WithDescription("Accept candidates as requirement records. Accepted candidates become read-only."),
	mcp.WithString("path", mcp.Required(), mcp.Description(pathDescription)),
	mcp.WithArray("candidate_ids",
		mcp.Description("Candidates to accept; defaults to every selected candidate"),
		mcp.Items(map[string]any{"type": "string"})),
)

var listToolDef = mcp.NewTool("requirements_list",
	mcp.WithDescription("List accepted requirement records, newest first."),
	mcp.WithString("path", mcp.Description("Limit the list to one document")),
)

var deleteToolDef = mcp.NewTool("requirements_delete",
	mcp.WithDescription("Delete an accepted requirement record."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Record ID")),
)

var forgetToolDef = mcp.NewTool("document_forget",
	mcp.WithDescription("Drop a document's cached candidates and cancel any extraction in flight."),
	mcp.WithString("path", mcp.Required(), mcp.Description(pathDescription)),
)
