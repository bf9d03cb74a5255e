package mcp

import "github.com/mark3labs/mcp-go/mcp"

var listToolDef = mcp.NewTool("capsule_list",
	mcp.WithDescription("List study capsules in the library, newest first, with best quiz score and known flashcard count."),
	mcp.WithString("subject", mcp.Description("Only capsules with this subject (case-insensitive)")),
	mcp.WithString("level", mcp.Description("Only capsules with this level, e.g. Beginner")),
	mcp.WithNumber("limit", mcp.Description("Page size (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Entries to skip (default 0)")),
)

var loadToolDef = mcp.NewTool("capsule_load",
	mcp.WithDescription("Load one capsule (notes, flashcards, quiz) and its progress."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Capsule id")),
)

var saveToolDef = mcp.NewTool("capsule_save",
	mcp.WithDescription("Create a capsule, or update one in place when id is given. Quiz questions need exactly 4 choices and an answer index 0-3."),
	mcp.WithString("id", mcp.Description("Existing capsule id to update; omit to create")),
	mcp.WithObject("capsule", mcp.Required(),
		mcp.Description(`Capsule: {"meta":{"title","subject","level","description"},"notes":[string],"flashcards":[{"front","back"}],"quiz":[{"question","choices":[4 strings],"answer":0-3,"explanation"}]}`)),
)

var deleteToolDef = mcp.NewTool("capsule_delete",
	mcp.WithDescription("Delete a capsule with its progress. Deleting an unknown id is not an error."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Capsule id")),
)

var exportToolDef = mcp.NewTool("capsule_export",
	mcp.WithDescription("Export a capsule as pocket-classroom/v1 JSON, to a file or inline."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Capsule id")),
	mcp.WithString("path", mcp.Description("Destination .json file (default ~/.pocket/exports/<title>-<timestamp>.json)")),
	mcp.WithBoolean("inline", mcp.Description("Return the JSON text instead of writing a file")),
)

var importToolDef = mcp.NewTool("capsule_import",
	mcp.WithDescription("Import a pocket-classroom/v1 capsule from a .json file or inline text. Always creates a new capsule."),
	mcp.WithString("path", mcp.Description("Source .json file")),
	mcp.WithString("text", mcp.Description("Exchange JSON text (alternative to path)")),
)

var progressGetToolDef = mcp.NewTool("progress_get",
	mcp.WithDescription("Get the learner's best quiz score and known flashcards for a capsule."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Capsule id")),
)

var progressSaveToolDef = mcp.NewTool("progress_save",
	mcp.WithDescription("Overwrite progress for a capsule, or mark a single flashcard known/unknown."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Capsule id")),
	mcp.WithObject("progress", mcp.Description(`Full record: {"bestScore":0-100,"knownFlashcards":[int]}`)),
	mcp.WithNumber("card", mcp.Description("Flashcard index to mark (used with known)")),
	mcp.WithBoolean("known", mcp.Description("Whether card is known")),
)

var quizSubmitToolDef = mcp.NewTool("quiz_submit",
	mcp.WithDescription("Grade a quiz attempt and record the score (best score is kept)."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Capsule id")),
	mcp.WithArray("answers", mcp.Required(),
		mcp.Description("Chosen choice index per question; -1 for skipped"),
		mcp.Items(map[string]any{"type": "integer"})),
)
