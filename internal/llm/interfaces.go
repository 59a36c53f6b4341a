package llm

import (
	"context"
	"time"

	"github.com/codevalley/robo-worker/pkg/types"
)

// TextContext describes what kind of process_text call this is, selecting
// which operation-specific system prompt and function schema to use.
type TextContext struct {
	Type string // "note_enrichment", "task_enrichment", or "moment_extraction"
}

// Port is the provider-agnostic capability set every worker calls through.
// It has exactly four operations, deliberately — no inheritance chain, no
// optional methods.
type Port interface {
	ProcessText(ctx context.Context, text string, tc TextContext) (*types.EnrichmentResult, error)
	ExtractTasks(ctx context.Context, noteText string, now time.Time) ([]types.TaskCandidate, error)
	AnalyzeActivitySchema(ctx context.Context, schema []byte) (*types.SchemaRender, error)
	HealthCheck(ctx context.Context) (*types.HealthStatus, error)
}
