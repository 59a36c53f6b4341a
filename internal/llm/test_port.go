package llm

import (
	"context"
	"strings"
	"time"

	"github.com/codevalley/robo-worker/pkg/types"
)

// TestPort is a deterministic, in-memory Port used by the test suite to
// exercise the pipeline end-to-end without network. Every capability
// returns a canned, schema-conformant response.
type TestPort struct {
	// HealthOK lets tests simulate an unhealthy provider.
	HealthOK bool
}

// NewTestPort returns a TestPort reporting healthy by default.
func NewTestPort() *TestPort {
	return &TestPort{HealthOK: true}
}

var _ Port = (*TestPort)(nil)

// ProcessText returns content = text upper-cased, metadata.title = the
// first 50 characters of text, tokens_used = 10.
func (p *TestPort) ProcessText(ctx context.Context, text string, tc TextContext) (*types.EnrichmentResult, error) {
	title := text
	if len(title) > 50 {
		title = title[:50]
	}
	return &types.EnrichmentResult{
		Title:      title,
		Content:    strings.ToUpper(text),
		TokensUsed: 10,
		ModelName:  "test-port",
		CreatedAt:  time.Now(),
		Metadata:   map[string]interface{}{"title": title},
	}, nil
}

// ExtractTasks always returns an empty list: the deterministic double
// makes no claim about what is "actionable" in free text, and an empty
// list is explicitly legal per §4.4.
func (p *TestPort) ExtractTasks(ctx context.Context, noteText string, now time.Time) ([]types.TaskCandidate, error) {
	return nil, nil
}

// AnalyzeActivitySchema returns a fixed form render regardless of input.
func (p *TestPort) AnalyzeActivitySchema(ctx context.Context, schema []byte) (*types.SchemaRender, error) {
	return &types.SchemaRender{
		RenderType:  "form",
		Layout:      map[string]interface{}{"columns": 1},
		FieldGroups: []map[string]interface{}{{"name": "default", "fields": []string{}}},
	}, nil
}

func (p *TestPort) HealthCheck(ctx context.Context) (*types.HealthStatus, error) {
	return &types.HealthStatus{
		OK:              p.HealthOK,
		ObservedLatency: time.Millisecond,
		ProviderInfo:    "test-port",
	}, nil
}
