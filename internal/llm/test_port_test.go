package llm_test

import (
	"context"
	"testing"
	"time"

	"github.com/codevalley/robo-worker/internal/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestPort_ProcessText_UppercasesAndTitles(t *testing.T) {
	port := llm.NewTestPort()

	text := "buy milk and walk the dog this afternoon, it is important"
	result, err := port.ProcessText(context.Background(), text, llm.TextContext{Type: "note_enrichment"})
	require.NoError(t, err)

	assert.Equal(t, "BUY MILK AND WALK THE DOG THIS AFTERNOON, IT IS IMPORTANT", result.Content)
	assert.LessOrEqual(t, len(result.Title), 50)
	assert.Equal(t, 10, result.TokensUsed)
}

func TestTestPort_ProcessText_TitleTruncatedAt50Chars(t *testing.T) {
	port := llm.NewTestPort()
	text := ""
	for i := 0; i < 80; i++ {
		text += "x"
	}

	result, err := port.ProcessText(context.Background(), text, llm.TextContext{Type: "note_enrichment"})
	require.NoError(t, err)
	assert.Len(t, result.Title, 50)
}

func TestTestPort_ExtractTasks_EmptyIsLegal(t *testing.T) {
	port := llm.NewTestPort()
	tasks, err := port.ExtractTasks(context.Background(), "no actionable content here", time.Now())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTestPort_AnalyzeActivitySchema_ReturnsConformantRender(t *testing.T) {
	port := llm.NewTestPort()
	render, err := port.AnalyzeActivitySchema(context.Background(), []byte(`{"type":"object"}`))
	require.NoError(t, err)
	assert.Contains(t, []string{"form", "table", "timeline", "cards"}, render.RenderType)
}

func TestTestPort_HealthCheck_ReportsConfiguredState(t *testing.T) {
	port := &llm.TestPort{HealthOK: false}
	status, err := port.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.False(t, status.OK)
}
