package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/codevalley/robo-worker/internal/ratelimit"
	"github.com/codevalley/robo-worker/pkg/types"
)

// AnthropicConfig holds configuration for the production Port.
type AnthropicConfig struct {
	APIKey  string
	Model   string        // default: claude-haiku-4-5-20251001
	Timeout time.Duration // default: 60s
	// BaseURL overrides the Anthropic API base for testing. Defaults to
	// the production endpoint.
	BaseURL string
}

// AnthropicPort implements Port against the Anthropic Messages API, using
// its tool-invocation ("function-call") style to force a single structured
// call per operation.
type AnthropicPort struct {
	cfg            AnthropicConfig
	client         *http.Client
	circuitBreaker *CircuitBreaker
	limiter        *ratelimit.Limiter
	prompts        *PromptSet
}

// NewAnthropicPort builds a production Port. limiter guards every call's
// token/request budget; prompts supplies the three operation-specific
// system messages.
func NewAnthropicPort(cfg AnthropicConfig, limiter *ratelimit.Limiter, prompts *PromptSet) *AnthropicPort {
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.anthropic.com"
	}
	return &AnthropicPort{
		cfg:            cfg,
		client:         &http.Client{Timeout: cfg.Timeout},
		circuitBreaker: NewCircuitBreaker(),
		limiter:        limiter,
		prompts:        prompts,
	}
}

var _ Port = (*AnthropicPort)(nil)

// estimateTokens implements the char_count/4 + overhead estimator of §4.4.
func estimateTokens(text string) int {
	const overhead = 64
	return int(math.Ceil(float64(len(text))/4.0)) + overhead
}

type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type anthropicToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type anthropicMessagesRequest struct {
	Model      string                `json:"model"`
	System     string                `json:"system,omitempty"`
	MaxTokens  int                   `json:"max_tokens"`
	Messages   []anthropicMessage    `json:"messages"`
	Tools      []anthropicTool       `json:"tools"`
	ToolChoice anthropicToolChoice   `json:"tool_choice"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicContentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type anthropicMessagesResponse struct {
	Content []anthropicContentBlock `json:"content"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// callTool issues one tool-forced completion and returns the decoded
// tool-call arguments plus the actual token count reported by the provider
// (0 if unreported, in which case the estimate is what gets recorded with
// the limiter).
func (p *AnthropicPort) callTool(ctx context.Context, system, user string, schema toolSchema, estimated int) (map[string]interface{}, int, error) {
	if err := p.limiter.WaitForCapacity(ctx, estimated); err != nil {
		return nil, 0, NewError(KindTimeout, err)
	}

	var args map[string]interface{}
	actualTokens := 0

	err := p.limiter.WithRetry(ctx, ClassifyForRetry, func() error {
		result, execErr := p.circuitBreaker.Execute(ctx, func() (interface{}, error) {
			return p.invoke(ctx, system, user, schema)
		})
		if execErr != nil {
			classified := classifyHTTPError(execErr)
			return classified
		}
		resp := result.(*anthropicMessagesResponse)
		actualTokens = resp.Usage.InputTokens + resp.Usage.OutputTokens

		for _, block := range resp.Content {
			if block.Type != "tool_use" || block.Name != schema.Name {
				continue
			}
			var decoded map[string]interface{}
			if jsonErr := json.Unmarshal(block.Input, &decoded); jsonErr != nil {
				return NewError(KindValidation, fmt.Errorf("decode tool arguments: %w", jsonErr))
			}
			for _, req := range schema.Required {
				if _, ok := decoded[req]; !ok {
					return NewError(KindValidation, fmt.Errorf("tool response missing required field %q", req))
				}
			}
			args = decoded
			return nil
		}
		return NewError(KindValidation, fmt.Errorf("provider did not return a %s tool call", schema.Name))
	})

	recorded := actualTokens
	if recorded == 0 {
		recorded = estimated
	}
	p.limiter.RecordUsage(recorded, time.Now())

	if err != nil {
		return nil, 0, err
	}
	return args, actualTokens, nil
}

func (p *AnthropicPort) invoke(ctx context.Context, system, user string, schema toolSchema) (*anthropicMessagesResponse, error) {
	reqBody := anthropicMessagesRequest{
		Model:     p.cfg.Model,
		System:    system,
		MaxTokens: 4096,
		Messages:  []anthropicMessage{{Role: "user", Content: user}},
		Tools: []anthropicTool{{
			Name:        schema.Name,
			Description: schema.Description,
			InputSchema: schema.Parameters,
		}},
		ToolChoice: anthropicToolChoice{Type: "tool", Name: schema.Name},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.cfg.BaseURL+"/v1/messages", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("x-api-key", p.cfg.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &httpStatusError{status: resp.StatusCode, body: string(body)}
	}

	var respData anthropicMessagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &respData, nil
}

// httpStatusError carries the HTTP status so classifyHTTPError can map it
// to the §7 error taxonomy.
type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("anthropic returned status %d: %s", e.status, e.body)
}

func classifyHTTPError(err error) error {
	var statusErr *httpStatusError
	if ok := asHTTPStatusError(err, &statusErr); ok {
		switch {
		case statusErr.status == http.StatusTooManyRequests:
			return NewError(KindRateLimited, statusErr)
		case statusErr.status >= 500:
			return NewError(KindTransient, statusErr)
		case statusErr.status >= 400:
			return NewError(KindPermanent, statusErr)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, err)
	}
	return NewError(KindTransient, err)
}

func asHTTPStatusError(err error, target **httpStatusError) bool {
	if e, ok := err.(*httpStatusError); ok {
		*target = e
		return true
	}
	return false
}

func (p *AnthropicPort) ProcessText(ctx context.Context, text string, tc TextContext) (*types.EnrichmentResult, error) {
	system := p.prompts.For(tc.Type)
	estimated := estimateTokens(system + text)

	if tc.Type == "moment_extraction" {
		return p.processMomentExtraction(ctx, system, text, estimated)
	}

	args, actual, err := p.callTool(ctx, system, text, processTextSchema, estimated)
	if err != nil {
		return nil, err
	}

	title, _ := args["title"].(string)
	content, _ := args["content"].(string)
	metadata := map[string]interface{}{}
	if v, ok := args["suggested_priority"]; ok {
		metadata["suggested_priority"] = v
	}
	if v, ok := args["suggested_due_date"]; ok {
		metadata["suggested_due_date"] = v
	}
	metadata["title"] = title

	tokensUsed := actual
	if tokensUsed == 0 {
		tokensUsed = estimated
	}

	return &types.EnrichmentResult{
		Title:      title,
		Content:    content,
		TokensUsed: tokensUsed,
		ModelName:  p.cfg.Model,
		CreatedAt:  time.Now(),
		Metadata:   metadata,
	}, nil
}

// processMomentExtraction handles §4.5 stage 3's distinct shape: the tool
// returns a "moments" array rather than a title/content pair, which the
// caller (NoteWorker.extractMoments) expects as a JSON array of
// types.MomentCandidate in Content.
func (p *AnthropicPort) processMomentExtraction(ctx context.Context, system, text string, estimated int) (*types.EnrichmentResult, error) {
	args, actual, err := p.callTool(ctx, system, text, momentExtractionSchema, estimated)
	if err != nil {
		return nil, err
	}

	raw, _ := args["moments"].([]interface{})
	candidates := make([]types.MomentCandidate, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		c := types.MomentCandidate{}
		if v, ok := m["activity_name"].(string); ok {
			c.ActivityName = v
		}
		if v, ok := m["data"].(map[string]interface{}); ok {
			c.Data = v
		}
		if v, ok := m["timestamp"].(string); ok && v != "" {
			if t, perr := time.Parse(time.RFC3339, v); perr == nil {
				c.Timestamp = &t
			}
		}
		candidates = append(candidates, c)
	}

	contentJSON, _ := json.Marshal(candidates)

	tokensUsed := actual
	if tokensUsed == 0 {
		tokensUsed = estimated
	}

	return &types.EnrichmentResult{
		Content:    string(contentJSON),
		TokensUsed: tokensUsed,
		ModelName:  p.cfg.Model,
		CreatedAt:  time.Now(),
	}, nil
}

func (p *AnthropicPort) ExtractTasks(ctx context.Context, noteText string, now time.Time) ([]types.TaskCandidate, error) {
	system := p.prompts.For("task_extraction")
	user := fmt.Sprintf("now=%s\n\n%s", now.Format(time.RFC3339), noteText)
	estimated := estimateTokens(system + user)

	args, _, err := p.callTool(ctx, system, user, extractTasksSchema, estimated)
	if err != nil {
		return nil, err
	}

	rawTasks, _ := args["tasks"].([]interface{})
	candidates := make([]types.TaskCandidate, 0, len(rawTasks))
	for _, raw := range rawTasks {
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		c := types.TaskCandidate{}
		if v, ok := m["content"].(string); ok {
			c.Content = v
		}
		if v, ok := m["priority"].(string); ok {
			c.Priority = types.Priority(v)
		}
		if v, ok := m["status"].(string); ok {
			c.Status = types.TaskStatus(v)
		}
		if v, ok := m["due_date"].(string); ok && v != "" {
			if t, perr := time.Parse("2006-01-02", v); perr == nil {
				c.DueDate = &t
			}
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (p *AnthropicPort) AnalyzeActivitySchema(ctx context.Context, schema []byte) (*types.SchemaRender, error) {
	system := p.prompts.For("activity_schema")
	user := string(schema)
	estimated := estimateTokens(system + user)

	args, _, err := p.callTool(ctx, system, user, analyzeActivitySchemaSchema, estimated)
	if err != nil {
		return nil, err
	}

	render := &types.SchemaRender{}
	if v, ok := args["render_type"].(string); ok {
		render.RenderType = v
	}
	if v, ok := args["layout"].(map[string]interface{}); ok {
		render.Layout = v
	}
	if raw, ok := args["field_groups"].([]interface{}); ok {
		for _, item := range raw {
			if m, ok := item.(map[string]interface{}); ok {
				render.FieldGroups = append(render.FieldGroups, m)
			}
		}
	}
	return render, nil
}

func (p *AnthropicPort) HealthCheck(ctx context.Context) (*types.HealthStatus, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	err := p.circuitBreaker.HealthCheck(ctx, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, "GET", p.cfg.BaseURL, nil)
		if reqErr != nil {
			return reqErr
		}
		resp, doErr := p.client.Do(req)
		if doErr != nil {
			return doErr
		}
		defer resp.Body.Close()
		return nil
	})

	return &types.HealthStatus{
		OK:              err == nil,
		ObservedLatency: time.Since(start),
		ProviderInfo:    fmt.Sprintf("anthropic:%s", p.cfg.Model),
	}, nil
}
