package types

import "time"

// EnrichmentResult is the structured output of process_text, persisted
// into a Note's or Task's enrichment_data column.
type EnrichmentResult struct {
	Title     string                 `json:"title"`
	Content   string                 `json:"content"`
	TokensUsed int                   `json:"tokens_used"`
	ModelName string                 `json:"model_name"`
	CreatedAt time.Time              `json:"created_at"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// SchemaRender is the structured output of analyze_activity_schema,
// persisted into an Activity's schema_render column.
type SchemaRender struct {
	RenderType  string                   `json:"render_type"`
	Layout      map[string]interface{}   `json:"layout"`
	FieldGroups []map[string]interface{} `json:"field_groups"`
}

// HealthStatus is the result of an LLM port health_check call.
type HealthStatus struct {
	OK               bool          `json:"ok"`
	ObservedLatency  time.Duration `json:"observed_latency"`
	ProviderInfo     string        `json:"provider_info"`
}
