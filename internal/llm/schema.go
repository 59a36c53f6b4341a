package llm

// toolSchema is the function/tool-invocation schema the production port
// forces the provider to call exactly once per operation.
type toolSchema struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
	Required    []string
}

var processTextSchema = toolSchema{
	Name:        "submit_enrichment",
	Description: "Submit the enriched title and Markdown body for the supplied text.",
	Parameters: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"title":                 map[string]interface{}{"type": "string", "maxLength": 50},
			"content":               map[string]interface{}{"type": "string"},
			"suggested_priority":    map[string]interface{}{"type": "string", "enum": []string{"LOW", "MEDIUM", "HIGH", "URGENT"}},
			"suggested_due_date":    map[string]interface{}{"type": "string", "format": "date"},
		},
		"required": []string{"title", "content"},
	},
	Required: []string{"title", "content"},
}

var extractTasksSchema = toolSchema{
	Name:        "submit_tasks",
	Description: "Submit zero or more task candidates extracted from a note.",
	Parameters: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"tasks": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"content":  map[string]interface{}{"type": "string"},
						"due_date": map[string]interface{}{"type": "string", "format": "date"},
						"priority": map[string]interface{}{"type": "string", "enum": []string{"LOW", "MEDIUM", "HIGH", "URGENT"}},
						"status":   map[string]interface{}{"type": "string", "enum": []string{"TODO", "IN_PROGRESS", "DONE"}},
					},
					"required": []string{"content", "priority", "status"},
				},
			},
		},
		"required": []string{"tasks"},
	},
	Required: []string{"tasks"},
}

var momentExtractionSchema = toolSchema{
	Name:        "submit_moments",
	Description: "Submit zero or more moment candidates matched from a note against the user's activity schemas.",
	Parameters: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"moments": map[string]interface{}{
				"type": "array",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"activity_name": map[string]interface{}{"type": "string"},
						"data":          map[string]interface{}{"type": "object"},
						"timestamp":     map[string]interface{}{"type": "string", "format": "date-time"},
					},
					"required": []string{"activity_name", "data"},
				},
			},
		},
		"required": []string{"moments"},
	},
	Required: []string{"moments"},
}

var analyzeActivitySchemaSchema = toolSchema{
	Name:        "submit_schema_render",
	Description: "Submit a UI render hint for an activity's JSON Schema.",
	Parameters: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"render_type":  map[string]interface{}{"type": "string", "enum": []string{"form", "table", "timeline", "cards"}},
			"layout":       map[string]interface{}{"type": "object"},
			"field_groups": map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "object"}},
		},
		"required": []string{"render_type", "layout", "field_groups"},
	},
	Required: []string{"render_type", "layout", "field_groups"},
}
