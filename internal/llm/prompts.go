package llm

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PromptSet holds the three env-overridable operation-specific system
// prompts plus the note pipeline's task-extraction and moment-extraction
// prompts, which have no env override (the moment-extraction prompt is
// implementation-defined per spec §4.5 step 3).
type PromptSet struct {
	NoteEnrichment string `yaml:"note_enrichment"`
	TaskEnrichment string `yaml:"task_enrichment"`
	TaskExtraction string `yaml:"task_extraction"`
	ActivitySchema string `yaml:"activity_schema"`
	MomentExtraction string `yaml:"moment_extraction"`
}

// defaultPrompts is the bundled fallback, used whenever no ROBO_* env
// override and no bundle file override is present.
var defaultPrompts = PromptSet{
	NoteEnrichment:   "You clean up a raw note into a short title and a Markdown body that preserves its meaning. Never invent facts not present in the note.",
	TaskEnrichment:   "You clean up a raw task description into a short title and a Markdown body, optionally suggesting a priority and due date if the text implies one.",
	TaskExtraction:   "You read a note and extract zero or more actionable tasks implied by it. Resolve relative dates (\"tomorrow\", \"next Friday\") against the supplied current time. If nothing actionable is present, return an empty list.",
	ActivitySchema:   "You read a JSON Schema describing a loggable activity and propose a UI render hint: one of form, table, timeline, cards, with a layout and field groupings.",
	MomentExtraction: "You read a note alongside a set of activity schemas and identify any occurrences described in the note that match one of the schemas, producing validated moment data for each.",
}

// LoadPromptSet builds a PromptSet starting from a YAML bundle file (if
// path is non-empty and exists), then applies the three ROBO_*_PROMPT
// environment overrides on top, matching §6.4.
func LoadPromptSet(bundlePath string) (*PromptSet, error) {
	prompts := defaultPrompts

	if bundlePath != "" {
		data, err := os.ReadFile(bundlePath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("llm: read prompt bundle: %w", err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, &prompts); err != nil {
				return nil, fmt.Errorf("llm: parse prompt bundle: %w", err)
			}
		}
	}

	if v := os.Getenv("ROBO_NOTE_ENRICHMENT_PROMPT"); v != "" {
		prompts.NoteEnrichment = v
	}
	if v := os.Getenv("ROBO_TASK_ENRICHMENT_PROMPT"); v != "" {
		prompts.TaskEnrichment = v
	}
	if v := os.Getenv("ROBO_ACTIVITY_SCHEMA_PROMPT"); v != "" {
		prompts.ActivitySchema = v
	}

	return &prompts, nil
}

// For returns the system prompt for the given operation type.
func (p *PromptSet) For(opType string) string {
	switch opType {
	case "note_enrichment":
		return p.NoteEnrichment
	case "task_enrichment":
		return p.TaskEnrichment
	case "task_extraction":
		return p.TaskExtraction
	case "activity_schema":
		return p.ActivitySchema
	case "moment_extraction":
		return p.MomentExtraction
	default:
		return p.NoteEnrichment
	}
}
