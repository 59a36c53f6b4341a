// Package workers implements the C5 handlers: one per queue, each driving
// the load -> guard -> transition -> LLM call -> persist skeleton of §4.5
// for its entity type.
package workers

import "encoding/json"

type notePayload struct {
	NoteID int64 `json:"note_id"`
}

type taskPayload struct {
	TaskID int64 `json:"task_id"`
}

type activityPayload struct {
	ActivityID int64 `json:"activity_id"`
}

func decodeNotePayload(raw []byte) (int64, error) {
	var p notePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return 0, err
	}
	return p.NoteID, nil
}

func decodeTaskPayload(raw []byte) (int64, error) {
	var p taskPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return 0, err
	}
	return p.TaskID, nil
}

func decodeActivityPayload(raw []byte) (int64, error) {
	var p activityPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return 0, err
	}
	return p.ActivityID, nil
}
