package models

type InputEventType string

const (
	InputCreated  InputEventType = "created"
	InputModified InputEventType = "modified"
	InputRemoved  InputEventType = "removed"
	InputRenamed  InputEventType = "renamed"
)

// InputChangeEvent describes a change to an image in a watched input
// directory.
type InputChangeEvent struct {
	EventType InputEventType `json:"eventType"`
	FilePath  string         `json:"filePath"`
}
