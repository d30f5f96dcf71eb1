package models

import (
	"github.com/google/uuid"
)

type BuildRequest struct {
	BuildRequestId uuid.UUID `json:"buildRequestId"`

	// Directory holding the source photographs
	InputDir string `json:"inputDir"`

	// Directory the gallery is written to. Created when missing.
	OutputDir string `json:"outputDir"`

	// Gallery title. Optional, the configured default title is used
	// when empty.
	Title string `json:"title,omitempty"`
}
