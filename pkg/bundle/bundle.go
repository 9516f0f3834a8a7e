// Package bundle serializes a workflow subset (columns, actions, rubric,
// views, data) as a versioned, gzip-compressed JSON document, and imports
// such documents back, patching legacy layouts on the way in.
package bundle

import (
	"github.com/ontask/engine/pkg/models"
)

const (
	// CurrentVersion is the format written by Export.
	CurrentVersion = 5

	// MinVersion is the oldest format Import still accepts, with the
	// compatibility patches applied.
	MinVersion = 3
)

// Document is the top-level payload of a workflow bundle.
type Document struct {
	Version     int               `json:"version"`
	Name        string            `json:"name"`
	Description string            `json:"description_text"`
	Attributes  map[string]string `json:"attributes"`
	NRows       int               `json:"nrows"`
	NCols       int               `json:"ncols"`
	Columns     []*models.Column  `json:"columns"`

	// DataFrame is the base64 encoding of the gzip-compressed JSON
	// materialization of the table, row-major in column order.
	DataFrame string `json:"data_frame"`

	Actions []*models.Action `json:"actions"`
	Views   []*models.View   `json:"views"`
}
