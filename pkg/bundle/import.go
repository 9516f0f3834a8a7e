package bundle

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/ontask/engine/pkg/models"
	"github.com/ontask/engine/pkg/table"
)

// Import reads a bundle, applies the compatibility patches, validates the
// document against the bundle schema, and materializes a fresh workflow plus
// its data frame. The caller persists both and creates the data table.
func Import(ctx context.Context, in io.Reader) (*models.Workflow, *table.Frame, error) {
	zr, err := gzip.NewReader(in)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bundle is not gzip: %v", models.ErrImportSchema, err)
	}

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bundle is truncated: %v", models.ErrImportSchema, err)
	}

	var doc map[string]any

	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: bundle is not valid JSON: %v", models.ErrImportSchema, err)
	}

	if err := checkVersion(doc); err != nil {
		return nil, nil, err
	}

	applyPatches(doc)

	if err := validateDocument(doc); err != nil {
		return nil, nil, err
	}

	patched, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to re-encode patched bundle: %w", err)
	}

	var typed Document

	if err := json.Unmarshal(patched, &typed); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", models.ErrImportSchema, err)
	}

	return materialize(&typed)
}

func checkVersion(doc map[string]any) error {
	version, ok := doc["version"].(float64)
	if !ok {
		return fmt.Errorf("%w: missing version field", models.ErrImportSchema)
	}

	if int(version) < MinVersion || int(version) > CurrentVersion {
		return fmt.Errorf("%w: unsupported bundle version %d", models.ErrImportSchema, int(version))
	}

	return nil
}

// materialize converts the typed document into a workflow and cross-checks
// the data frame against the declared columns.
func materialize(doc *Document) (*models.Workflow, *table.Frame, error) {
	frame, err := decodeFrame(doc.DataFrame)
	if err != nil {
		return nil, nil, err
	}

	if err := frame.CheckAgainst(doc.Columns); err != nil {
		return nil, nil, err
	}

	if doc.NRows != frame.NRows() || doc.NCols != frame.NCols() {
		return nil, nil, fmt.Errorf("%w: declared shape %dx%d, frame is %dx%d",
			models.ErrImportSchema, doc.NRows, doc.NCols, frame.NRows(), frame.NCols())
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate workflow ID: %w", err)
	}

	now := time.Now().UTC()

	w := &models.Workflow{
		ID:          id.String(),
		Name:        doc.Name,
		Description: doc.Description,
		Attributes:  doc.Attributes,
		Columns:     doc.Columns,
		Actions:     doc.Actions,
		Views:       doc.Views,
		NRows:       frame.NRows(),
		NCols:       frame.NCols(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if w.Attributes == nil {
		w.Attributes = make(map[string]string)
	}

	for _, col := range w.Columns {
		if err := col.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%w: %v", models.ErrImportSchema, err)
		}
	}

	for _, a := range w.Actions {
		if !models.ValidActionType(a.Type) {
			return nil, nil, fmt.Errorf("%w: unknown action type %q", models.ErrImportSchema, a.Type)
		}

		if a.ID == "" {
			actionID, err := uuid.NewV7()
			if err != nil {
				return nil, nil, fmt.Errorf("failed to generate action ID: %w", err)
			}

			a.ID = actionID.String()
		}

		a.SortConditions()
	}

	return w, frame, nil
}
