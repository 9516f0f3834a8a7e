package bundle

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ontask/engine/pkg/models"
	"github.com/ontask/engine/pkg/table"
)

// Export writes the workflow and its table as a gzip-compressed JSON bundle.
func Export(ctx context.Context, w *models.Workflow, t *table.Table, out io.Writer) error {
	frame, err := t.Snapshot(ctx, nil, w.Columns)
	if err != nil {
		return models.NewWorkflowError("Export", w.ID, err)
	}

	encoded, err := encodeFrame(frame)
	if err != nil {
		return models.NewWorkflowError("Export", w.ID, err)
	}

	doc := &Document{
		Version:     CurrentVersion,
		Name:        w.Name,
		Description: w.Description,
		Attributes:  exportAttributes(w.Attributes),
		NRows:       frame.NRows(),
		NCols:       frame.NCols(),
		Columns:     w.Columns,
		DataFrame:   encoded,
		Actions:     exportActions(w.Actions),
		Views:       exportViews(w.Views),
	}

	zw := gzip.NewWriter(out)

	err = json.NewEncoder(zw).Encode(doc)
	if err != nil {
		return models.NewWorkflowError("Export", w.ID, fmt.Errorf("failed to encode bundle: %w", err))
	}

	err = zw.Close()
	if err != nil {
		return models.NewWorkflowError("Export", w.ID, fmt.Errorf("failed to compress bundle: %w", err))
	}

	return nil
}

// ExportView writes a bundle restricted to the view's column subset, with the
// view formula applied as the data filter. Actions are not carried over since
// they may reference columns outside the subset.
func ExportView(ctx context.Context, w *models.Workflow, v *models.View, t *table.Table, out io.Writer) error {
	columns := make([]*models.Column, 0, len(v.Columns))

	for _, col := range w.Columns {
		if v.HasColumn(col.Name) {
			subset := *col
			subset.Position = len(columns) + 1
			columns = append(columns, &subset)
		}
	}

	frame, err := t.Snapshot(ctx, v.Formula, columns)
	if err != nil {
		return models.NewWorkflowError("ExportView", w.ID, err)
	}

	encoded, err := encodeFrame(frame)
	if err != nil {
		return models.NewWorkflowError("ExportView", w.ID, err)
	}

	doc := &Document{
		Version:     CurrentVersion,
		Name:        w.Name,
		Description: v.Description,
		Attributes:  exportAttributes(w.Attributes),
		NRows:       frame.NRows(),
		NCols:       frame.NCols(),
		Columns:     columns,
		DataFrame:   encoded,
		Actions:     []*models.Action{},
		Views:       []*models.View{},
	}

	zw := gzip.NewWriter(out)

	err = json.NewEncoder(zw).Encode(doc)
	if err != nil {
		return models.NewWorkflowError("ExportView", w.ID, fmt.Errorf("failed to encode bundle: %w", err))
	}

	err = zw.Close()
	if err != nil {
		return models.NewWorkflowError("ExportView", w.ID, fmt.Errorf("failed to compress bundle: %w", err))
	}

	return nil
}

// exportActions copies the actions with nil slices replaced by empty ones:
// the bundle schema requires arrays where encoding/json would emit null. The
// caller's actions are left untouched.
func exportActions(actions []*models.Action) []*models.Action {
	out := make([]*models.Action, 0, len(actions))

	for _, a := range actions {
		dup := *a

		if dup.Conditions == nil {
			dup.Conditions = []*models.Condition{}
		}

		if dup.Triples == nil {
			dup.Triples = []*models.ColumnCondition{}
		}

		out = append(out, &dup)
	}

	return out
}

func exportViews(views []*models.View) []*models.View {
	out := make([]*models.View, 0, len(views))

	for _, v := range views {
		dup := *v

		if dup.Columns == nil {
			dup.Columns = []string{}
		}

		out = append(out, &dup)
	}

	return out
}

func exportAttributes(attributes map[string]string) map[string]string {
	if attributes == nil {
		return map[string]string{}
	}

	return attributes
}

// encodeFrame serializes the materialized table as base64 over gzip over
// JSON, the portable equivalent of the historical pickled frame.
func encodeFrame(frame *table.Frame) (string, error) {
	var buf bytes.Buffer

	zw := gzip.NewWriter(&buf)

	if err := json.NewEncoder(zw).Encode(frame); err != nil {
		return "", fmt.Errorf("failed to encode data frame: %w", err)
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to compress data frame: %w", err)
	}

	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func decodeFrame(encoded string) (*table.Frame, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: data frame is not base64: %v", models.ErrImportSchema, err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: data frame is not gzip: %v", models.ErrImportSchema, err)
	}

	var frame table.Frame

	if err := json.NewDecoder(zr).Decode(&frame); err != nil {
		return nil, fmt.Errorf("%w: data frame is not valid JSON: %v", models.ErrImportSchema, err)
	}

	if err := zr.Close(); err != nil {
		return nil, fmt.Errorf("%w: data frame is truncated: %v", models.ErrImportSchema, err)
	}

	return &frame, nil
}
