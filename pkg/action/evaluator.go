// Package action evaluates an authored action against its workflow's table:
// filter gate, per-row context assembly, condition evaluation, template
// rendering, and the cached all-false row set.
package action

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ontask/engine/pkg/formula"
	"github.com/ontask/engine/pkg/models"
	"github.com/ontask/engine/pkg/otelhelper"
	"github.com/ontask/engine/pkg/table"
	"github.com/ontask/engine/pkg/template"
)

// Evaluator renders an action's artifacts row by row.
type Evaluator struct {
	table  *table.Table
	logger *slog.Logger
	tracer trace.Tracer
}

// NewEvaluator creates an evaluator over the workflow's data table.
func NewEvaluator(t *table.Table, logger *slog.Logger) *Evaluator {
	return &Evaluator{table: t, logger: logger}
}

// WithTracer attaches a tracer; evaluation spans are emitted when set.
func (e *Evaluator) WithTracer(tracer trace.Tracer) *Evaluator {
	e.tracer = tracer

	return e
}

// Options tune one evaluation pass.
type Options struct {
	// ExcludeColumn and ExcludeValues skip rows whose key column value is
	// listed, for "send to everyone except" workflows.
	ExcludeColumn string
	ExcludeValues []string

	// DeliveryColumn names the column carrying each row's delivery key
	// (an email address or id) copied onto the result.
	DeliveryColumn string

	// Subject is an optional side-channel template rendered against the
	// same per-row context.
	Subject string
}

// Result is one rendered artifact.
type Result struct {
	// RowIndex is the 1-based position of the row under the filter.
	RowIndex int
	Body     string
	Subject  string
	Key      any
}

// Evaluate renders the action for every row surviving the filter and the
// exclusion list, in the table's natural order.
func (e *Evaluator) Evaluate(ctx context.Context, w *models.Workflow, a *models.Action, opts Options) ([]Result, error) {
	var span trace.Span

	if e.tracer != nil {
		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "action.evaluate",
			attribute.String(otelhelper.WorkflowIDKey, w.ID),
			attribute.String(otelhelper.ActionIDKey, a.ID),
			attribute.String(otelhelper.ActionTypeKey, string(a.Type)),
		)
		defer span.End()
	}

	var filterFormula *formula.Node
	if a.Filter != nil {
		filterFormula = a.Filter.Formula
	}

	rows, err := e.table.Load(ctx, filterFormula, w.Columns)
	if err != nil {
		if span != nil {
			otelhelper.SetError(span, err)
		}

		return nil, models.NewActionError("Evaluate", w.ID, a.Name, err)
	}

	excluded := make(map[string]bool, len(opts.ExcludeValues))
	for _, value := range opts.ExcludeValues {
		excluded[value] = true
	}

	macroState := newMacroState(e.table, w, a, filterFormula)
	results := make([]Result, 0, len(rows))

	for i, row := range rows {
		if opts.ExcludeColumn != "" && excluded[formatValue(row[opts.ExcludeColumn])] {
			continue
		}

		result, err := e.evaluateRow(ctx, w, a, row, i+1, macroState, opts)
		if err != nil {
			if span != nil {
				otelhelper.SetError(span, err, attribute.Int("row.index", i+1))
			}

			return nil, models.NewActionError("Evaluate", w.ID, a.Name, err)
		}

		results = append(results, *result)
	}

	return results, nil
}

func (e *Evaluator) evaluateRow(ctx context.Context, w *models.Workflow, a *models.Action, row table.Row, index int, macroState *macroState, opts Options) (*Result, error) {
	rowCtx, err := AssembleContext(w, a, row)
	if err != nil {
		return nil, err
	}

	renderOpts := template.Options{
		HTML:     a.Type.HasHTMLText(),
		ActionID: a.ID,
		VizIndex: index,
		Macros:   macroState.macrosFor(ctx, row),
	}

	body, err := template.Render(a.TextContent, rowCtx, renderOpts)
	if err != nil {
		return nil, err
	}

	result := &Result{RowIndex: index, Body: body}

	if opts.Subject != "" {
		subject, err := template.Render(opts.Subject, rowCtx, renderOpts)
		if err != nil {
			return nil, err
		}

		result.Subject = subject
	}

	if opts.DeliveryColumn != "" {
		result.Key = row[opts.DeliveryColumn]
	}

	return result, nil
}

// AssembleContext builds the render context for one row: workflow attributes,
// overlaid by condition truth values, overlaid by row values. The layering
// implements the name-resolution order of the engine; disjointness of
// condition names is enforced at condition-create time.
func AssembleContext(w *models.Workflow, a *models.Action, row table.Row) (map[string]any, error) {
	rowCtx := make(map[string]any, len(row)+len(a.Conditions)+len(w.Attributes))

	for key, value := range w.Attributes {
		rowCtx[key] = value
	}

	for _, cond := range a.Conditions {
		truth, err := formula.EvalTruth(cond.Formula, row)
		if err != nil {
			return nil, err
		}

		rowCtx[cond.Name] = truth
	}

	for name, value := range row {
		if value == nil {
			// Null values render as empty text, never as "<nil>".
			rowCtx[name] = ""

			continue
		}

		rowCtx[name] = value
	}

	return rowCtx, nil
}

// formatValue renders a stored value for joining into macro output and
// exclusion matching.
func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339)
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}

		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func joinValues(values []any) string {
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = formatValue(value)
	}

	return strings.Join(parts, ", ")
}
