package template

import (
	"fmt"
	"strings"
	texttemplate "text/template"

	"github.com/ontask/engine/pkg/models"
)

// Macros supplies the per-row implementations of the domain macros. A macro
// referenced by the template but left nil renders as an error.
type Macros struct {
	// ColumnList joins the named column's filtered values.
	ColumnList func(column string) (string, error)

	// Report renders the tabular report block of report actions.
	Report func() (string, error)

	// RubricFeedback renders the criteria and feedback rows for this row.
	RubricFeedback func() (string, error)
}

// Options configures one render pass.
type Options struct {
	// HTML marks templates authored in an HTML editor; variable names may
	// carry HTML entities that are decoded before the rewrite.
	HTML bool

	// ActionID is injected under the reserved action-identity name.
	ActionID string

	// VizIndex is injected under the reserved visualization counter name.
	VizIndex int

	Macros *Macros
}

// Render expands the authored template against the context, rewriting names
// on both sides of the boundary. Unknown names surface as missing-resource
// errors; a template that cannot be parsed after rewrite is a syntax error.
func Render(source string, ctx map[string]any, opts Options) (string, error) {
	if err := CheckUserNames(ctx); err != nil {
		return "", err
	}

	translated, err := Translate(source, opts.HTML)
	if err != nil {
		return "", err
	}

	data, err := RewriteContext(ctx)
	if err != nil {
		return "", err
	}

	data[ActionIDContextName] = opts.ActionID
	data[VizIndexContextName] = opts.VizIndex

	tmpl, err := texttemplate.
		New("action").
		Option("missingkey=error").
		Funcs(macroFuncs(opts.Macros)).
		Parse(translated)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrTemplateSyntax, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		if strings.Contains(err.Error(), "map has no entry for key") {
			return "", fmt.Errorf("%w: %v", models.ErrMissingResource, err)
		}

		return "", fmt.Errorf("failed to render template: %w", err)
	}

	return buf.String(), nil
}

func macroFuncs(macros *Macros) texttemplate.FuncMap {
	return texttemplate.FuncMap{
		"ot_insert_column_list": func(column string) (string, error) {
			if macros == nil || macros.ColumnList == nil {
				return "", fmt.Errorf("%w: column list macro not available", models.ErrMissingResource)
			}

			return macros.ColumnList(column)
		},
		"ot_insert_report": func() (string, error) {
			if macros == nil || macros.Report == nil {
				return "", fmt.Errorf("%w: report macro not available", models.ErrMissingResource)
			}

			return macros.Report()
		},
		"ot_insert_rubric_feedback": func() (string, error) {
			if macros == nil || macros.RubricFeedback == nil {
				return "", fmt.Errorf("%w: rubric macro not available", models.ErrMissingResource)
			}

			return macros.RubricFeedback()
		},
	}
}
