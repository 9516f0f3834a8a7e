package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ontask/engine/pkg/models"
)

var (
	// A tag alone on its line would leave a blank line in plain-text
	// output once rendered; the surrounding whitespace is stripped first.
	soloTagLine = regexp.MustCompile(`(?m)^[ \t]*(\{%[^%]*%\})[ \t]*\r?\n`)

	variableTag = regexp.MustCompile(`\{\{\s*(.*?)\s*\}\}`)
	ifTag       = regexp.MustCompile(`\{%\s*if\s+(.+?)\s*%\}`)
	endifTag    = regexp.MustCompile(`\{%\s*endif\s*%\}`)

	columnListMacro = regexp.MustCompile(`\{%\s*ot_insert_column_list\s+("(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*')\s*%\}`)
	reportMacro     = regexp.MustCompile(`\{%\s*ot_insert_report\s*%\}`)
	rubricMacro     = regexp.MustCompile(`\{%\s*ot_insert_rubric_feedback\s*%\}`)

	leftoverTag = regexp.MustCompile(`\{%.*?%\}`)
)

// Translate rewrites an authored template into text/template source: variable
// and condition names are rewritten into safe identifiers and the domain
// macros become template function calls. When html is set, HTML entities in
// names are decoded before the rewrite; quoted macro arguments are never
// rewritten.
func Translate(source string, html bool) (string, error) {
	out := soloTagLine.ReplaceAllString(source, "$1")

	// The variable pass must run before the tag passes: their output is
	// `{{…}}` template actions it would otherwise re-match and mangle.
	out = variableTag.ReplaceAllStringFunc(out, func(match string) string {
		name := variableTag.FindStringSubmatch(match)[1]

		return "{{." + rewriteRef(name, html) + "}}"
	})

	out = columnListMacro.ReplaceAllStringFunc(out, func(match string) string {
		arg := columnListMacro.FindStringSubmatch(match)[1]

		return "{{ot_insert_column_list " + normalizeQuoted(arg) + "}}"
	})

	out = reportMacro.ReplaceAllString(out, "{{ot_insert_report}}")
	out = rubricMacro.ReplaceAllString(out, "{{ot_insert_rubric_feedback}}")

	out = ifTag.ReplaceAllStringFunc(out, func(match string) string {
		name := ifTag.FindStringSubmatch(match)[1]

		return "{{if ." + rewriteRef(name, html) + "}}"
	})

	out = endifTag.ReplaceAllString(out, "{{end}}")

	if tag := leftoverTag.FindString(out); tag != "" {
		return "", fmt.Errorf("%w: unknown tag %s", models.ErrTemplateSyntax, tag)
	}

	return out, nil
}

// rewriteRef rewrites one variable reference found inside a tag. The reserved
// engine names pass through untouched so templates can reach the injected
// values; CheckUserNames keeps them out of the user context.
func rewriteRef(name string, html bool) string {
	if html {
		name = htmlEntityDecoder.Replace(name)
	}

	if name == ActionIDContextName || name == VizIndexContextName {
		return name
	}

	return RewriteName(name)
}

// normalizeQuoted converts a single- or double-quoted macro argument into a
// double-quoted Go string literal, leaving its content untouched.
func normalizeQuoted(arg string) string {
	content := arg[1 : len(arg)-1]

	if strings.HasPrefix(arg, "'") {
		content = strings.ReplaceAll(content, `\'`, `'`)
	} else {
		content = strings.ReplaceAll(content, `\"`, `"`)
	}

	content = strings.ReplaceAll(content, `\\`, `\`)

	return strconv.Quote(content)
}
