// Package template renders per-row personalized artifacts. Authored
// templates use {{ name }} expansions, {% if name %} blocks and a fixed set
// of domain macros; authored names may contain arbitrary characters, so
// every name is rewritten into a safe identifier before the underlying
// text/template engine runs.
package template

import (
	"fmt"
	"strings"

	"github.com/ontask/engine/pkg/models"
)

// ReservedPrefix marks engine-owned identifiers. Names starting with it, or
// with a non-letter, are prefixed again so the rewrite stays bijective.
const ReservedPrefix = "OT_"

// Reserved context names injected by the engine on every render. They are
// forbidden as user-authored names.
const (
	ActionIDContextName = "OT_action_id"
	VizIndexContextName = "OT_viz_index"
)

// escapeCodes maps each supported non-identifier character to its
// two-character code. The map is bijective: the underscore itself is escaped
// so decoded sequences never collide with literal text.
var escapeCodes = map[rune]byte{
	'|': '0', '}': '1', '~': '2', '"': '3', ' ': '4', '-': '5', '_': '6',
	'!': 'a', '#': 'b', '$': 'c', '%': 'd', '&': 'e', '\'': 'f',
	'(': 'g', ')': 'h', '*': 'i', '+': 'j', ',': 'k', '.': 'l', '/': 'm',
	':': 'n', ';': 'o', '<': 'p', '=': 'q', '>': 'r', '?': 's', '@': 't',
	'[': 'u', '\\': 'v', ']': 'w', '^': 'x', '`': 'y', '{': 'z',
}

// htmlEntityDecoder undoes the HTML entities an HTML editor introduces into
// variable names before the rewrite is applied.
var htmlEntityDecoder = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
)

// RewriteName encodes an authored name into an identifier matching
// [A-Za-z][A-Za-z0-9_]*. The encoding is bijective: distinct authored names
// never produce the same identifier.
func RewriteName(name string) string {
	var out strings.Builder

	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out.WriteRune(r)
		default:
			code, ok := escapeCodes[r]
			if ok {
				out.WriteByte('_')
				out.WriteByte(code)
			} else {
				// Characters outside the fixed table get an unambiguous
				// hex form; '_' is always escaped, so '_7' cannot occur
				// in encoded literal text.
				fmt.Fprintf(&out, "_7%08x", r)
			}
		}
	}

	encoded := out.String()
	if needsPrefix(name) {
		return ReservedPrefix + encoded
	}

	return encoded
}

func needsPrefix(name string) bool {
	if name == "" {
		return true
	}

	if strings.HasPrefix(name, ReservedPrefix) {
		return true
	}

	first := rune(name[0])

	return !((first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z'))
}

// RewriteContext returns the evaluation context keyed by rewritten names.
// The rewrite must not shrink the key set: two distinct authored names
// colliding on the same identifier is a fatal name collision.
func RewriteContext(ctx map[string]any) (map[string]any, error) {
	rewritten := make(map[string]any, len(ctx))

	for name, value := range ctx {
		key := RewriteName(name)

		if _, exists := rewritten[key]; exists {
			return nil, fmt.Errorf("%w: names collide on identifier %q", models.ErrNameCollision, key)
		}

		rewritten[key] = value
	}

	if len(rewritten) != len(ctx) {
		return nil, fmt.Errorf("%w: rewritten context lost keys", models.ErrNameCollision)
	}

	return rewritten, nil
}

// CheckUserNames rejects context names reserved for the engine.
func CheckUserNames(ctx map[string]any) error {
	for name := range ctx {
		if name == ActionIDContextName || name == VizIndexContextName {
			return fmt.Errorf("%w: %q is reserved", models.ErrNameCollision, name)
		}
	}

	return nil
}
