package formula

import "sort"

// Variables returns the sorted set of column names referenced by the formula.
func Variables(n *Node) []string {
	seen := make(map[string]bool)
	collectVariables(n, seen)

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func collectVariables(n *Node, seen map[string]bool) {
	if n == nil {
		return
	}

	if n.IsComposite() {
		for _, rule := range n.Rules {
			collectVariables(rule, seen)
		}

		return
	}

	if n.Field != "" {
		seen[n.Field] = true
	}
}

// References reports whether the formula mentions the given column.
func References(n *Node, column string) bool {
	if n == nil {
		return false
	}

	if n.IsComposite() {
		for _, rule := range n.Rules {
			if References(rule, column) {
				return true
			}
		}

		return false
	}

	return n.Field == column
}

// RenameVariable rewrites every leaf referencing old to reference newName,
// in place. Literal values are left untouched. Renaming a variable the
// formula does not mention is a no-op, and renaming back restores the
// original tree.
func RenameVariable(n *Node, old, newName string) {
	if n == nil {
		return
	}

	if n.IsComposite() {
		for _, rule := range n.Rules {
			RenameVariable(rule, old, newName)
		}

		return
	}

	if n.Field == old {
		n.Field = newName
	}

	if n.ID == old {
		n.ID = newName
	}
}
