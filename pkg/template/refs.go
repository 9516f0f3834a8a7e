package template

// RenameVariableRefs rewrites every {{ old }} expansion and {% if old %}
// guard in the authored template to use the new name. Text outside tags is
// left untouched.
func RenameVariableRefs(source, old, newName string) string {
	out := variableTag.ReplaceAllStringFunc(source, func(match string) string {
		name := variableTag.FindStringSubmatch(match)[1]
		if name != old {
			return match
		}

		return "{{ " + newName + " }}"
	})

	return ifTag.ReplaceAllStringFunc(out, func(match string) string {
		name := ifTag.FindStringSubmatch(match)[1]
		if name != old {
			return match
		}

		return "{% if " + newName + " %}"
	})
}

// ReferencesName reports whether the template mentions the name in any
// expansion or guard.
func ReferencesName(source, name string) bool {
	for _, match := range variableTag.FindAllStringSubmatch(source, -1) {
		if match[1] == name {
			return true
		}
	}

	for _, match := range ifTag.FindAllStringSubmatch(source, -1) {
		if match[1] == name {
			return true
		}
	}

	return false
}
