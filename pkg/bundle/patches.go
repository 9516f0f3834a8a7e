package bundle

// applyPatches upgrades legacy bundle layouts in place. Patches are applied
// in a fixed order; each is a no-op on documents that don't need it.
func applyPatches(doc map[string]any) {
	actions, _ := doc["actions"].([]any)

	for _, entry := range actions {
		a, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		patchTargetURL(a)
		patchFilterFromConditions(a)
		patchFilterList(a)
		patchContentField(a)
		patchActionType(a)
	}
}

// patchTargetURL maps a null target_url to the empty string.
func patchTargetURL(a map[string]any) {
	if url, present := a["target_url"]; present && url == nil {
		a["target_url"] = ""
	}
}

// patchFilterFromConditions promotes a filter-flagged entry out of the
// conditions array into the dedicated filter field.
func patchFilterFromConditions(a map[string]any) {
	conditions, ok := a["conditions"].([]any)
	if !ok {
		return
	}

	kept := make([]any, 0, len(conditions))

	for _, entry := range conditions {
		cond, ok := entry.(map[string]any)
		if !ok {
			kept = append(kept, entry)

			continue
		}

		isFilter, _ := cond["is_filter"].(bool)
		if isFilter && a["filter"] == nil {
			a["filter"] = map[string]any{
				"formula":        cond["formula"],
				"selected_count": cond["selected_count"],
			}

			continue
		}

		kept = append(kept, entry)
	}

	a["conditions"] = kept
}

// patchFilterList unwraps a single-element list where a scalar filter is
// expected.
func patchFilterList(a map[string]any) {
	list, ok := a["filter"].([]any)
	if !ok {
		return
	}

	if len(list) == 1 {
		a["filter"] = list[0]
	} else if len(list) == 0 {
		delete(a, "filter")
	}
}

// patchContentField renames the legacy content field to text_content.
func patchContentField(a map[string]any) {
	if content, present := a["content"]; present {
		if _, already := a["text_content"]; !already {
			a["text_content"] = content
		}

		delete(a, "content")
	}
}

// patchActionType derives action_type from the legacy is_out boolean when
// absent: outgoing actions were personalized text, the rest surveys.
func patchActionType(a map[string]any) {
	if _, present := a["action_type"]; present {
		return
	}

	if isOut, _ := a["is_out"].(bool); isOut {
		a["action_type"] = "personalized_text"
	} else {
		a["action_type"] = "survey"
	}

	delete(a, "is_out")
}
