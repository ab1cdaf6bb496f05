package config

// MergeSettings layers project settings.json over user settings.json (or
// either over the CommonDenyPatterns/CommonAllowPatterns-seeded default):
// permission rule lists accumulate from both, everything else has overlay
// win when set.
func MergeSettings(base, overlay *Settings) *Settings {
	if base == nil {
		return overlay
	}
	if overlay == nil {
		return base
	}

	result := NewSettings()
	result.Permissions = mergePermissionSettings(base.Permissions, overlay.Permissions)
	if overlay.Model != "" {
		result.Model = overlay.Model
	} else {
		result.Model = base.Model
	}
	result.Hooks = mergeMaps(base.Hooks, overlay.Hooks)
	result.Env = mergeStringMaps(base.Env, overlay.Env)
	result.EnabledPlugins = mergeBoolMaps(base.EnabledPlugins, overlay.EnabledPlugins)
	result.DisabledTools = mergeBoolMaps(base.DisabledTools, overlay.DisabledTools)
	return result
}

func mergePermissionSettings(base, overlay PermissionSettings) PermissionSettings {
	return PermissionSettings{
		Allow: mergeStringSlices(base.Allow, overlay.Allow),
		Deny:  mergeStringSlices(base.Deny, overlay.Deny),
		Ask:   mergeStringSlices(base.Ask, overlay.Ask),
	}
}

// mergeStringSlices merges two string slices, removing duplicates.
func mergeStringSlices(base, overlay []string) []string {
	seen := make(map[string]bool)
	var result []string

	for _, s := range base {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range overlay {
		if !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	return result
}

// mergeMaps merges two map[string][]Hook.
// Overlay values are added to or replace base values.
func mergeMaps(base, overlay map[string][]Hook) map[string][]Hook {
	result := make(map[string][]Hook)

	// Copy base
	for k, v := range base {
		result[k] = append([]Hook{}, v...)
	}

	// Overlay
	for k, v := range overlay {
		result[k] = append([]Hook{}, v...)
	}

	return result
}

// mergeStringMaps merges two map[string]string.
func mergeStringMaps(base, overlay map[string]string) map[string]string {
	result := make(map[string]string)

	// Copy base
	for k, v := range base {
		result[k] = v
	}

	// Overlay
	for k, v := range overlay {
		result[k] = v
	}

	return result
}

// mergeBoolMaps merges two map[string]bool.
func mergeBoolMaps(base, overlay map[string]bool) map[string]bool {
	result := make(map[string]bool)

	// Copy base
	for k, v := range base {
		result[k] = v
	}

	// Overlay
	for k, v := range overlay {
		result[k] = v
	}

	return result
}
