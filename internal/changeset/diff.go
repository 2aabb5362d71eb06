package changeset

import (
	"sort"

	"github.com/noah-isme/sma-admin-console/internal/models"
)

// Diff lists every key whose draft value differs from the record value,
// sorted by key. Missing keys on either side compare as the empty string and
// file values compare by identity.
func Diff(draft, record models.Fields) []models.FieldChange {
	keys := make(map[string]struct{}, len(draft)+len(record))
	for k := range draft {
		keys[k] = struct{}{}
	}
	for k := range record {
		keys[k] = struct{}{}
	}

	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	changes := make([]models.FieldChange, 0)
	for _, key := range sorted {
		oldValue := record.Get(key)
		newValue := draft.Get(key)
		if newValue.Equal(oldValue) {
			continue
		}
		changes = append(changes, models.FieldChange{Key: key, OldValue: oldValue, NewValue: newValue})
	}
	return changes
}

// Display renders a value for review. File fields never show raw bytes or
// paths: a fresh upload is "New Photo" and an existing one "Current Photo".
func Display(value models.Value, fileField bool) string {
	if value.IsFile() {
		return models.NewFilePlaceholder
	}
	if fileField && value.Text != "" {
		return models.CurrentFilePlaceholder
	}
	return value.Text
}

// RenderChanges converts changes into their review form.
func RenderChanges(changes []models.FieldChange, fileFields []string) []models.FieldChangeView {
	files := toSet(fileFields)
	out := make([]models.FieldChangeView, 0, len(changes))
	for _, change := range changes {
		_, isFile := files[change.Key]
		out = append(out, models.FieldChangeView{
			Key:      change.Key,
			OldValue: Display(change.OldValue, isFile),
			NewValue: Display(change.NewValue, isFile),
		})
	}
	return out
}

// RenderFields converts a draft into its review form, sorted by key.
func RenderFields(fields models.Fields, fileFields []string) []models.FieldView {
	files := toSet(fileFields)
	out := make([]models.FieldView, 0, len(fields))
	for _, key := range fields.Keys() {
		value := fields[key]
		_, isFile := files[key]
		out = append(out, models.FieldView{
			Key:   key,
			Value: Display(value, isFile),
			File:  isFile || value.IsFile(),
		})
	}
	return out
}

func toSet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}
