// Package mapper turns loosely labeled bitable records into TAPD ticket
// payloads: type classification, field-name mapping, value vocabulary
// normalization and image extraction.
package mapper

import (
	"encoding/json"
	"fmt"
	"strings"

	"tapdbridge.app/bridge/core/config"
	"tapdbridge.app/bridge/internal/image"
	"tapdbridge.app/bridge/internal/ticket"
)

// Canonical TAPD field names accepted verbatim when a source label has no
// table entry. Differs per ticket type.
var storyCanonicalKeys = map[string]bool{
	"name":             true,
	"description":      true,
	"owner":            true,
	"priority":         true,
	"priority_label":   true,
	"iteration_id":     true,
	"workitem_type_id": true,
	"module":           true,
	"version":          true,
	"label":            true,
	"begin":            true,
	"due":              true,
}

var bugCanonicalKeys = map[string]bool{
	"title":          true,
	"description":    true,
	"current_owner":  true,
	"priority":       true,
	"priority_label": true,
	"severity":       true,
	"iteration_id":   true,
	"module":         true,
	"version_report": true,
	"label":          true,
	"begin":          true,
	"due":            true,
}

// storyCategoryLabels are the source labels that carry a workitem category
// for stories. They resolve a workitem_type_id and double as a freeform
// label.
var storyCategoryLabels = map[string]bool{
	"标签类型": true,
	"需求类别": true,
}

// FieldMapper maps record labels and values into the TAPD vocabulary.
type FieldMapper struct {
	mapping config.MappingConfig
}

func NewFieldMapper(mapping config.MappingConfig) *FieldMapper {
	return &FieldMapper{mapping: mapping}
}

// MapStoryFields maps a record into story fields plus any image URLs found
// in image-carrier fields.
func (m *FieldMapper) MapStoryFields(rec *ticket.Record) (ticket.Fields, []string) {
	return m.mapFields(rec, ticket.TypeStory, m.mapping.StoryFields, storyCanonicalKeys)
}

// MapBugFields maps a record into bug fields plus any image URLs.
func (m *FieldMapper) MapBugFields(rec *ticket.Record) (ticket.Fields, []string) {
	return m.mapFields(rec, ticket.TypeBug, m.mapping.BugFields, bugCanonicalKeys)
}

func (m *FieldMapper) mapFields(rec *ticket.Record, t ticket.Type, table map[string]string, canonical map[string]bool) (ticket.Fields, []string) {
	fields := ticket.Fields{}
	var imageURLs []string

	for _, label := range rec.Keys() {
		value, _ := rec.Get(label)
		if value == nil || value == "" {
			continue
		}

		target, ok := table[label]
		if !ok {
			// The label may already be a TAPD-native field name.
			if !canonical[label] {
				continue
			}
			target = label
		}

		if target == config.ImageFieldMarker {
			imageURLs = append(imageURLs, image.ExtractURLs(value)...)
			continue
		}

		if t == ticket.TypeStory && storyCategoryLabels[label] {
			raw := asString(value)
			if typeID := m.mapping.WorkitemTypeID(raw); typeID != "" {
				fields["workitem_type_id"] = typeID
			}
			// The category text doubles as a freeform label, but never
			// clobbers a label mapped earlier in the same pass.
			if _, ok := fields["label"]; !ok {
				fields["label"] = raw
			}
			continue
		}

		switch target {
		case "priority", "priority_label":
			fields[target] = m.lookupVocab(m.mapping.Priorities, asString(value))
			continue
		case "severity":
			if t == ticket.TypeBug {
				fields[target] = m.lookupVocab(m.mapping.Severities, asString(value))
				continue
			}
		}

		fields[target] = cleanValue(value)
	}

	return fields, imageURLs
}

// lookupVocab normalizes a value through a vocabulary table: trim, exact
// match, otherwise the trimmed input passes through unchanged.
func (m *FieldMapper) lookupVocab(table map[string]string, value string) string {
	value = strings.TrimSpace(value)
	if token, ok := table[value]; ok {
		return token
	}
	return value
}

// cleanValue flattens a record value to the string TAPD expects: trimmed
// strings, stringified numbers, single-element lists unwrapped, longer
// lists joined with "|".
func cleanValue(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case []any:
		if len(v) == 1 {
			return strings.TrimSpace(asString(v[0]))
		}
		var parts []string
		for _, item := range v {
			if item == nil {
				continue
			}
			if s := strings.TrimSpace(asString(item)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "|")
	default:
		return asString(value)
	}
}

func asString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return fmt.Sprintf("%v", value)
	}
}
