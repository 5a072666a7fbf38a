package mapper

import (
	"tapdbridge.app/bridge/core/config"
	"tapdbridge.app/bridge/internal/image"
	"tapdbridge.app/bridge/internal/ticket"
)

// ValidationError reports a record that cannot become a valid ticket.
// It is an expected outcome, surfaced to the caller as a structured
// failure; no submission is attempted.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func newValidationError(msg string) *ValidationError {
	return &ValidationError{msg: msg}
}

// BuildOptions tune ticket construction.
type BuildOptions struct {
	// EmbedImages appends extracted image URLs to the description as
	// numbered image blocks.
	EmbedImages bool
	// Extras are merged over the mapped fields, last write wins. This is
	// the explicit override surface for callers that need fields outside
	// the mapping tables (custom_field_*, iteration ids, ...).
	Extras ticket.Fields
}

func DefaultBuildOptions() BuildOptions {
	return BuildOptions{EmbedImages: true}
}

// TicketBuilder assembles validated TAPD payloads from mapped fields.
type TicketBuilder struct {
	mapper      *FieldMapper
	workspaceID string
}

func NewTicketBuilder(mapping config.MappingConfig, workspaceID string) *TicketBuilder {
	return &TicketBuilder{
		mapper:      NewFieldMapper(mapping),
		workspaceID: workspaceID,
	}
}

// BuildStory maps and validates a story record. A story must end up with a
// non-empty name.
func (b *TicketBuilder) BuildStory(rec *ticket.Record, opts BuildOptions) (*ticket.BuildResult, error) {
	fields, imageURLs := b.mapper.MapStoryFields(rec)
	mergeExtras(fields, opts.Extras)

	if fields["name"] == "" {
		return nil, newValidationError("story requires a non-empty name field")
	}

	return b.finish(fields, imageURLs, opts), nil
}

// BuildBug maps and validates a bug record. A bug must end up with a
// non-empty title.
func (b *TicketBuilder) BuildBug(rec *ticket.Record, opts BuildOptions) (*ticket.BuildResult, error) {
	fields, imageURLs := b.mapper.MapBugFields(rec)
	mergeExtras(fields, opts.Extras)

	if fields["title"] == "" {
		return nil, newValidationError("bug requires a non-empty title field")
	}

	return b.finish(fields, imageURLs, opts), nil
}

// finish runs the steps shared by both ticket types after validation:
// workspace injection and image embedding.
func (b *TicketBuilder) finish(fields ticket.Fields, imageURLs []string, opts BuildOptions) *ticket.BuildResult {
	fields["workspace_id"] = b.workspaceID

	if opts.EmbedImages && len(imageURLs) > 0 {
		blocks := image.RenderBlocks(imageURLs)
		if description := fields["description"]; description != "" {
			fields["description"] = description + "<br/><br/>" + blocks
		} else {
			fields["description"] = blocks
		}
	}

	return &ticket.BuildResult{Fields: fields, ImageURLs: imageURLs}
}

func mergeExtras(fields ticket.Fields, extras ticket.Fields) {
	for k, v := range extras {
		fields[k] = v
	}
}
