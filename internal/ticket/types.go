package ticket

import "strings"

// Type is the kind of TAPD ticket a record turns into.
type Type string

const (
	TypeStory Type = "story"
	TypeBug   Type = "bug"
	TypeTask  Type = "task"
)

func (t Type) Valid() bool {
	switch t {
	case TypeStory, TypeBug, TypeTask:
		return true
	}
	return false
}

// typeSynonyms maps lowercased type hints, including the Chinese labels the
// bitable automation sends, to a ticket type.
var typeSynonyms = map[string]Type{
	"story":       TypeStory,
	"需求":          TypeStory,
	"需求单":         TypeStory,
	"requirement": TypeStory,
	"bug":         TypeBug,
	"缺陷":          TypeBug,
	"缺陷单":         TypeBug,
	"defect":      TypeBug,
	"task":        TypeTask,
	"任务":          TypeTask,
	"任务单":         TypeTask,
}

// ParseType normalizes a type hint to a ticket type. The second return is
// false when the hint is empty or not a recognized synonym.
func ParseType(hint string) (Type, bool) {
	t, ok := typeSynonyms[strings.ToLower(strings.TrimSpace(hint))]
	return t, ok
}

// Fields is a mapped TAPD payload: canonical TAPD field name to value.
type Fields map[string]string

// BuildResult is a fully mapped and validated ticket, ready for submission.
// ImageURLs carries the extracted image links separately so callers can
// upload them as attachments out of band.
type BuildResult struct {
	Fields    Fields
	ImageURLs []string
}
