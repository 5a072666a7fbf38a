package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	OTel    OTelConfig
	TAPD    TAPDConfig
	Feishu  FeishuConfig
	Redis   RedisConfig
	Mapping MappingConfig
	Env     string
	Port    string

	// UploadAttachments re-uploads extracted images to TAPD as ticket
	// attachments after creation, in addition to embedding their URLs in
	// the description.
	UploadAttachments bool
}

type TAPDConfig struct {
	APIUser     string
	APIPassword string
	WorkspaceID string
	BaseURL     string
	WebBaseURL  string
}

func (c TAPDConfig) StoryURL(storyID string) string {
	return fmt.Sprintf("%s/%s/prong/stories/view/%s", c.WebBaseURL, c.WorkspaceID, storyID)
}

func (c TAPDConfig) BugURL(bugID string) string {
	return fmt.Sprintf("%s/%s/bugtrace/bugs/view/%s", c.WebBaseURL, c.WorkspaceID, bugID)
}

func (c TAPDConfig) TaskURL(taskID string) string {
	return fmt.Sprintf("%s/%s/prong/tasks/view/%s", c.WebBaseURL, c.WorkspaceID, taskID)
}

type FeishuConfig struct {
	AppID             string
	AppSecret         string
	VerificationToken string
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
}

type RedisConfig struct {
	URL string
}

// Load loads configuration from environment variables. In development it
// loads .env first, then applies BRIDGE_MAPPING_FILE overrides on top of
// the built-in mapping tables.
func Load() (Config, error) {
	if getEnv("BRIDGE_ENV", "development") == "development" {
		_ = godotenv.Load(".env")
	}

	cfg := Config{
		Env:  getEnv("BRIDGE_ENV", "development"),
		Port: getEnv("PORT", "8080"),

		UploadAttachments: getEnv("BRIDGE_UPLOAD_ATTACHMENTS", "") == "true",

		TAPD: TAPDConfig{
			APIUser:     getEnv("TAPD_API_USER", ""),
			APIPassword: getEnv("TAPD_API_PASSWORD", ""),
			WorkspaceID: getEnv("TAPD_WORKSPACE_ID", ""),
			BaseURL:     getEnv("TAPD_BASE_URL", "https://api.tapd.cn"),
			WebBaseURL:  getEnv("TAPD_WEB_BASE_URL", "https://www.tapd.cn"),
		},
		Feishu: FeishuConfig{
			AppID:             getEnv("FEISHU_APP_ID", ""),
			AppSecret:         getEnv("FEISHU_APP_SECRET", ""),
			VerificationToken: getEnv("FEISHU_VERIFICATION_TOKEN", ""),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "tapd-bridge"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Mapping: DefaultMapping(),
	}

	if mappingFile := getEnv("BRIDGE_MAPPING_FILE", ""); mappingFile != "" {
		if err := cfg.Mapping.MergeFile(mappingFile); err != nil {
			return Config{}, fmt.Errorf("loading mapping file: %w", err)
		}
	}

	return cfg, nil
}

// Validate reports missing required settings. The server still starts with
// an incomplete config so /health can report it, but ticket creation will
// fail against TAPD.
func (c Config) Validate() []string {
	var problems []string
	if c.TAPD.APIUser == "" {
		problems = append(problems, "TAPD_API_USER is not set")
	}
	if c.TAPD.APIPassword == "" {
		problems = append(problems, "TAPD_API_PASSWORD is not set")
	}
	if c.TAPD.WorkspaceID == "" {
		problems = append(problems, "TAPD_WORKSPACE_ID is not set")
	}
	return problems
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c RedisConfig) Enabled() bool {
	return c.URL != ""
}

func (c FeishuConfig) SignatureEnabled() bool {
	return c.VerificationToken != ""
}

// MappingConfig holds the static vocabulary tables: per-type field-name
// tables (source record label, possibly Chinese, to TAPD field name) and
// value vocabularies for priority, severity and workitem category.
type MappingConfig struct {
	StoryFields   map[string]string `json:"story_fields"`
	BugFields     map[string]string `json:"bug_fields"`
	Priorities    map[string]string `json:"priorities"`
	Severities    map[string]string `json:"severities"`
	WorkitemTypes map[string]string `json:"workitem_types"`
}

// ImageFieldMarker is the pseudo target key that routes a field's value to
// image extraction instead of the mapped fields.
const ImageFieldMarker = "_images"

func DefaultMapping() MappingConfig {
	return MappingConfig{
		StoryFields: map[string]string{
			"标题":   "name",
			"名称":   "name",
			"需求名称": "name",
			"描述":   "description",
			"详细描述": "description",
			"处理人":  "owner",
			"负责人":  "owner",
			"创建人":  "creator",
			"优先级":  "priority_label",
			"标签类型": "label",
			"标签":   "label",
			"需求类别": "workitem_type_id",
			"迭代":   "iteration_id",
			"版本":   "version",
			"模块":   "module",
			"预计开始": "begin",
			"预计结束": "due",
			"图片":   ImageFieldMarker,
			"截图":   ImageFieldMarker,
			"附件图片": ImageFieldMarker,
		},
		BugFields: map[string]string{
			"标题":    "title",
			"缺陷标题":  "title",
			"描述":    "description",
			"详细描述":  "description",
			"处理人":   "current_owner",
			"负责人":   "current_owner",
			"当前处理人": "current_owner",
			"创建人":   "reporter",
			"报告人":   "reporter",
			"优先级":   "priority_label",
			"严重程度":  "severity",
			"标签":    "label",
			"迭代":    "iteration_id",
			"版本":    "version_report",
			"发现版本":  "version_report",
			"模块":    "module",
			"预计开始":  "begin",
			"预计结束":  "due",
			"图片":    ImageFieldMarker,
			"截图":    ImageFieldMarker,
			"附件图片":  ImageFieldMarker,
		},
		Priorities: map[string]string{
			"紧急":   "urgent",
			"高":    "high",
			"中":    "middle",
			"低":    "low",
			"无关紧要": "insignificant",
			"1":    "urgent",
			"2":    "high",
			"3":    "middle",
			"4":    "low",
		},
		Severities: map[string]string{
			"致命": "fatal",
			"严重": "serious",
			"一般": "general",
			"提示": "prompt",
			"建议": "advice",
		},
		// Workspace-specific: workitem category labels to TAPD
		// workitem_type_id values, supplied via BRIDGE_MAPPING_FILE.
		WorkitemTypes: map[string]string{},
	}
}

// MergeFile overlays mapping tables from a JSON file onto the defaults.
// Only the keys present in the file change; field tables and vocabularies
// merge entry by entry so a file can add aliases without restating the
// built-ins.
func (m *MappingConfig) MergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var overrides MappingConfig
	if err := json.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	mergeTable(m.StoryFields, overrides.StoryFields)
	mergeTable(m.BugFields, overrides.BugFields)
	mergeTable(m.Priorities, overrides.Priorities)
	mergeTable(m.Severities, overrides.Severities)
	mergeTable(m.WorkitemTypes, overrides.WorkitemTypes)
	return nil
}

// WorkitemTypeID resolves a category label to a workitem type id: exact
// match first, then upper-cased. Empty result means no match.
func (m MappingConfig) WorkitemTypeID(label string) string {
	if label == "" {
		return ""
	}
	if id, ok := m.WorkitemTypes[label]; ok {
		return id
	}
	return m.WorkitemTypes[strings.ToUpper(label)]
}

func mergeTable(dst, src map[string]string) {
	for k, v := range src {
		dst[k] = v
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
