package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tapdbridge.app/bridge/common/logger"
	"tapdbridge.app/bridge/core/config"
	"tapdbridge.app/bridge/internal/image"
	"tapdbridge.app/bridge/internal/mapper"
	"tapdbridge.app/bridge/internal/tapd"
	"tapdbridge.app/bridge/internal/ticket"
)

// TicketAPI is the outbound TAPD surface the service needs. Satisfied by
// *tapd.Client.
type TicketAPI interface {
	CreateStory(ctx context.Context, fields ticket.Fields) (tapd.Entity, error)
	CreateBug(ctx context.Context, fields ticket.Fields) (tapd.Entity, error)
	CreateTask(ctx context.Context, fields ticket.Fields) (tapd.Entity, error)
	UploadAttachment(ctx context.Context, entryType, entryID, filePath string) (tapd.Entity, error)
}

// ImageDownloader fetches extracted image URLs to local files for
// re-upload. Satisfied by *image.Downloader.
type ImageDownloader interface {
	DownloadAll(ctx context.Context, urls []string, dir string) []image.DownloadResult
}

// CreateTicketResult is the uniform outcome of a creation attempt. Failures
// inside mapping, building or submission all land here; nothing escapes as
// a panic or raw error to the transport layer.
type CreateTicketResult struct {
	Success      bool
	TicketID     string
	TicketURL    string
	TicketType   ticket.Type
	ErrorMessage string
	RawResponse  tapd.Entity
	ImageURLs    []string
}

type TicketService interface {
	CreateTicket(ctx context.Context, t ticket.Type, rec *ticket.Record) CreateTicketResult
}

// TicketServiceConfig wires the service's collaborators. Downloader is
// optional: when nil, extracted images are only embedded in descriptions,
// never re-uploaded as attachments.
type TicketServiceConfig struct {
	API        TicketAPI
	Config     config.Config
	Downloader ImageDownloader
}

type ticketService struct {
	api        TicketAPI
	builder    *mapper.TicketBuilder
	tapdCfg    config.TAPDConfig
	downloader ImageDownloader
}

func NewTicketService(cfg TicketServiceConfig) TicketService {
	return &ticketService{
		api:        cfg.API,
		builder:    mapper.NewTicketBuilder(cfg.Config.Mapping, cfg.Config.TAPD.WorkspaceID),
		tapdCfg:    cfg.Config.TAPD,
		downloader: cfg.Downloader,
	}
}

func (s *ticketService) CreateTicket(ctx context.Context, t ticket.Type, rec *ticket.Record) CreateTicketResult {
	sc := logger.StartSpan(ctx, "bridge.create_ticket")
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{
		TicketType:  logger.Ptr(string(t)),
		WorkspaceID: logger.Ptr(s.tapdCfg.WorkspaceID),
		Component:   "bridge.service.ticket",
	})

	var result CreateTicketResult
	switch t {
	case ticket.TypeStory:
		result = s.createStory(ctx, rec)
	case ticket.TypeBug:
		result = s.createBug(ctx, rec)
	case ticket.TypeTask:
		result = s.createTask(ctx, rec)
	default:
		result = failure(t, fmt.Sprintf("unsupported ticket type: %s", t))
	}

	if result.Success {
		slog.InfoContext(ctx, "ticket created",
			"ticket_id", result.TicketID,
			"ticket_url", result.TicketURL,
			"image_count", len(result.ImageURLs),
		)
		s.uploadImages(ctx, result)
	} else {
		sc.RecordError(errors.New(result.ErrorMessage))
		slog.WarnContext(ctx, "ticket creation failed", "reason", result.ErrorMessage)
	}
	return result
}

func (s *ticketService) createStory(ctx context.Context, rec *ticket.Record) CreateTicketResult {
	build, err := s.builder.BuildStory(rec, mapper.DefaultBuildOptions())
	if err != nil {
		return buildFailure(ticket.TypeStory, err)
	}

	entity, err := s.api.CreateStory(ctx, build.Fields)
	if err != nil {
		return failure(ticket.TypeStory, fmt.Sprintf("creating story: %s", err))
	}

	id := entity.ID()
	if id == "" {
		r := failure(ticket.TypeStory, "tapd accepted the story but returned no ticket id")
		r.RawResponse = entity
		return r
	}

	return CreateTicketResult{
		Success:     true,
		TicketID:    id,
		TicketURL:   s.tapdCfg.StoryURL(id),
		TicketType:  ticket.TypeStory,
		RawResponse: entity,
		ImageURLs:   build.ImageURLs,
	}
}

func (s *ticketService) createBug(ctx context.Context, rec *ticket.Record) CreateTicketResult {
	build, err := s.builder.BuildBug(rec, mapper.DefaultBuildOptions())
	if err != nil {
		return buildFailure(ticket.TypeBug, err)
	}

	entity, err := s.api.CreateBug(ctx, build.Fields)
	if err != nil {
		return failure(ticket.TypeBug, fmt.Sprintf("creating bug: %s", err))
	}

	id := entity.ID()
	if id == "" {
		r := failure(ticket.TypeBug, "tapd accepted the bug but returned no ticket id")
		r.RawResponse = entity
		return r
	}

	return CreateTicketResult{
		Success:     true,
		TicketID:    id,
		TicketURL:   s.tapdCfg.BugURL(id),
		TicketType:  ticket.TypeBug,
		RawResponse: entity,
		ImageURLs:   build.ImageURLs,
	}
}

// createTask is a reduced best-effort path: no field-name tables and no
// vocabulary normalization, just title/description/owner.
func (s *ticketService) createTask(ctx context.Context, rec *ticket.Record) CreateTicketResult {
	fields := ticket.Fields{
		"workspace_id": s.tapdCfg.WorkspaceID,
	}
	if name := recordString(rec, "标题", "名称", "name"); name != "" {
		fields["name"] = name
	}
	if description := recordString(rec, "描述", "description"); description != "" {
		fields["description"] = image.AutoConvertURLs(description)
	}
	if owner := recordString(rec, "处理人", "owner"); owner != "" {
		fields["owner"] = owner
	}

	entity, err := s.api.CreateTask(ctx, fields)
	if err != nil {
		return failure(ticket.TypeTask, fmt.Sprintf("creating task: %s", err))
	}

	id := entity.ID()
	if id == "" {
		r := failure(ticket.TypeTask, "tapd accepted the task but returned no ticket id")
		r.RawResponse = entity
		return r
	}

	return CreateTicketResult{
		Success:    true,
		TicketID:   id,
		TicketURL:  s.tapdCfg.TaskURL(id),
		TicketType: ticket.TypeTask,
	}
}

// uploadImages re-uploads extracted images as ticket attachments when a
// downloader is configured. Strictly best-effort: the ticket already
// exists and carries the embedded links, so failures are logged and
// swallowed.
func (s *ticketService) uploadImages(ctx context.Context, result CreateTicketResult) {
	if s.downloader == nil || len(result.ImageURLs) == 0 {
		return
	}

	for _, dl := range s.downloader.DownloadAll(ctx, result.ImageURLs, "") {
		if dl.Err != nil {
			continue
		}
		if _, err := s.api.UploadAttachment(ctx, string(result.TicketType), result.TicketID, dl.LocalPath); err != nil {
			slog.WarnContext(ctx, "attachment upload failed",
				"ticket_id", result.TicketID,
				"url", dl.URL,
				"error", err,
			)
		}
	}
}

func buildFailure(t ticket.Type, err error) CreateTicketResult {
	var vErr *mapper.ValidationError
	if errors.As(err, &vErr) {
		return failure(t, fmt.Sprintf("validation failed: %s", vErr.Error()))
	}
	return failure(t, fmt.Sprintf("building %s: %s", t, err))
}

func failure(t ticket.Type, message string) CreateTicketResult {
	return CreateTicketResult{
		Success:      false,
		TicketType:   t,
		ErrorMessage: message,
	}
}

// recordString returns the first non-empty string value among candidate
// labels, in order.
func recordString(rec *ticket.Record, labels ...string) string {
	for _, label := range labels {
		if v, ok := rec.Get(label); ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
