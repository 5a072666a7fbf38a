package service_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tapdbridge.app/bridge/core/config"
	"tapdbridge.app/bridge/internal/image"
	"tapdbridge.app/bridge/internal/service"
	"tapdbridge.app/bridge/internal/tapd"
	"tapdbridge.app/bridge/internal/ticket"
)

func testConfig() config.Config {
	return config.Config{
		TAPD: config.TAPDConfig{
			WorkspaceID: "59271509",
			BaseURL:     "https://api.tapd.cn",
			WebBaseURL:  "https://www.tapd.cn",
		},
		Mapping: config.DefaultMapping(),
	}
}

func payload(literal string) *ticket.Record {
	rec := ticket.NewRecord()
	ExpectWithOffset(1, json.Unmarshal([]byte(literal), rec)).To(Succeed())
	return rec
}

var _ = Describe("TicketService", func() {
	var (
		api *mockTicketAPI
		svc service.TicketService
	)

	BeforeEach(func() {
		api = &mockTicketAPI{}
		svc = service.NewTicketService(service.TicketServiceConfig{
			API:    api,
			Config: testConfig(),
		})
	})

	Describe("stories", func() {
		It("creates a story and builds the web url", func() {
			result := svc.CreateTicket(context.Background(), ticket.TypeStory, payload(`{"标题": "批量导入"}`))

			Expect(result.Success).To(BeTrue())
			Expect(result.TicketID).To(Equal("1001"))
			Expect(result.TicketURL).To(Equal("https://www.tapd.cn/59271509/prong/stories/view/1001"))
			Expect(result.TicketType).To(Equal(ticket.TypeStory))
			Expect(api.capturedFields["name"]).To(Equal("批量导入"))
			Expect(api.capturedFields["workspace_id"]).To(Equal("59271509"))
		})

		It("returns a validation failure without calling the API", func() {
			result := svc.CreateTicket(context.Background(), ticket.TypeStory, payload(`{"描述": "no name"}`))

			Expect(result.Success).To(BeFalse())
			Expect(result.ErrorMessage).To(ContainSubstring("validation failed"))
			Expect(api.capturedFields).To(BeNil())
		})

		It("surfaces tapd api errors as failure results", func() {
			api.createStoryFn = func(ctx context.Context, fields ticket.Fields) (tapd.Entity, error) {
				return nil, &tapd.APIError{Status: 0, Info: "workspace_id error"}
			}

			result := svc.CreateTicket(context.Background(), ticket.TypeStory, payload(`{"标题": "x"}`))

			Expect(result.Success).To(BeFalse())
			Expect(result.ErrorMessage).To(ContainSubstring("workspace_id error"))
		})

		It("fails when the API accepts but returns no id", func() {
			api.createStoryFn = func(ctx context.Context, fields ticket.Fields) (tapd.Entity, error) {
				return tapd.Entity{"name": "x"}, nil
			}

			result := svc.CreateTicket(context.Background(), ticket.TypeStory, payload(`{"标题": "x"}`))

			Expect(result.Success).To(BeFalse())
			Expect(result.ErrorMessage).To(ContainSubstring("no ticket id"))
			Expect(result.RawResponse).NotTo(BeNil())
		})
	})

	Describe("bugs", func() {
		It("creates a bug with the bugtrace url", func() {
			result := svc.CreateTicket(context.Background(), ticket.TypeBug, payload(`{"标题": "白屏", "严重程度": "严重"}`))

			Expect(result.Success).To(BeTrue())
			Expect(result.TicketURL).To(Equal("https://www.tapd.cn/59271509/bugtrace/bugs/view/2002"))
			Expect(api.capturedFields["severity"]).To(Equal("serious"))
		})

		It("carries the extracted image urls in the result", func() {
			result := svc.CreateTicket(context.Background(), ticket.TypeBug, payload(`{
				"标题": "白屏",
				"截图": "https://cdn.example.com/shot.png"
			}`))

			Expect(result.Success).To(BeTrue())
			Expect(result.ImageURLs).To(Equal([]string{"https://cdn.example.com/shot.png"}))
		})
	})

	Describe("tasks", func() {
		It("creates a task from the reduced field set", func() {
			result := svc.CreateTicket(context.Background(), ticket.TypeTask, payload(`{
				"标题": "部署灰度",
				"描述": "周五前",
				"处理人": "wangwu"
			}`))

			Expect(result.Success).To(BeTrue())
			Expect(result.TicketURL).To(Equal("https://www.tapd.cn/59271509/prong/tasks/view/3003"))
			Expect(api.capturedFields).To(Equal(ticket.Fields{
				"workspace_id": "59271509",
				"name":         "部署灰度",
				"description":  "周五前",
				"owner":        "wangwu",
			}))
		})

		It("wraps bare image urls in task descriptions", func() {
			svc.CreateTicket(context.Background(), ticket.TypeTask, payload(`{
				"标题": "x",
				"描述": "see https://cdn.example.com/a.png"
			}`))

			Expect(api.capturedFields["description"]).To(ContainSubstring(`<img src="https://cdn.example.com/a.png"`))
		})
	})

	It("rejects unsupported ticket types", func() {
		result := svc.CreateTicket(context.Background(), ticket.Type("epic"), payload(`{"name": "x"}`))

		Expect(result.Success).To(BeFalse())
		Expect(result.ErrorMessage).To(ContainSubstring("unsupported ticket type"))
	})

	Describe("attachment upload", func() {
		It("re-uploads downloaded images when a downloader is configured", func() {
			svc = service.NewTicketService(service.TicketServiceConfig{
				API:        api,
				Config:     testConfig(),
				Downloader: &mockDownloader{},
			})

			result := svc.CreateTicket(context.Background(), ticket.TypeBug, payload(`{
				"标题": "白屏",
				"截图": "https://cdn.example.com/shot.png"
			}`))

			Expect(result.Success).To(BeTrue())
			Expect(api.uploadedEntries).To(HaveLen(1))
			Expect(api.uploadedEntries[0][0]).To(Equal("bug"))
			Expect(api.uploadedEntries[0][1]).To(Equal("2002"))
		})

		It("skips uploads for failed downloads", func() {
			svc = service.NewTicketService(service.TicketServiceConfig{
				API:    api,
				Config: testConfig(),
				Downloader: &mockDownloader{results: []image.DownloadResult{
					{URL: "https://cdn.example.com/shot.png", Err: errors.New("403")},
				}},
			})

			result := svc.CreateTicket(context.Background(), ticket.TypeBug, payload(`{
				"标题": "白屏",
				"截图": "https://cdn.example.com/shot.png"
			}`))

			Expect(result.Success).To(BeTrue())
			Expect(api.uploadedEntries).To(BeEmpty())
		})
	})
})
