package mapper_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tapdbridge.app/bridge/core/config"
	"tapdbridge.app/bridge/internal/mapper"
	"tapdbridge.app/bridge/internal/ticket"
)

var _ = Describe("TicketBuilder", func() {
	var b *mapper.TicketBuilder

	BeforeEach(func() {
		b = mapper.NewTicketBuilder(config.DefaultMapping(), "59271509")
	})

	It("builds a story and injects the workspace id", func() {
		result, err := b.BuildStory(record(`{"标题": "批量导入", "描述": "支持 csv"}`), mapper.DefaultBuildOptions())

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Fields["name"]).To(Equal("批量导入"))
		Expect(result.Fields["workspace_id"]).To(Equal("59271509"))
	})

	It("rejects a story without a name", func() {
		_, err := b.BuildStory(record(`{"描述": "no name here"}`), mapper.DefaultBuildOptions())

		var vErr *mapper.ValidationError
		Expect(errors.As(err, &vErr)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("name"))
	})

	It("rejects a bug whose title maps to an empty string", func() {
		_, err := b.BuildBug(record(`{"标题": "", "严重程度": "严重"}`), mapper.DefaultBuildOptions())

		var vErr *mapper.ValidationError
		Expect(errors.As(err, &vErr)).To(BeTrue())
	})

	It("appends extracted images to the description", func() {
		result, err := b.BuildBug(record(`{
			"标题": "白屏",
			"描述": "复现步骤见截图",
			"截图": "https://cdn.example.com/shot.png"
		}`), mapper.DefaultBuildOptions())

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Fields["description"]).To(HavePrefix("复现步骤见截图<br/><br/>"))
		Expect(result.Fields["description"]).To(ContainSubstring(`<img src="https://cdn.example.com/shot.png"`))
		Expect(result.ImageURLs).To(Equal([]string{"https://cdn.example.com/shot.png"}))
	})

	It("uses the image blocks as the whole description when none was mapped", func() {
		result, err := b.BuildBug(record(`{
			"标题": "白屏",
			"截图": "https://cdn.example.com/shot.png"
		}`), mapper.DefaultBuildOptions())

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Fields["description"]).To(HavePrefix("<p>Image 1:</p>"))
	})

	It("keeps extracted URLs but skips embedding when disabled", func() {
		result, err := b.BuildBug(record(`{
			"标题": "白屏",
			"截图": "https://cdn.example.com/shot.png"
		}`), mapper.BuildOptions{EmbedImages: false})

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Fields).NotTo(HaveKey("description"))
		Expect(result.ImageURLs).To(HaveLen(1))
	})

	It("merges extras over mapped fields before validation", func() {
		result, err := b.BuildStory(record(`{"描述": "x"}`), mapper.BuildOptions{
			EmbedImages: true,
			Extras:      ticket.Fields{"name": "from extras", "custom_field_one": "v"},
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Fields["name"]).To(Equal("from extras"))
		Expect(result.Fields["custom_field_one"]).To(Equal("v"))
	})

	It("lets extras override a mapped field", func() {
		result, err := b.BuildStory(record(`{"标题": "mapped"}`), mapper.BuildOptions{
			Extras: ticket.Fields{"name": "override"},
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(result.Fields["name"]).To(Equal("override"))
	})
})
