package mapper_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tapdbridge.app/bridge/core/config"
	"tapdbridge.app/bridge/internal/mapper"
	"tapdbridge.app/bridge/internal/ticket"
)

// record parses a JSON object literal into an order-preserving record so
// specs read like the webhook payloads they stand in for.
func record(literal string) *ticket.Record {
	rec := ticket.NewRecord()
	ExpectWithOffset(1, json.Unmarshal([]byte(literal), rec)).To(Succeed())
	return rec
}

var _ = Describe("FieldMapper", func() {
	var m *mapper.FieldMapper

	BeforeEach(func() {
		m = mapper.NewFieldMapper(config.DefaultMapping())
	})

	Describe("story field mapping", func() {
		It("maps labeled fields to TAPD keys", func() {
			fields, urls := m.MapStoryFields(record(`{
				"标题": "支持批量导入",
				"描述": "详见附件",
				"处理人": "zhangsan",
				"迭代": "sprint-12"
			}`))

			Expect(fields).To(Equal(ticket.Fields{
				"name":         "支持批量导入",
				"description":  "详见附件",
				"owner":        "zhangsan",
				"iteration_id": "sprint-12",
			}))
			Expect(urls).To(BeEmpty())
		})

		It("accepts canonical TAPD field names verbatim", func() {
			fields, _ := m.MapStoryFields(record(`{"name": "direct", "module": "core"}`))

			Expect(fields["name"]).To(Equal("direct"))
			Expect(fields["module"]).To(Equal("core"))
		})

		It("discards unknown labels instead of guessing", func() {
			fields, _ := m.MapStoryFields(record(`{"name": "x", "自定义列": "whatever"}`))

			Expect(fields).NotTo(HaveKey("自定义列"))
			Expect(fields).NotTo(HaveKey("whatever"))
		})

		It("skips null and empty values", func() {
			fields, _ := m.MapStoryFields(record(`{"name": "x", "描述": "", "处理人": null}`))

			Expect(fields).To(Equal(ticket.Fields{"name": "x"}))
		})

		It("lets a later duplicate target win", func() {
			fields, _ := m.MapStoryFields(record(`{"标题": "first", "名称": "second"}`))

			Expect(fields["name"]).To(Equal("second"))
		})

		It("does not map bug-only canonical keys", func() {
			fields, _ := m.MapStoryFields(record(`{"name": "x", "severity": "一般"}`))

			Expect(fields).NotTo(HaveKey("severity"))
		})
	})

	Describe("bug field mapping", func() {
		It("maps bug labels including severity", func() {
			fields, _ := m.MapBugFields(record(`{
				"标题": "登录页白屏",
				"严重程度": "严重",
				"当前处理人": "lisi",
				"发现版本": "v2.3.0"
			}`))

			Expect(fields).To(Equal(ticket.Fields{
				"title":          "登录页白屏",
				"severity":       "serious",
				"current_owner":  "lisi",
				"version_report": "v2.3.0",
			}))
		})

		It("passes unknown severity values through trimmed", func() {
			fields, _ := m.MapBugFields(record(`{"标题": "x", "严重程度": " blocker "}`))

			Expect(fields["severity"]).To(Equal("blocker"))
		})
	})

	Describe("priority normalization", func() {
		DescribeTable("maps display values to TAPD tokens",
			func(input, want string) {
				fields, _ := m.MapBugFields(record(`{"标题": "x", "优先级": "` + input + `"}`))
				Expect(fields["priority_label"]).To(Equal(want))
			},
			Entry("Chinese high", "高", "high"),
			Entry("Chinese urgent", "紧急", "urgent"),
			Entry("numeric 2", "2", "high"),
			Entry("numeric 4", "4", "low"),
			Entry("whitespace around a known value", "  低  ", "low"),
			Entry("unknown value passes through", "P0", "P0"),
		)

		It("normalizes the canonical priority key too", func() {
			fields, _ := m.MapStoryFields(record(`{"name": "x", "priority": "高"}`))

			Expect(fields["priority"]).To(Equal("high"))
		})
	})

	Describe("value cleanup", func() {
		It("stringifies numbers without float noise", func() {
			fields, _ := m.MapStoryFields(record(`{"name": "x", "迭代": 1024}`))

			Expect(fields["iteration_id"]).To(Equal("1024"))
		})

		It("unwraps single-element lists", func() {
			fields, _ := m.MapStoryFields(record(`{"name": "x", "模块": ["支付"]}`))

			Expect(fields["module"]).To(Equal("支付"))
		})

		It("joins multi-element lists with a pipe", func() {
			fields, _ := m.MapStoryFields(record(`{"name": "x", "标签": ["前端", "紧急", "支付"]}`))

			Expect(fields["label"]).To(Equal("前端|紧急|支付"))
		})

		It("drops null and blank list elements when joining", func() {
			fields, _ := m.MapStoryFields(record(`{"name": "x", "标签": ["a", null, "  ", "b"]}`))

			Expect(fields["label"]).To(Equal("a|b"))
		})
	})

	Describe("image carrier fields", func() {
		It("routes marked fields to URL extraction", func() {
			fields, urls := m.MapStoryFields(record(`{
				"name": "x",
				"截图": "https://cdn.example.com/a.png, https://cdn.example.com/b.jpg"
			}`))

			Expect(urls).To(Equal([]string{
				"https://cdn.example.com/a.png",
				"https://cdn.example.com/b.jpg",
			}))
			Expect(fields).NotTo(HaveKey("截图"))
			Expect(fields).NotTo(HaveKey("_images"))
		})

		It("collects URLs across multiple carrier fields", func() {
			_, urls := m.MapBugFields(record(`{
				"标题": "x",
				"图片": "https://cdn.example.com/a.png",
				"附件图片": [{"url": "https://cdn.example.com/b.png"}]
			}`))

			Expect(urls).To(HaveLen(2))
		})
	})

	Describe("story workitem category", func() {
		BeforeEach(func() {
			mapping := config.DefaultMapping()
			mapping.WorkitemTypes["BUG类"] = "1163572"
			mapping.WorkitemTypes["技术需求"] = "1163573"
			m = mapper.NewFieldMapper(mapping)
		})

		It("resolves the category to a workitem type id and keeps the label", func() {
			fields, _ := m.MapStoryFields(record(`{"name": "x", "需求类别": "技术需求"}`))

			Expect(fields["workitem_type_id"]).To(Equal("1163573"))
			Expect(fields["label"]).To(Equal("技术需求"))
		})

		It("falls back to an upper-cased category match", func() {
			fields, _ := m.MapStoryFields(record(`{"name": "x", "标签类型": "bug类"}`))

			Expect(fields["workitem_type_id"]).To(Equal("1163572"))
		})

		It("keeps the label but no type id for unknown categories", func() {
			fields, _ := m.MapStoryFields(record(`{"name": "x", "标签类型": "运营需求"}`))

			Expect(fields).NotTo(HaveKey("workitem_type_id"))
			Expect(fields["label"]).To(Equal("运营需求"))
		})

		It("never clobbers a label mapped earlier in the pass", func() {
			fields, _ := m.MapStoryFields(record(`{"name": "x", "标签": "核心", "需求类别": "技术需求"}`))

			Expect(fields["label"]).To(Equal("核心"))
			Expect(fields["workitem_type_id"]).To(Equal("1163573"))
		})
	})
})
