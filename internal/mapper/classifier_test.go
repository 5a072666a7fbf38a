package mapper_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"tapdbridge.app/bridge/internal/mapper"
	"tapdbridge.app/bridge/internal/ticket"
)

var _ = Describe("Classify", func() {
	Describe("bare payloads", func() {
		It("honors an explicit ticket_type hint", func() {
			t, rec := mapper.Classify(record(`{"ticket_type": "bug", "name": "x"}`))

			Expect(t).To(Equal(ticket.TypeBug))
			Expect(rec.Has("name")).To(BeTrue())
		})

		It("recognizes Chinese hint keys and values", func() {
			t, _ := mapper.Classify(record(`{"类型": "缺陷", "标题": "x"}`))

			Expect(t).To(Equal(ticket.TypeBug))
		})

		It("prefers ticket_type over the other hint keys", func() {
			t, _ := mapper.Classify(record(`{"type": "bug", "ticket_type": "story", "name": "x"}`))

			Expect(t).To(Equal(ticket.TypeStory))
		})

		It("classifies by title heuristic when no hint is present", func() {
			t, _ := mapper.Classify(record(`{"标题": "登录页白屏", "严重程度": "严重"}`))

			Expect(t).To(Equal(ticket.TypeBug))
		})

		It("defaults to story when no hint and no title label", func() {
			t, _ := mapper.Classify(record(`{"需求名称": "批量导入", "描述": "x"}`))

			Expect(t).To(Equal(ticket.TypeStory))
		})

		It("falls back to the heuristic for unrecognized hints", func() {
			t, _ := mapper.Classify(record(`{"ticket_type": "epic", "title": "broken"}`))

			Expect(t).To(Equal(ticket.TypeBug))
		})

		It("strips every routing key from the working record", func() {
			_, rec := mapper.Classify(record(`{"ticket_type": "story", "type": "story", "类型": "需求", "name": "x"}`))

			Expect(rec.Has("ticket_type")).To(BeFalse())
			Expect(rec.Has("type")).To(BeFalse())
			Expect(rec.Has("类型")).To(BeFalse())
			Expect(rec.Has("name")).To(BeTrue())
		})
	})

	Describe("enveloped payloads", func() {
		It("unwraps the record key and reads the sibling hint", func() {
			t, rec := mapper.Classify(record(`{"ticket_type": "bug", "record": {"标题": "x"}}`))

			Expect(t).To(Equal(ticket.TypeBug))
			Expect(rec.Has("标题")).To(BeTrue())
			Expect(rec.Has("record")).To(BeFalse())
		})

		It("defaults an unhinted envelope to story", func() {
			t, rec := mapper.Classify(record(`{"record": {"标题": "looks like a bug"}}`))

			Expect(t).To(Equal(ticket.TypeStory))
			Expect(rec.Has("标题")).To(BeTrue())
		})

		It("yields an empty record for a non-object envelope body", func() {
			t, rec := mapper.Classify(record(`{"record": "not an object"}`))

			Expect(t).To(Equal(ticket.TypeStory))
			Expect(rec.Len()).To(BeZero())
		})
	})
})
