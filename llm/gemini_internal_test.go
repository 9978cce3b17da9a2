package llm

import (
	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("gemini history", func() {
	msgs := []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleSystem, Content: "tools: none"},
		NewTextMessage(RoleUser, "q1"),
		NewTextMessage(RoleAssistant, "a1"),
		NewTextMessage(RoleUser, "q2"),
	}

	It("joins system prompts", func() {
		Expect(systemText(msgs)).To(Equal("be brief\n\ntools: none"))
	})

	It("sends the last message separately and maps assistant to model", func() {
		history, last := splitHistory(msgs)
		Expect(last).To(Equal("q2"))
		Expect(history).To(HaveLen(2))
		Expect(history[0].Role).To(Equal("user"))
		Expect(history[1].Role).To(Equal("model"))
		Expect(history[1].Parts).To(Equal([]genai.Part{genai.Text("a1")}))
	})

	It("handles a transcript of only system prompts", func() {
		history, last := splitHistory(msgs[:2])
		Expect(history).To(BeNil())
		Expect(last).To(BeEmpty())
	})

	It("concatenates candidate text parts", func() {
		resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("<answer>"), genai.Text("ok</answer>")}}},
			{Content: nil},
		}}
		Expect(extractContent(resp)).To(Equal("<answer>ok</answer>"))
	})
})
