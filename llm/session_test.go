package llm_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"nlcp/llm"
)

type recordingProvider struct {
	requests []*llm.ChatRequest
	reply    string
	err      error
}

func (p *recordingProvider) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	return &llm.ChatResponse{Content: p.reply}, nil
}

func snapshots(buf *bytes.Buffer) []map[string]any {
	var out []map[string]any
	sc := bufio.NewScanner(buf)
	for sc.Scan() {
		var m map[string]any
		Expect(json.Unmarshal(sc.Bytes(), &m)).To(Succeed())
		out = append(out, m)
	}
	return out
}

var _ = Describe("Transcript", func() {
	It("copies history and appends the user message", func() {
		history := []llm.Message{
			llm.NewTextMessage(llm.RoleUser, "hi"),
			llm.NewTextMessage(llm.RoleAssistant, "hello"),
		}
		t := llm.NewTranscript(history, "who is C001?")
		t.Add(llm.RoleAssistant, "<thinking>look up</thinking>")

		Expect(t.Len()).To(Equal(4))
		Expect(history).To(HaveLen(2))
		msgs := t.Messages()
		Expect(msgs[2]).To(Equal(llm.NewTextMessage(llm.RoleUser, "who is C001?")))
		Expect(msgs[3].Role).To(Equal(llm.RoleAssistant))
	})

	It("drops system messages from history", func() {
		t := llm.NewTranscript([]llm.Message{{Role: llm.RoleSystem, Content: "old prompt"}}, "q")
		Expect(t.Messages()).To(Equal([]llm.Message{llm.NewTextMessage(llm.RoleUser, "q")}))
	})

	It("returns a copy from Messages", func() {
		t := llm.NewTranscript(nil, "q")
		msgs := t.Messages()
		msgs[0].Content = "changed"
		Expect(t.Messages()[0].Content).To(Equal("q"))
	})
})

var _ = Describe("Session", func() {
	var provider *recordingProvider

	BeforeEach(func() {
		provider = &recordingProvider{reply: "<answer>done</answer>"}
	})

	It("prepends system prompts and sends the session settings", func() {
		s := llm.NewSession(provider, "gpt-4o", "you are helpful", "tools: none")
		s.SetMaxTokens(512)
		s.SetStopSequences([]string{"</tool_call>"})
		t := llm.NewTranscript(nil, "q")

		resp, err := s.Send(context.Background(), t)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.Content).To(Equal("<answer>done</answer>"))

		Expect(provider.requests).To(HaveLen(1))
		req := provider.requests[0]
		Expect(req.Model).To(Equal("gpt-4o"))
		Expect(req.MaxTokens).To(Equal(512))
		Expect(req.StopSequences).To(Equal([]string{"</tool_call>"}))
		Expect(req.Messages).To(HaveLen(3))
		Expect(req.Messages[0]).To(Equal(llm.Message{Role: llm.RoleSystem, Content: "you are helpful"}))
		Expect(req.Messages[2].Content).To(Equal("q"))
	})

	It("leaves the transcript unchanged", func() {
		s := llm.NewSession(provider, "m")
		t := llm.NewTranscript(nil, "q")
		_, err := s.Send(context.Background(), t)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Len()).To(Equal(1))
	})

	It("logs each request to the turn logger", func() {
		var buf bytes.Buffer
		tl := llm.NewTurnLoggerTo(&buf)
		s := llm.NewSession(provider, "m", "sys")
		s.SetTurnLogger(tl)

		_, err := s.Send(context.Background(), llm.NewTranscript(nil, "q1"))
		Expect(err).NotTo(HaveOccurred())
		provider.err = errors.New("rate limited")
		_, err = s.Send(context.Background(), llm.NewTranscript(nil, "q2"))
		Expect(err).To(MatchError("rate limited"))

		lines := snapshots(&buf)
		Expect(lines).To(HaveLen(2))
		Expect(lines[0]["turn"]).To(BeEquivalentTo(1))
		Expect(lines[0]["action"]).To(Equal("response"))
		Expect(lines[0]["message_count"]).To(BeEquivalentTo(3))
		Expect(lines[1]["turn"]).To(BeEquivalentTo(2))
		Expect(lines[1]["action"]).To(Equal("error: rate limited"))
		Expect(lines[1]["message_count"]).To(BeEquivalentTo(2))
	})
})

var _ = Describe("TurnLogger", func() {
	It("truncates long content in the preview but keeps the full length", func() {
		var buf bytes.Buffer
		tl := llm.NewTurnLoggerTo(&buf)
		long := strings.Repeat("x", 500)
		tl.LogTurn("response", []llm.Message{llm.NewTextMessage(llm.RoleUser, long)})

		lines := snapshots(&buf)
		Expect(lines).To(HaveLen(1))
		msgs := lines[0]["messages"].([]any)
		m := msgs[0].(map[string]any)
		Expect(m["role"]).To(Equal("user"))
		Expect(m["content_length"]).To(BeEquivalentTo(500))
		Expect(m["content_preview"]).To(HaveLen(203))
		Expect(m["content_preview"]).To(HaveSuffix("..."))
	})
})

var _ = Describe("NewProvider", func() {
	It("rejects unknown providers", func() {
		_, err := llm.NewProvider(context.Background(), "cohere", "key")
		Expect(err).To(MatchError(ContainSubstring("unsupported model provider: cohere")))
	})

	It("builds the OpenAI and Anthropic clients without a network call", func() {
		p, err := llm.NewProvider(context.Background(), llm.ProviderOpenAI, "key")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&llm.OpenAIProvider{}))

		p, err = llm.NewProvider(context.Background(), llm.ProviderAnthropic, "key")
		Expect(err).NotTo(HaveOccurred())
		Expect(p).To(BeAssignableToTypeOf(&llm.AnthropicProvider{}))
	})
})
