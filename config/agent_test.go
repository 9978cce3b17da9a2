package config_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"nlcp/config"
)

var _ = Describe("Agent", func() {

	Describe("parsing", func() {
		It("parses loop settings and resolves the model reference", func() {
			hcl := minimalVarsHCL() + minimalModelHCL() + `
agent {
  model          = models.gemini.gemini_2_0_flash
  max_iterations = 4
  call_timeout   = "5s"
  turn_timeout   = "1m"
  max_tokens     = 2048
  turn_log       = "turns.jsonl"
}
`
			_, f := writeFixture("config.hcl", hcl)
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			a := cfg.Agent
			Expect(a.Model).To(Equal("gemini_2_0_flash"))
			Expect(a.GetMaxIterations()).To(Equal(4))
			Expect(a.GetCallTimeout()).To(Equal(5 * time.Second))
			Expect(a.GetTurnTimeout()).To(Equal(time.Minute))
			Expect(a.MaxTokens).To(Equal(2048))
			Expect(a.TurnLog).To(Equal("turns.jsonl"))
		})
	})

	Describe("defaults", func() {
		It("applies loop defaults when unset", func() {
			a := &config.Agent{Model: "gemini_2_0_flash"}
			Expect(a.GetMaxIterations()).To(Equal(config.DefaultMaxIterations))
			Expect(a.GetCallTimeout()).To(Equal(config.DefaultCallTimeout))
			Expect(a.GetTurnTimeout()).To(Equal(config.DefaultTurnTimeout))
		})
	})

	Describe("Validate", func() {
		DescribeTable("rejects bad settings",
			func(a config.Agent, fragment string) {
				err := a.Validate()
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring(fragment))
			},
			Entry("missing model", config.Agent{}, "model is required"),
			Entry("negative bound", config.Agent{Model: "m", MaxIterations: -1}, "max_iterations"),
			Entry("negative max tokens", config.Agent{Model: "m", MaxTokens: -5}, "max_tokens"),
			Entry("unparseable call timeout", config.Agent{Model: "m", CallTimeout: "soon"}, "call_timeout"),
			Entry("zero turn timeout", config.Agent{Model: "m", TurnTimeout: "0s"}, "turn_timeout"),
		)
	})

	Describe("ResolveModel", func() {
		models := []config.Model{
			{Name: "openai", Provider: config.ProviderOpenAI, AllowedModels: []string{"gpt_4o"}, APIKey: "o"},
			{Name: "gemini", Provider: config.ProviderGemini, AllowedModels: []string{"gemini_2_0_flash"}, APIKey: "g"},
		}

		It("returns the owning model block and the provider model id", func() {
			a := &config.Agent{Model: "gemini_2_0_flash"}
			m, actual, err := a.ResolveModel(models)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Name).To(Equal("gemini"))
			Expect(m.APIKey).To(Equal("g"))
			Expect(actual).To(Equal("gemini-2.0-flash"))
		})

		It("fails for a key no model block allows", func() {
			a := &config.Agent{Model: "claude_sonnet_4"}
			_, _, err := a.ResolveModel(models)
			Expect(err).To(MatchError(ContainSubstring("no model config found")))
		})
	})
})
