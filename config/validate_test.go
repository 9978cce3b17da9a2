package config_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"nlcp/config"
)

var _ = Describe("LoadAndValidate (end-to-end)", func() {

	Context("single-file config", func() {
		It("succeeds with a complete valid config", func() {
			dir, _ := writeFixture("all.hcl", fullBaseHCL())
			cfg, err := config.LoadAndValidate(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Variables).To(HaveLen(1))
			Expect(cfg.Models).To(HaveLen(1))
			Expect(cfg.Providers).To(HaveLen(2))
			Expect(cfg.Agent.GetMaxIterations()).To(Equal(10))
		})
	})

	Context("multi-file directory", func() {
		It("succeeds loading separate files", func() {
			dir := writeFixtures(map[string]string{
				"variables.hcl": minimalVarsHCL(),
				"models.hcl":    minimalModelHCL(),
				"providers.hcl": minimalProvidersHCL(),
				"agent.hcl":     minimalAgentHCL(),
				"storage.hcl": `
storage {
  relational {
    backend = "sqlite"
  }
}
`,
			})
			cfg, err := config.LoadAndValidate(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage.Relational.DSN).NotTo(BeEmpty())
		})
	})

	Context("errors", func() {
		DescribeTable("rejects an invalid config",
			func(hcl string, fragments ...string) {
				dir, _ := writeFixture("config.hcl", hcl)
				_, err := config.LoadAndValidate(dir)
				Expect(err).To(HaveOccurred())
				for _, f := range fragments {
					Expect(err.Error()).To(ContainSubstring(f))
				}
			},
			Entry("secret variable with a default", fullBaseHCL()+`
variable "bad_secret" {
  secret  = true
  default = "oops"
}
`, "secret", "bad_secret"),
			Entry("no providers", minimalVarsHCL()+minimalModelHCL()+minimalAgentHCL(), "at least one provider"),
			Entry("duplicate provider", fullBaseHCL()+`provider "clients" {}`, "declared more than once"),
			Entry("provider with unknown protocol", fullBaseHCL()+`
provider "extra" {
  protocol = "soap"
  tools    = "clients"
}
`, "extra", "unknown protocol"),
			Entry("missing agent", minimalVarsHCL()+minimalModelHCL()+minimalProvidersHCL(), "agent block is required"),
			Entry("bad turn timeout", minimalVarsHCL()+minimalModelHCL()+minimalProvidersHCL()+`
agent {
  model        = models.gemini.gemini_2_0_flash
  turn_timeout = "forever"
}
`, "turn_timeout"),
			Entry("mongo without uri", fullBaseHCL()+`
storage {
  documents {
    backend = "mongo"
  }
}
`, "requires 'uri'"),
			Entry("bad server timeout", fullBaseHCL()+`
server {
  request_timeout = "-1s"
}
`, "server", "request_timeout"),
			Entry("unsupported model key", minimalVarsHCL()+`
model "gemini" {
  provider       = "gemini"
  allowed_models = ["gemini_9_ultra"]
  api_key        = vars.test_api_key
}
agent {
  model = models.gemini.gemini_9_ultra
}
`+minimalProvidersHCL(), "Unsupported model"),
		)
	})
})
