package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"nlcp/config"
)

var _ = Describe("Config Loading", func() {

	Describe("Load", func() {
		It("routes to LoadFile for a file path", func() {
			_, f := writeFixture("vars.hcl", `variable "x" { default = "val" }`)
			cfg, err := config.Load(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Variables).To(HaveLen(1))
			Expect(cfg.Variables[0].Name).To(Equal("x"))
		})

		It("routes to LoadDir for a directory path", func() {
			dir := writeFixtures(map[string]string{
				"variables.hcl": minimalVarsHCL(),
				"models.hcl":    minimalModelHCL(),
			})
			cfg, err := config.Load(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Variables).To(HaveLen(1))
			Expect(cfg.Models).To(HaveLen(1))
		})

		It("returns error for nonexistent path", func() {
			_, err := config.Load("/nonexistent/path/config.hcl")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("LoadFile", func() {
		It("parses a single HCL file with every block type", func() {
			hcl := fullBaseHCL() + `
storage {
  relational {
    backend = "sqlite"
    dsn     = "portfolios.db"
  }
}
server {
  listen = ":9000"
}
`
			_, f := writeFixture("config.hcl", hcl)
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Variables).To(HaveLen(1))
			Expect(cfg.Models).To(HaveLen(1))
			Expect(cfg.Providers).To(HaveLen(2))
			Expect(cfg.Agent).NotTo(BeNil())
			Expect(cfg.Agent.Model).To(Equal("gemini_2_0_flash"))
			Expect(cfg.Storage.Relational.Backend).To(Equal(config.RelationalBackendSQLite))
			Expect(cfg.Server.Listen).To(Equal(":9000"))
		})

		It("fills defaults when optional blocks are absent", func() {
			_, f := writeFixture("config.hcl", fullBaseHCL())
			cfg, err := config.LoadFile(f)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Storage.Documents.Backend).To(Equal(config.DocumentBackendMemory))
			Expect(cfg.Storage.Relational.Backend).To(Equal(config.RelationalBackendMemory))
			Expect(cfg.Server.Listen).To(Equal(config.DefaultListen))
			Expect(cfg.Server.AllowedOrigins).To(ConsistOf("*"))
		})

		It("returns parse error for invalid HCL syntax", func() {
			_, f := writeFixture("bad.hcl", `model { missing label and brace`)
			_, err := config.LoadFile(f)
			Expect(err).To(HaveOccurred())
		})

		It("rejects unknown top-level blocks", func() {
			_, f := writeFixture("config.hcl", `mission "m" {}`)
			_, err := config.LoadFile(f)
			Expect(err).To(HaveOccurred())
		})

		It("rejects a second agent block", func() {
			_, f := writeFixture("config.hcl", fullBaseHCL()+minimalAgentHCL())
			_, err := config.LoadFile(f)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("agent block declared 2 times"))
		})

		It("fails when an agent references an undeclared model", func() {
			hcl := minimalVarsHCL() + minimalModelHCL() + `
agent {
  model = models.openai.gpt_4o
}
`
			_, f := writeFixture("config.hcl", hcl)
			_, err := config.LoadFile(f)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("LoadDir", func() {
		It("loads all .hcl files from the directory and ignores others", func() {
			dir := writeFixtures(map[string]string{
				"variables.hcl": minimalVarsHCL(),
				"models.hcl":    minimalModelHCL(),
				"agent.hcl":     minimalAgentHCL(),
				"providers.hcl": minimalProvidersHCL(),
				"README.md":     "not config",
			})
			cfg, err := config.LoadDir(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Models).To(HaveLen(1))
			Expect(cfg.Providers).To(HaveLen(2))
			Expect(cfg.Agent).NotTo(BeNil())
		})

		It("resolves cross-file references", func() {
			dir := writeFixtures(map[string]string{
				"a_agent.hcl":  minimalAgentHCL(),
				"z_models.hcl": minimalVarsHCL() + minimalModelHCL(),
			})
			cfg, err := config.LoadDir(dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Agent.Model).To(Equal("gemini_2_0_flash"))
			Expect(cfg.Models[0].APIKey).To(Equal("test-key-123"))
		})

		It("fails for a directory without .hcl files", func() {
			dir := GinkgoT().TempDir()
			Expect(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644)).To(Succeed())
			_, err := config.LoadDir(dir)
			Expect(err).To(HaveOccurred())
		})
	})
})
