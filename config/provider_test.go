package config_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"nlcp/config"
)

var _ = Describe("ToolProvider", func() {

	It("defaults protocol to plugin and catalog to the block name", func() {
		_, f := writeFixture("config.hcl", `provider "clients" {}`)
		cfg, err := config.LoadFile(f)
		Expect(err).NotTo(HaveOccurred())
		p := cfg.Providers[0]
		Expect(p.Protocol).To(Equal(config.ProtocolPlugin))
		Expect(p.Tools).To(Equal(config.CatalogClients))
		Expect(p.CommandArgs()).To(Equal([]string{"provider", "clients", "--protocol", "plugin"}))
	})

	It("parses an explicit command with env taken from vars", func() {
		hcl := `
variable "dsn" { default = "postgres://localhost/wealth" }
provider "pf" {
  protocol = "mcp"
  tools    = "portfolios"
  command  = "/usr/local/bin/nlcp"
  args     = ["provider", "portfolios", "--protocol", "mcp"]
  env = {
    NLCP_RELATIONAL_DSN = vars.dsn
  }
}
`
		_, f := writeFixture("config.hcl", hcl)
		cfg, err := config.LoadFile(f)
		Expect(err).NotTo(HaveOccurred())
		p := cfg.Providers[0]
		Expect(p.Name).To(Equal("pf"))
		Expect(p.Tools).To(Equal(config.CatalogPortfolios))
		Expect(p.Command).To(Equal("/usr/local/bin/nlcp"))
		Expect(p.CommandArgs()).To(HaveLen(4))
		Expect(p.Env).To(HaveKeyWithValue("NLCP_RELATIONAL_DSN", "postgres://localhost/wealth"))
		Expect(p.Validate()).To(Succeed())
	})

	DescribeTable("Validate",
		func(p config.ToolProvider, fragment string) {
			err := p.Validate()
			if fragment == "" {
				Expect(err).NotTo(HaveOccurred())
				return
			}
			Expect(err).To(MatchError(ContainSubstring(fragment)))
		},
		Entry("plugin clients", config.ToolProvider{Name: "c", Protocol: "plugin", Tools: "clients"}, ""),
		Entry("local portfolios", config.ToolProvider{Name: "p", Protocol: "local", Tools: "portfolios"}, ""),
		Entry("unknown protocol", config.ToolProvider{Name: "c", Protocol: "grpc", Tools: "clients"}, "unknown protocol"),
		Entry("unknown catalog", config.ToolProvider{Name: "c", Protocol: "mcp", Tools: "weather"}, "unknown tool catalog"),
		Entry("local with command", config.ToolProvider{Name: "c", Protocol: "local", Tools: "clients", Command: "x"}, "in-process"),
	)
})
