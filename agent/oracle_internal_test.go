package agent

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("encodeInput", func() {
	It("encodes tool arguments as JSON", func() {
		Expect(encodeInput(map[string]any{"client_id": "C7"})).To(Equal(`{"client_id":"C7"}`))
	})

	It("falls back to an empty object", func() {
		Expect(encodeInput(nil)).To(Equal("{}"))
		Expect(encodeInput(map[string]any{"limit": math.Inf(1)})).To(Equal("{}"))
	})

	It("renders a step without input as an empty object", func() {
		Expect(formatStep(Step{Tool: "get_top_relationship_managers"})).To(Equal(
			"<ACTION>get_top_relationship_managers</ACTION>\n<ACTION_INPUT>{}</ACTION_INPUT>"))
	})
})
