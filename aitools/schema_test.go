package aitools_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"nlcp/aitools"
)

var _ = Describe("Schema", func() {
	schema := aitools.Schema{
		Type: aitools.TypeObject,
		Properties: aitools.PropertyMap{
			"risk":  {Type: aitools.TypeString, Enum: []string{"High", "Medium", "Low"}},
			"limit": {Type: aitools.TypeNumber, Default: float64(5)},
			"count": {Type: aitools.TypeInteger},
			"tags":  {Type: aitools.TypeArray, Items: &aitools.Property{Type: aitools.TypeString}},
		},
		Required: []string{"risk"},
	}

	Describe("Validate", func() {
		It("accepts well-typed arguments", func() {
			Expect(schema.Validate(map[string]any{"risk": "High", "limit": 3.9, "count": float64(2)})).To(Succeed())
		})

		It("rejects a missing required argument", func() {
			err := schema.Validate(map[string]any{"limit": 3})
			Expect(err).To(HaveOccurred())
			Expect(aitools.KindOf(err)).To(Equal(aitools.KindInvalidArgument))
			Expect(err.Error()).To(ContainSubstring(`"risk"`))
		})

		It("treats a null required argument as missing", func() {
			err := schema.Validate(map[string]any{"risk": nil})
			Expect(aitools.KindOf(err)).To(Equal(aitools.KindInvalidArgument))
		})

		It("rejects values outside an enum", func() {
			err := schema.Validate(map[string]any{"risk": "Extreme"})
			Expect(aitools.KindOf(err)).To(Equal(aitools.KindInvalidArgument))
		})

		It("rejects values of the wrong type", func() {
			Expect(schema.Validate(map[string]any{"risk": "Low", "limit": "five"})).NotTo(Succeed())
			Expect(schema.Validate(map[string]any{"risk": "Low", "count": 1.5})).NotTo(Succeed())
			Expect(schema.Validate(map[string]any{"risk": "Low", "tags": []any{"a", 1.0}})).NotTo(Succeed())
		})

		It("ignores undeclared arguments", func() {
			Expect(schema.Validate(map[string]any{"risk": "Low", "extra": true})).To(Succeed())
		})
	})

	Describe("ApplyDefaults", func() {
		It("fills absent optional properties without touching the input", func() {
			in := map[string]any{"risk": "Low"}
			out := schema.ApplyDefaults(in)
			Expect(out).To(HaveKeyWithValue("limit", float64(5)))
			Expect(in).NotTo(HaveKey("limit"))
		})

		It("keeps explicit values", func() {
			out := schema.ApplyDefaults(map[string]any{"risk": "Low", "limit": float64(2)})
			Expect(out).To(HaveKeyWithValue("limit", float64(2)))
		})
	})

	It("renders as JSON", func() {
		Expect(schema.String()).To(ContainSubstring(`"enum":["High","Medium","Low"]`))
	})
})
