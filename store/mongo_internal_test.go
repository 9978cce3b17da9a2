package store

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"nlcp/finance"
)

var _ = Describe("clientFromDoc", func() {
	It("accepts the numeric encodings MongoDB uses for amounts", func() {
		d128, err := primitive.ParseDecimal128("12345678901234567.89")
		Expect(err).NotTo(HaveOccurred())
		c, err := clientFromDoc(bson.M{
			"client_id":               "C1",
			"name":                    "Asha Mehta",
			"initial_portfolio_value": d128,
			"portfolio_by_preference": bson.A{
				bson.M{"type": "Equities", "value": int32(12)},
				bson.M{"type": "Gold", "value": 2.5},
			},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.InitialPortfolioValue.String()).To(Equal("12345678901234567.89"))
		Expect(c.PortfolioByPreference).To(HaveLen(2))
		Expect(c.PortfolioByPreference[1].Value.String()).To(Equal("2.5"))
	})

	It("leaves an absent amount unset", func() {
		c, err := clientFromDoc(bson.M{"client_id": "C2"})
		Expect(err).NotTo(HaveOccurred())
		Expect(c.InitialPortfolioValue).To(BeNil())
	})

	It("marks an undecodable amount as an invalid record", func() {
		_, err := clientFromDoc(bson.M{"client_id": "C3", "initial_portfolio_value": true})
		Expect(errors.Is(err, finance.ErrInvalidRecord)).To(BeTrue())
		Expect(err).To(MatchError(ContainSubstring("client C3: initial_portfolio_value")))
		Expect(err).To(MatchError(ContainSubstring("unsupported amount type bool")))
	})
})
