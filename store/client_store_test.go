package store_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"nlcp/finance"
	"nlcp/store"
)

var _ = Describe("MemoryClientStore", func() {
	var (
		ctx     context.Context
		clients *store.MemoryClientStore
		repo    finance.ClientRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		clients = store.NewMemoryClientStore(store.SampleFixtures().Clients)
		var err error
		repo, err = clients.Open(ctx)
		Expect(err).NotTo(HaveOccurred())
	})

	It("counts sessions", func() {
		Expect(clients.Opens()).To(Equal(1))
	})

	It("fails Open when told to", func() {
		clients.FailWith(errors.New("connection refused"))
		_, err := clients.Open(ctx)
		Expect(err).To(MatchError("connection refused"))
	})

	It("matches names case-insensitively", func() {
		c, err := repo.FindOne(ctx, finance.ClientFilter{Field: finance.FieldName, Value: "mehta", Match: finance.MatchContains})
		Expect(err).NotTo(HaveOccurred())
		Expect(c).NotTo(BeNil())
		Expect(c.ClientID).To(Equal("C1"))
	})

	It("matches regex metacharacters literally", func() {
		found, err := repo.Find(ctx, finance.ClientFilter{Field: finance.FieldName, Value: "(Actor)", Match: finance.MatchContains})
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(2))

		found, err = repo.Find(ctx, finance.ClientFilter{Field: finance.FieldName, Value: ".*", Match: finance.MatchContains})
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeEmpty())
	})

	It("matches whole words only", func() {
		found, err := repo.Find(ctx, finance.ClientFilter{Field: finance.FieldName, Value: "act", Match: finance.MatchWord})
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeEmpty())
	})

	It("matches any element of an array field", func() {
		found, err := repo.Find(ctx, finance.ClientFilter{Field: finance.FieldInvestmentPreferences, Value: "gold", Match: finance.MatchContains})
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(2))
	})

	It("requires a full match for whole-value filters", func() {
		found, err := repo.Find(ctx, finance.ClientFilter{Field: finance.FieldRelationshipManager, Value: "asha", Match: finance.MatchWhole})
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeEmpty())

		found, err = repo.Find(ctx, finance.ClientFilter{Field: finance.FieldRelationshipManager, Value: "asha rao", Match: finance.MatchWhole})
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(2))
	})

	It("counts clients per manager, largest first", func() {
		counts, err := repo.CountByManager(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(counts).To(Equal([]finance.ManagerCount{
			{RelationshipManager: "Karan Shah", ClientCount: 3},
			{RelationshipManager: "Asha Rao", ClientCount: 2},
			{RelationshipManager: "Neha Gupta", ClientCount: 2},
		}))
	})

	It("ranks holdings within one investment type", func() {
		top, err := repo.TopHoldings(ctx, "real estate", 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(top).To(HaveLen(2))
		Expect(top[0].ClientID).To(Equal("C5"))
		Expect(top[0].HoldingValue.String()).To(Equal("30.25"))
		Expect(top[1].ClientID).To(Equal("C3"))
	})

	It("matches part of an investment type", func() {
		top, err := repo.TopHoldings(ctx, "estate", 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(top).To(HaveLen(3))
		for _, h := range top {
			Expect(h.InvestmentType).To(Equal("Real Estate"))
		}

		top, err = repo.TopHoldings(ctx, "EQUIT", 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(top).To(HaveLen(3))
	})
})

var _ = Describe("Fixtures", func() {
	It("rejects duplicate snapshots", func() {
		_, err := store.LoadFixtures("testdata/duplicate.json")
		Expect(err).To(MatchError(ContainSubstring("duplicate portfolio snapshot for client C1")))
	})

	It("falls back to the sample data", func() {
		f, err := store.LoadFixtures("")
		Expect(err).NotTo(HaveOccurred())
		Expect(f.Clients).To(HaveLen(7))
	})
})
