package analysis

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Score", func() {
	var receipt NormalizedReceipt

	BeforeEach(func() {
		receipt = NormalizedReceipt{
			Merchant:    Merchant{Name: "Target"},
			Transaction: Transaction{TotalAmount: 42.10},
			Items: []LineItem{
				{ReceiptName: "Gizmo", Price: 1},
				{ReceiptName: "Milk", StandardName: "Milk", Price: 2},
				{ReceiptName: "Doohickey", Price: 3},
			},
		}
	})

	It("should score a known merchant with items but no location or date as high", func() {
		Expect(Score(receipt)).To(Equal(5))
		Expect(ConfidenceFor(Score(receipt))).To(Equal(ConfidenceHigh))
	})

	It("should reach the maximum with a location and date", func() {
		date := "2021-08-19"
		receipt.Merchant.State = "TX"
		receipt.Transaction.Date = &date
		Expect(Score(receipt)).To(Equal(MaxScore))
	})

	It("should score the fallback receipt as zero", func() {
		Expect(Score(Fallback())).To(BeZero())
	})

	DescribeTable("confidence levels",
		func(score int, want Confidence) {
			Expect(ConfidenceFor(score)).To(Equal(want))
		},
		Entry("maximum", 7, ConfidenceHigh),
		Entry("five", 5, ConfidenceHigh),
		Entry("four", 4, ConfidenceMedium),
		Entry("three", 3, ConfidenceMedium),
		Entry("two", 2, ConfidenceLow),
		Entry("zero", 0, ConfidenceLow),
	)
})
