package analysis

import (
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ExtractJSON", func() {
	var (
		input string
		out   string
		err   error
	)

	JustBeforeEach(func() {
		out, err = ExtractJSON(input)
	})

	When("the response is plain JSON", func() {
		BeforeEach(func() {
			input = `{"merchant": {"name": "CVS"}}`
		})

		It("should return it unchanged", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(input))
		})
	})

	When("the response is wrapped in a markdown code block", func() {
		BeforeEach(func() {
			input = "```json\n{\"merchant\": {}}\n```"
		})

		It("should strip the fence", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(`{"merchant": {}}`))
		})
	})

	When("the response has prose around the object", func() {
		BeforeEach(func() {
			input = "Here is the receipt: {\"items\": []} Let me know!"
		})

		It("should return only the object", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal(`{"items": []}`))
		})
	})

	When("the response has no object", func() {
		BeforeEach(func() {
			input = "I could not read this receipt."
		})

		It("should return ErrNoJSON", func() {
			Expect(err).To(MatchError(ErrNoJSON))
		})
	})

	When("the braces are reversed", func() {
		BeforeEach(func() {
			input = "} oops {"
		})

		It("should return ErrNoJSON", func() {
			Expect(err).To(MatchError(ErrNoJSON))
		})
	})
})

var _ = Describe("Analyze", func() {
	var (
		response string
		result   Result
	)

	BeforeEach(func() {
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
	})

	JustBeforeEach(func() {
		result = Analyze(response)
	})

	When("the response is a complete receipt", func() {
		BeforeEach(func() {
			response = "```json\n" + targetPayload + "\n```"
		})

		It("should succeed with high confidence", func() {
			Expect(result.Status).To(Equal(StatusSuccess))
			Expect(result.Score).To(Equal(MaxScore))
			Expect(result.Confidence).To(Equal(ConfidenceHigh))
			Expect(result.Err).NotTo(HaveOccurred())
		})

		It("should report no shape problems", func() {
			Expect(result.Warnings).To(BeEmpty())
		})
	})

	When("the response has the wrong shape", func() {
		BeforeEach(func() {
			response = `{"merchant": "Target", "items": {}}`
		})

		It("should still succeed", func() {
			Expect(result.Status).To(Equal(StatusSuccess))
			Expect(result.Receipt.Merchant.Name).To(Equal("Unknown"))
		})

		It("should list the shape problems", func() {
			Expect(result.Warnings).NotTo(BeEmpty())
		})
	})

	When("the response holds no JSON", func() {
		BeforeEach(func() {
			response = "Sorry, I can't help with that."
		})

		It("should fail with the fallback receipt", func() {
			Expect(result.Status).To(Equal(StatusError))
			Expect(result.Confidence).To(Equal(ConfidenceFailed))
			Expect(result.Err).To(MatchError(ErrNoJSON))
			Expect(result.ErrorMessage()).NotTo(BeEmpty())
			Expect(result.Receipt).To(Equal(Fallback()))
		})
	})

	When("the JSON is broken", func() {
		BeforeEach(func() {
			response = `{"merchant": {"name": "Target",}`
		})

		It("should fail", func() {
			Expect(result.Status).To(Equal(StatusError))
			Expect(result.Err).To(HaveOccurred())
			Expect(result.Receipt.Merchant.Name).To(Equal("Unknown"))
		})
	})
})
