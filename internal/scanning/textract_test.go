package scanning

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockTextract is a mock implementation of TextractAPI
type mockTextract struct {
	input  *textract.AnalyzeExpenseInput
	output *textract.AnalyzeExpenseOutput
	err    error
}

func (m *mockTextract) AnalyzeExpense(ctx context.Context, params *textract.AnalyzeExpenseInput, optFns ...func(*textract.Options)) (*textract.AnalyzeExpenseOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return m.output, nil
}

func expenseField(typ, value string) types.ExpenseField {
	return types.ExpenseField{
		Type:           &types.ExpenseType{Text: aws.String(typ)},
		ValueDetection: &types.ExpenseDetection{Text: aws.String(value)},
	}
}

var _ = Describe("Textract", func() {
	var (
		client   *mockTextract
		analyzer *Textract
		fs       *FieldSet
		err      error
	)

	BeforeEach(func() {
		client = &mockTextract{output: &textract.AnalyzeExpenseOutput{}}
		analyzer = NewTextractWithClient(client)
	})

	JustBeforeEach(func() {
		fs, err = analyzer.Analyze(context.Background(), "pro-receipts", "Receipts/lunch.pdf")
	})

	It("should reference the object in place", func() {
		Expect(aws.ToString(client.input.Document.S3Object.Bucket)).To(Equal("pro-receipts"))
		Expect(aws.ToString(client.input.Document.S3Object.Name)).To(Equal("Receipts/lunch.pdf"))
	})

	When("textract returns an expense document", func() {
		BeforeEach(func() {
			client.output = &textract.AnalyzeExpenseOutput{
				ExpenseDocuments: []types.ExpenseDocument{
					{
						SummaryFields: []types.ExpenseField{
							expenseField("VENDOR_NAME", "Cafe X"),
							expenseField("TOTAL", "12.50"),
							{Type: &types.ExpenseType{Text: aws.String("TAX")}},
						},
						LineItemGroups: []types.LineItemGroup{
							{
								LineItems: []types.LineItemFields{
									{LineItemExpenseFields: []types.ExpenseField{
										expenseField("ITEM", "Coffee"),
										expenseField("PRICE", "3.00"),
									}},
									{LineItemExpenseFields: []types.ExpenseField{
										{ValueDetection: &types.ExpenseDetection{Text: aws.String("orphan")}},
									}},
								},
							},
						},
					},
					{
						SummaryFields: []types.ExpenseField{expenseField("TOTAL", "99.99")},
					},
				},
			}
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should map the summary fields of the first document only", func() {
			Expect(fs.Summary).To(Equal([]Field{
				{Type: FieldVendorName, Value: "Cafe X"},
				{Type: FieldTotal, Value: "12.50"},
			}))
		})

		It("should keep line items grouped and drop untyped fields", func() {
			Expect(fs.Groups).To(HaveLen(1))
			Expect(fs.Groups[0].Items).To(HaveLen(2))
			Expect(fs.Groups[0].Items[0].Fields).To(Equal([]Field{
				{Type: FieldItem, Value: "Coffee"},
				{Type: FieldPrice, Value: "3.00"},
			}))
			Expect(fs.Groups[0].Items[1].Fields).To(BeEmpty())
		})
	})

	When("textract finds no expense documents", func() {
		It("should return an empty field set", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(fs.Summary).To(BeEmpty())
			Expect(fs.Groups).To(BeEmpty())
		})
	})

	When("textract fails", func() {
		BeforeEach(func() {
			client.err = errors.New("throttled")
		})

		It("returns the error", func() {
			Expect(err).To(MatchError(ContainSubstring("throttled")))
			Expect(fs).To(BeNil())
		})
	})
})
