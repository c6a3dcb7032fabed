package scanning

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
)

// TextractAPI is the subset of the Textract client used by the analyzer
type TextractAPI interface {
	AnalyzeExpense(ctx context.Context, params *textract.AnalyzeExpenseInput, optFns ...func(*textract.Options)) (*textract.AnalyzeExpenseOutput, error)
}

// Textract implements the Analyzer interface using AWS Textract AnalyzeExpense.
// The document is read by Textract in place, so no bytes pass through here.
type Textract struct {
	client TextractAPI
}

// NewTextract creates a new Textract analyzer from an AWS config
func NewTextract(cfg aws.Config) *Textract {
	return NewTextractWithClient(textract.NewFromConfig(cfg))
}

// NewTextractWithClient creates a new Textract analyzer with a custom client for testing
func NewTextractWithClient(client TextractAPI) *Textract {
	return &Textract{client: client}
}

// Analyze runs AnalyzeExpense on bucket/key and flattens the first expense document
func (t *Textract) Analyze(ctx context.Context, bucket, key string) (*FieldSet, error) {
	resp, err := t.client.AnalyzeExpense(ctx, &textract.AnalyzeExpenseInput{
		Document: &types.Document{
			S3Object: &types.S3Object{
				Bucket: aws.String(bucket),
				Name:   aws.String(key),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("analyzing expense: %w", err)
	}

	fs := &FieldSet{}
	if len(resp.ExpenseDocuments) == 0 {
		return fs, nil
	}

	// Receipts are single documents; anything past the first is ignored
	doc := resp.ExpenseDocuments[0]
	fs.Summary = expenseFields(doc.SummaryFields)
	for _, group := range doc.LineItemGroups {
		g := LineItemGroup{Items: make([]LineItemFields, 0, len(group.LineItems))}
		for _, item := range group.LineItems {
			g.Items = append(g.Items, LineItemFields{Fields: expenseFields(item.LineItemExpenseFields)})
		}
		fs.Groups = append(fs.Groups, g)
	}

	return compact(fs), nil
}

// Close is a no-op; the AWS client holds no resources
func (t *Textract) Close() error {
	return nil
}

func expenseFields(in []types.ExpenseField) []Field {
	out := make([]Field, 0, len(in))
	for _, f := range in {
		var field Field
		if f.Type != nil {
			field.Type = aws.ToString(f.Type.Text)
		}
		if f.ValueDetection != nil {
			field.Value = aws.ToString(f.ValueDetection.Text)
		}
		out = append(out, field)
	}
	return out
}
