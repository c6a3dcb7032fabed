package scanning

import (
	"encoding/json"
	"fmt"
	"strings"
)

// expenseAnalysisPrompt is the shared prompt used by the LLM analyzers. It asks
// for the same typed field layout that Textract AnalyzeExpense returns.
const expenseAnalysisPrompt = `You are analyzing a receipt or invoice document. Carefully read all text in the image and report every expense field you can detect.

Summary fields use these type tags:
- VENDOR_NAME: the merchant, store, or business name, usually at the top.
- INVOICE_RECEIPT_DATE: the transaction or invoice date, exactly as printed.
- TOTAL: the final total or amount due, digits and decimal point only (e.g. 42.75).

Line item fields use these type tags:
- ITEM: the product or service description.
- PRICE: the line price, digits and decimal point only.
- QUANTITY: the quantity, if printed.

Return ONLY valid JSON in this exact format:
{
  "summary_fields": [{"type": "VENDOR_NAME", "value": "..."}],
  "line_item_groups": [
    {"line_items": [{"fields": [{"type": "ITEM", "value": "..."}, {"type": "PRICE", "value": "..."}]}]}
  ]
}

Important:
- Omit any field you cannot find rather than guessing
- Keep line items in the order they appear on the receipt
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// parseFieldSetJSON parses a field set from an LLM response
func parseFieldSetJSON(text string) (*FieldSet, error) {
	text = strings.TrimSpace(text)

	// Remove opening markdown code blocks
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSpace(text)

	// Models sometimes wrap the object in prose; keep the outermost braces
	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, fmt.Errorf("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, fmt.Errorf("invalid JSON object in response")
	}
	text = text[startIdx : endIdx+1]

	var fs FieldSet
	if err := json.Unmarshal([]byte(text), &fs); err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}

	for i := range fs.Summary {
		fs.Summary[i] = cleanField(fs.Summary[i])
	}
	for gi := range fs.Groups {
		for ii := range fs.Groups[gi].Items {
			fields := fs.Groups[gi].Items[ii].Fields
			for fi := range fields {
				fields[fi] = cleanField(fields[fi])
			}
		}
	}

	return compact(&fs), nil
}

func cleanField(f Field) Field {
	return Field{
		Type:  strings.ToUpper(strings.TrimSpace(f.Type)),
		Value: strings.TrimSpace(f.Value),
	}
}
