package receipt

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"

	"github.com/zombor/receipt-pipeline/internal/logger"
)

const noItemsLine = "No items detected"

var notificationHTML = template.Must(template.New("notification").Funcs(template.FuncMap{"itemLine": itemLine}).Parse(`<html>
  <body>
    <h2>Receipt Processed</h2>
    <p><strong>Receipt ID:</strong> {{.ID}}</p>
    <p><strong>Vendor:</strong> {{.Vendor}}</p>
    <p><strong>Date:</strong> {{.Date}}</p>
    <p><strong>Total:</strong> ${{.Total}}</p>
    <p><strong>Source:</strong> {{.SourcePath}}</p>
    <h3>Items:</h3>
    <ul>{{range .Items}}<li>{{itemLine .}}</li>{{else}}<li>` + noItemsLine + `</li>{{end}}</ul>
  </body>
</html>
`))

// Message is a rendered email
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers a rendered message
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// Notifier emails a summary of each processed receipt to a fixed recipient
type Notifier struct {
	mailer    Mailer
	sender    string
	recipient string
}

// NewNotifier creates a Notifier sending from sender to recipient
func NewNotifier(mailer Mailer, sender, recipient string) *Notifier {
	return &Notifier{
		mailer:    mailer,
		sender:    sender,
		recipient: recipient,
	}
}

// Notify sends the receipt summary. Failures are logged and never returned.
func (n *Notifier) Notify(ctx context.Context, receipt *Receipt) {
	log := logger.FromContext(ctx).With("receipt_id", receipt.ID)

	msg, err := n.Render(receipt)
	if err != nil {
		log.Error("Failed to render notification", "error", fmt.Errorf("%w: %w", ErrNotify, err))
		return
	}

	if err := n.mailer.Send(ctx, msg); err != nil {
		log.Error("Failed to send notification", "recipient", n.recipient, "error", fmt.Errorf("%w: %w", ErrNotify, err))
		return
	}

	log.Info("Notification sent", "recipient", n.recipient)
}

// Render builds the email for a receipt
func (n *Notifier) Render(receipt *Receipt) (Message, error) {
	var html bytes.Buffer
	if err := notificationHTML.Execute(&html, receipt); err != nil {
		return Message{}, fmt.Errorf("rendering html: %w", err)
	}

	return Message{
		From:    n.sender,
		To:      n.recipient,
		Subject: fmt.Sprintf("Receipt Processed: %s - $%s", receipt.Vendor, receipt.Total),
		HTML:    html.String(),
		Text:    renderText(receipt),
	}, nil
}

func itemLine(item LineItem) string {
	return fmt.Sprintf("%s - $%s x %s", item.Name, item.Price, item.WithDefaults().Quantity)
}

func renderText(receipt *Receipt) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Receipt Processed\n\n")
	fmt.Fprintf(&b, "Receipt ID: %s\n", receipt.ID)
	fmt.Fprintf(&b, "Vendor: %s\n", receipt.Vendor)
	fmt.Fprintf(&b, "Date: %s\n", receipt.Date)
	fmt.Fprintf(&b, "Total: $%s\n", receipt.Total)
	fmt.Fprintf(&b, "Source: %s\n\n", receipt.SourcePath)
	b.WriteString("Items:\n")
	if len(receipt.Items) == 0 {
		fmt.Fprintf(&b, "- %s\n", noItemsLine)
	}
	for _, item := range receipt.Items {
		fmt.Fprintf(&b, "- %s\n", itemLine(item))
	}
	return b.String()
}
