package receipt

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/gbytes"
)

// mockSES is a mock implementation of SESAPI
type mockSES struct {
	input *sesv2.SendEmailInput
	err   error
}

func (m *mockSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.input = params
	if m.err != nil {
		return nil, m.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

var _ = Describe("Notifier", func() {
	var (
		mailer   *mockMailer
		notifier *Notifier
		receipt  *Receipt
	)

	BeforeEach(func() {
		mailer = &mockMailer{}
		notifier = NewNotifier(mailer, "receipts@example.com", "me@example.com")
		receipt = &Receipt{
			ID:         "receipt-1",
			Date:       "2024-03-20",
			Vendor:     "Cafe X",
			Total:      "12.50",
			Items:      []LineItem{{Name: "Coffee", Price: "3.00", Quantity: "2"}},
			SourcePath: "s3://pro-receipts/Receipts/r.pdf",
		}
	})

	Describe("Render", func() {
		var (
			msg Message
			err error
		)

		JustBeforeEach(func() {
			msg, err = notifier.Render(receipt)
		})

		It("should address the message", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(msg.From).To(Equal("receipts@example.com"))
			Expect(msg.To).To(Equal("me@example.com"))
		})

		It("should put vendor and total in the subject", func() {
			Expect(msg.Subject).To(Equal("Receipt Processed: Cafe X - $12.50"))
		})

		It("should list every field and item in the html body", func() {
			Expect(msg.HTML).To(ContainSubstring("receipt-1"))
			Expect(msg.HTML).To(ContainSubstring("2024-03-20"))
			Expect(msg.HTML).To(ContainSubstring("$12.50"))
			Expect(msg.HTML).To(ContainSubstring("s3://pro-receipts/Receipts/r.pdf"))
			Expect(msg.HTML).To(ContainSubstring("<li>Coffee - $3.00 x 2</li>"))
		})

		It("should carry the same content as text", func() {
			Expect(msg.Text).To(ContainSubstring("Vendor: Cafe X"))
			Expect(msg.Text).To(ContainSubstring("- Coffee - $3.00 x 2"))
		})

		When("there are no items", func() {
			BeforeEach(func() {
				receipt.Items = []LineItem{}
			})

			It("should say so", func() {
				Expect(msg.HTML).To(ContainSubstring("<li>No items detected</li>"))
				Expect(msg.Text).To(ContainSubstring("- No items detected"))
			})
		})

		When("an item has no quantity", func() {
			BeforeEach(func() {
				receipt.Items = []LineItem{{Name: "Tea", Price: "2.00"}}
			})

			It("should show a quantity of 1", func() {
				Expect(msg.Text).To(ContainSubstring("- Tea - $2.00 x 1"))
			})
		})

		When("the vendor contains markup", func() {
			BeforeEach(func() {
				receipt.Vendor = "<b>Shop</b>"
			})

			It("should escape it in the html body", func() {
				Expect(msg.HTML).To(ContainSubstring("&lt;b&gt;Shop&lt;/b&gt;"))
			})
		})
	})

	Describe("Notify", func() {
		var logs *gbytes.Buffer

		BeforeEach(func() {
			logs = gbytes.NewBuffer()
			previous := slog.Default()
			slog.SetDefault(slog.New(slog.NewTextHandler(logs, nil)))
			DeferCleanup(func() { slog.SetDefault(previous) })
		})

		JustBeforeEach(func() {
			notifier.Notify(context.Background(), receipt)
		})

		When("sending succeeds", func() {
			It("should send one message", func() {
				Expect(mailer.sent).To(HaveLen(1))
			})

			It("should log the delivery", func() {
				Expect(logs).To(gbytes.Say("Notification sent"))
			})
		})

		When("sending fails", func() {
			BeforeEach(func() {
				mailer.err = errors.New("throttled")
			})

			It("should log the failure with the receipt id", func() {
				Expect(logs).To(gbytes.Say(`Failed to send notification.*receipt_id=receipt-1`))
				Expect(string(logs.Contents())).To(ContainSubstring("throttled"))
			})
		})
	})
})

var _ = Describe("SESMailer", func() {
	var (
		client *mockSES
		mailer *SESMailer
		err    error
	)

	BeforeEach(func() {
		client = &mockSES{}
		mailer = NewSESMailerWithClient(client)
	})

	JustBeforeEach(func() {
		err = mailer.Send(context.Background(), Message{
			From:    "receipts@example.com",
			To:      "me@example.com",
			Subject: "Receipt Processed: Cafe X - $12.50",
			HTML:    "<p>hi</p>",
			Text:    "hi",
		})
	})

	When("SES accepts the message", func() {
		It("should send both bodies in UTF-8", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(aws.ToString(client.input.FromEmailAddress)).To(Equal("receipts@example.com"))
			Expect(client.input.Destination.ToAddresses).To(Equal([]string{"me@example.com"}))
			simple := client.input.Content.Simple
			Expect(aws.ToString(simple.Subject.Data)).To(Equal("Receipt Processed: Cafe X - $12.50"))
			Expect(aws.ToString(simple.Body.Html.Data)).To(Equal("<p>hi</p>"))
			Expect(aws.ToString(simple.Body.Text.Data)).To(Equal("hi"))
			Expect(aws.ToString(simple.Body.Text.Charset)).To(Equal("UTF-8"))
		})
	})

	When("SES rejects the message", func() {
		BeforeEach(func() {
			client.err = errors.New("email address not verified")
		})

		It("should return the error", func() {
			Expect(err).To(MatchError(ContainSubstring("email address not verified")))
		})
	})
})

var _ = Describe("LogMailer", func() {
	It("should log the message and succeed", func() {
		logs := gbytes.NewBuffer()
		previous := slog.Default()
		slog.SetDefault(slog.New(slog.NewTextHandler(logs, nil)))
		DeferCleanup(func() { slog.SetDefault(previous) })

		Expect(LogMailer{}.Send(context.Background(), Message{To: "me@example.com", Subject: "hello"})).To(Succeed())
		Expect(logs).To(gbytes.Say(`to=me@example.com subject=hello`))
	})
})
