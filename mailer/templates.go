package mailer

import (
	"fmt"
	"html"
	"strings"

	"github.com/shopspring/decimal"
)

type ConfirmationLine struct {
	Name     string
	Quantity int
	Price    decimal.Decimal
}

type ConfirmationData struct {
	CustomerName   string
	Email          string
	OrderReference string
	InvoiceNumber  string
	Lines          []ConfirmationLine
	Subtotal       decimal.Decimal
	DeliveryCost   decimal.Decimal
	Total          decimal.Decimal
}

// OrderConfirmation renders the message sent after a successful checkout.
func OrderConfirmation(d ConfirmationData) Message {
	var text, body strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\nThank you for your order %s.\n\n", d.CustomerName, d.OrderReference)
	fmt.Fprintf(&body, "<p>Hi %s,</p><p>Thank you for your order <strong>%s</strong>.</p><table>",
		html.EscapeString(d.CustomerName), html.EscapeString(d.OrderReference))

	for _, l := range d.Lines {
		line := l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		fmt.Fprintf(&text, "%d x %s  %s\n", l.Quantity, l.Name, line.StringFixed(2))
		fmt.Fprintf(&body, "<tr><td>%d x %s</td><td>%s</td></tr>", l.Quantity, html.EscapeString(l.Name), line.StringFixed(2))
	}

	fmt.Fprintf(&text, "\nSubtotal: %s\nDelivery: %s\nTotal: %s\n",
		d.Subtotal.StringFixed(2), d.DeliveryCost.StringFixed(2), d.Total.StringFixed(2))
	fmt.Fprintf(&body, "</table><p>Subtotal: %s<br>Delivery: %s<br><strong>Total: %s</strong></p>",
		d.Subtotal.StringFixed(2), d.DeliveryCost.StringFixed(2), d.Total.StringFixed(2))

	if d.InvoiceNumber != "" {
		fmt.Fprintf(&text, "Invoice: %s\n", d.InvoiceNumber)
		fmt.Fprintf(&body, "<p>Invoice: %s</p>", html.EscapeString(d.InvoiceNumber))
	}

	return Message{
		To:      []string{d.Email},
		Subject: "Order confirmation " + d.OrderReference,
		Text:    text.String(),
		HTML:    body.String(),
	}
}
