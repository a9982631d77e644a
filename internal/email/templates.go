package email

import (
	"fmt"
	"html"
	"strings"

	"github.com/example/pickup-orders/internal/order"
)

// BuildConfirmationBody builds the HTML body for an order confirmation.
// Prices come from the frozen snapshot; catalog edits after creation
// never change what the customer sees here.
func BuildConfirmationBody(o *order.Order) string {
	var rows strings.Builder
	for _, l := range o.Lines {
		rows.WriteString(fmt.Sprintf(
			`<tr>
				<td style="padding: 10px; border-bottom: 1px solid #eee;">%s</td>
				<td style="padding: 10px; border-bottom: 1px solid #eee; text-align: center;">%d</td>
				<td style="padding: 10px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
				<td style="padding: 10px; border-bottom: 1px solid #eee; text-align: right;">%s</td>
			</tr>`,
			html.EscapeString(l.ItemID),
			l.Qty,
			FormatMoney(l.UnitPrice),
			FormatMoney(l.Qty*l.UnitPrice),
		))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 22px;">Thanks for your order, %s</h1>
	<p>We are holding your items. Pick them up at <strong>%s</strong> on <strong>%s</strong>.</p>

	<div style="background: #f8f9fa; padding: 12px; border-radius: 5px; margin: 16px 0;">
		<p style="margin: 0; font-size: 13px; color: #666;">Order reference</p>
		<p style="margin: 4px 0 0 0; font-weight: bold; font-family: monospace;">%s</p>
	</div>

	<table style="width: 100%%; border-collapse: collapse; margin: 16px 0;">
		<thead>
			<tr style="border-bottom: 2px solid #333;">
				<th style="padding: 10px; text-align: left;">Item</th>
				<th style="padding: 10px; text-align: center;">Qty</th>
				<th style="padding: 10px; text-align: right;">Price</th>
				<th style="padding: 10px; text-align: right;">Subtotal</th>
			</tr>
		</thead>
		<tbody>%s</tbody>
		<tfoot>
			<tr>
				<td colspan="3" style="padding: 10px; text-align: right; font-weight: bold;">Total</td>
				<td style="padding: 10px; text-align: right; font-weight: bold;">%s</td>
			</tr>
		</tfoot>
	</table>
</body>
</html>`,
		html.EscapeString(o.CustomerName),
		html.EscapeString(o.LocationID),
		o.PickupAt.Format("Monday, Jan 2 at 15:04"),
		html.EscapeString(o.ID),
		rows.String(),
		FormatMoney(o.Total),
	)
}

// BuildRejectionBody builds the HTML body for an order rejection.
func BuildRejectionBody(o *order.Order, reason string) string {
	if reason == "" {
		reason = "the shop could not fulfil it"
	}
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
	<h1 style="font-size: 22px;">Sorry, %s</h1>
	<p>Your order <span style="font-family: monospace;">%s</span> was declined: %s.</p>
	<p>No items are being held and nothing will be charged.</p>
</body>
</html>`,
		html.EscapeString(o.CustomerName),
		html.EscapeString(o.ID),
		html.EscapeString(reason),
	)
}

// FormatMoney renders minor units as a dollar amount, e.g. 1250 → $12.50.
func FormatMoney(cents int) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
