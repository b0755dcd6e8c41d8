package utils

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"

	"sarvin_back_end/internal/models"
)

const layoutTemplate = `{{define "layout"}}<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background-color: #f5f5f5;">
    <table role="presentation" style="width: 100%; border-collapse: collapse; background-color: #f5f5f5;">
        <tr>
            <td style="padding: 40px 20px;">
                <table role="presentation" style="max-width: 600px; margin: 0 auto; background-color: #ffffff; border-radius: 12px;">
                    <tr>
                        <td style="background-color: #1f2937; padding: 32px 30px; text-align: center; border-radius: 12px 12px 0 0;">
                            <h1 style="margin: 0; color: #ffffff; font-size: 26px;">Sarvin</h1>
                            <p style="margin: 8px 0 0 0; color: #ffffff; opacity: 0.9;">{{.Title}}</p>
                        </td>
                    </tr>
                    <tr>
                        <td style="padding: 30px;">{{template "content" .}}</td>
                    </tr>
                </table>
            </td>
        </tr>
    </table>
</body>
</html>{{end}}
{{define "items"}}
<table role="presentation" style="width: 100%; border-collapse: collapse; margin: 20px 0;">
    <thead>
        <tr style="background-color: #f0f0f0;">
            <th style="padding: 10px; text-align: left;">Product</th>
            <th style="padding: 10px; text-align: left;">Quantity</th>
            <th style="padding: 10px; text-align: right;">Price</th>
        </tr>
    </thead>
    <tbody>
    {{- range .Order.Items}}
        <tr>
            <td style="padding: 10px;">{{itemName .}}</td>
            <td style="padding: 10px;">{{.Quantity}}</td>
            <td style="padding: 10px; text-align: right;">{{money $.Currency .Price}}</td>
        </tr>
    {{- end}}
    </tbody>
    <tfoot>
        <tr>
            <td colspan="2" style="padding: 10px; text-align: right; font-weight: bold;">Total:</td>
            <td style="padding: 10px; text-align: right; font-weight: bold;">{{money .Currency .Order.Total}}</td>
        </tr>
    </tfoot>
</table>
{{end}}
{{define "address"}}
<p style="color: #555555; line-height: 1.5;">
    {{.FullName}}<br>
    {{.AddressLine1}}{{if .AddressLine2}}<br>{{.AddressLine2}}{{end}}<br>
    {{.City}}{{if .State}}, {{.State}}{{end}} {{.PostalCode}}{{if .Country}}<br>{{.Country}}{{end}}
</p>
{{end}}`

const confirmationContent = `{{define "content"}}
<p>Hello {{customerName .Order}},</p>
<p>Thank you for your order. Your payment was received and order <strong>#{{.Order.OrderID}}</strong> is now being processed.</p>
{{template "items" .}}
<h3>Shipping to</h3>
{{template "address" .Order.ShippingAddress}}
<p style="margin-top: 30px; color: #555555;">Regards,<br><strong>The Sarvin team</strong></p>
{{end}}`

const adminContent = `{{define "content"}}
<p>A new order has been placed.</p>
<p>
    <strong>Order:</strong> #{{.Order.OrderID}}<br>
    <strong>Customer:</strong> {{customerName .Order}} ({{.Order.User.Email}})<br>
    <strong>Payment:</strong> {{.Order.PaymentMethod}} {{.Order.PaymentID}}
</p>
{{template "items" .}}
{{template "address" .Order.ShippingAddress}}
{{end}}`

const statusContent = `{{define "content"}}
<p>Hello {{customerName .Order}},</p>
<p>{{.Message}}</p>
<div style="display: inline-block; padding: 10px 20px; background-color: {{.Color}}; color: #ffffff; border-radius: 20px; font-weight: 600; text-transform: uppercase;">{{.StatusLabel}}</div>
<table role="presentation" style="width: 100%; border-collapse: collapse; background-color: #f8f9fa; border-radius: 8px; margin: 20px 0;">
    <tr><td style="padding: 8px 20px;"><strong>Order number:</strong></td><td style="padding: 8px 20px; text-align: right;">#{{.Order.OrderID}}</td></tr>
    <tr><td style="padding: 8px 20px;"><strong>Previous status:</strong></td><td style="padding: 8px 20px; text-align: right;">{{.PreviousLabel}}</td></tr>
    <tr><td style="padding: 8px 20px;"><strong>Total:</strong></td><td style="padding: 8px 20px; text-align: right;">{{money .Currency .Order.Total}}</td></tr>
</table>
{{if .Order.AdminNotes}}<p><strong>Note:</strong> {{.Order.AdminNotes}}</p>{{end}}
<p style="margin-top: 30px; color: #555555;">Regards,<br><strong>The Sarvin team</strong></p>
{{end}}`

var templateFuncs = template.FuncMap{
	"money": formatMoney,
	"itemName": func(item models.OrderItem) string {
		if item.Details != nil && item.Details.Name != "" {
			return item.Details.Name
		}
		return item.Product
	},
	"customerName": func(o *models.Order) string {
		if o.User.Name != "" {
			return o.User.Name
		}
		return o.ShippingAddress.FullName
	},
}

var (
	confirmationTmpl = mustEmailTemplate("confirmation", confirmationContent)
	adminTmpl        = mustEmailTemplate("admin", adminContent)
	statusTmpl       = mustEmailTemplate("status", statusContent)
)

func mustEmailTemplate(name, content string) *template.Template {
	t := template.New(name).Funcs(templateFuncs)
	template.Must(t.Parse(layoutTemplate))
	return template.Must(t.Parse(content))
}

type emailData struct {
	Title         string
	Order         *models.Order
	Currency      string
	Message       string
	StatusLabel   string
	PreviousLabel string
	Color         string
}

func render(t *template.Template, data emailData) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s email: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func RenderOrderConfirmation(order *models.Order, currency string) (string, error) {
	return render(confirmationTmpl, emailData{Title: "Order confirmation", Order: order, Currency: currency})
}

func RenderAdminNotification(order *models.Order, currency string) (string, error) {
	return render(adminTmpl, emailData{Title: "New order received", Order: order, Currency: currency})
}

func RenderStatusUpdate(order *models.Order, oldStatus models.OrderStatus, currency string) (string, error) {
	return render(statusTmpl, emailData{
		Title:         "Order update",
		Order:         order,
		Currency:      currency,
		Message:       statusMessage(order.OrderStatus),
		StatusLabel:   statusLabel(order.OrderStatus),
		PreviousLabel: statusLabel(oldStatus),
		Color:         statusColor(order.OrderStatus),
	})
}

func StatusEmailSubject(status models.OrderStatus, orderID string) string {
	switch status {
	case models.OrderStatusShipped:
		return fmt.Sprintf("Your order %s has been shipped", orderID)
	case models.OrderStatusDelivered:
		return fmt.Sprintf("Your order %s has been delivered", orderID)
	case models.OrderStatusCancelled:
		return fmt.Sprintf("Your order %s has been cancelled", orderID)
	default:
		return fmt.Sprintf("Update on your order %s", orderID)
	}
}

func statusMessage(status models.OrderStatus) string {
	switch status {
	case models.OrderStatusProcessing:
		return "Your order is being prepared."
	case models.OrderStatusShipped:
		return "Good news: your order is on its way."
	case models.OrderStatusDelivered:
		return "Your order has been delivered. We hope you enjoy it."
	case models.OrderStatusCancelled:
		return "Your order has been cancelled. Contact us if you did not request this."
	default:
		return "The status of your order has changed."
	}
}

func statusLabel(status models.OrderStatus) string {
	if status == "" {
		return "-"
	}
	s := string(status)
	return strings.ToUpper(s[:1]) + s[1:]
}

func statusColor(status models.OrderStatus) string {
	switch status {
	case models.OrderStatusShipped:
		return "#2563eb"
	case models.OrderStatusDelivered:
		return "#16a34a"
	case models.OrderStatusCancelled:
		return "#dc2626"
	default:
		return "#f59e0b"
	}
}

func formatMoney(currency string, amount decimal.Decimal) string {
	if currency == "" {
		return amount.StringFixed(2)
	}
	return currency + " " + amount.StringFixed(2)
}
