package receipt

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/noah-isme/backend-pos/internal/pricing"
	"github.com/noah-isme/backend-pos/internal/sales"
)

// Renderer produces a printable HTML receipt for a sale record.
type Renderer struct {
	StoreName    string
	StoreAddress string
	CurrencyCode string

	tmpl *template.Template
}

type lineView struct {
	Name      string
	Qty       int
	UnitPrice string
	LineTotal string
}

type receiptView struct {
	StoreName    string
	StoreAddress string
	ID           string
	Timestamp    string
	Meta         sales.Meta
	Lines        []lineView
	Subtotal     string
	ItemDiscount string
	BillDiscount string
	Total        string
	HasDiscount  bool
}

// New builds a renderer with the embedded receipt template parsed once.
func New(storeName, storeAddress, currency string) (*Renderer, error) {
	tmpl, err := template.New("receipt").Parse(receiptHTML)
	if err != nil {
		return nil, fmt.Errorf("parse receipt template: %w", err)
	}
	return &Renderer{
		StoreName:    storeName,
		StoreAddress: storeAddress,
		CurrencyCode: currency,
		tmpl:         tmpl,
	}, nil
}

// Render writes the receipt HTML for the given sale.
func (r *Renderer) Render(rec sales.Record) ([]byte, error) {
	if r == nil || r.tmpl == nil {
		return nil, fmt.Errorf("renderer not configured")
	}
	view := receiptView{
		StoreName:    r.StoreName,
		StoreAddress: r.StoreAddress,
		ID:           rec.ID,
		Timestamp:    rec.Timestamp.Format(time.RFC1123),
		Meta:         rec.Meta,
		Subtotal:     r.money(rec.Summary.Subtotal),
		ItemDiscount: r.money(rec.Summary.ItemDiscount),
		BillDiscount: r.money(rec.Summary.BillDiscount),
		Total:        r.money(rec.Summary.Total),
		HasDiscount:  rec.Summary.ItemDiscount > 0 || rec.Summary.BillDiscount > 0,
	}
	for _, it := range rec.Items {
		view.Lines = append(view.Lines, lineView{
			Name:      it.Name,
			Qty:       it.Qty,
			UnitPrice: r.money(it.UnitPrice),
			LineTotal: r.money(it.LineTotal()),
		})
	}
	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render receipt %s: %w", rec.ID, err)
	}
	return buf.Bytes(), nil
}

// money formats a minor-unit amount with thousands separators, e.g.
// "IDR 1.500.000".
func (r *Renderer) money(v pricing.Money) string {
	neg := v < 0
	if neg {
		v = -v
	}
	digits := fmt.Sprintf("%d", v)
	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)
	out := strings.Join(groups, ".")
	if neg {
		out = "-" + out
	}
	code := r.CurrencyCode
	if code == "" {
		code = "IDR"
	}
	return code + " " + out
}

const receiptHTML = `<!DOCTYPE html>
<html>
<head>
<title>Receipt {{.ID}}</title>
<style>
body { font-family: sans-serif; padding: 40px; color: #1a202c; max-width: 600px; margin: auto; }
.card { border: 1px solid #e2e8f0; padding: 40px; border-radius: 20px; }
.header { text-align: center; border-bottom: 2px solid #f7fafc; padding-bottom: 30px; margin-bottom: 30px; }
table { width: 100%; border-collapse: collapse; }
td, th { padding: 12px 10px; border-bottom: 1px solid #edf2f7; font-size: 14px; }
th { text-align: left; font-size: 11px; color: #a0aec0; text-transform: uppercase; }
.amount { text-align: right; font-weight: 700; }
.total-section { margin-top: 30px; padding-top: 25px; border-top: 2px solid #1a202c; }
.row { display: flex; justify-content: space-between; margin-bottom: 8px; font-size: 14px; }
.grand-total { font-size: 24px; font-weight: 800; }
.footer { margin-top: 40px; text-align: center; font-size: 13px; color: #a0aec0; }
@media print { body { padding: 0; } .card { border: none; padding: 20px; } }
</style>
</head>
<body>
<div class="card">
  <div class="header">
    <h1>{{.StoreName}}</h1>
    {{if .StoreAddress}}<div>{{.StoreAddress}}</div>{{end}}
    <div>INV: {{.ID}} &bull; {{.Timestamp}}</div>
  </div>
  {{if .Meta.CustomerName}}
  <div class="row">
    <div>
      <strong>Customer</strong><br>
      {{.Meta.CustomerName}}<br>
      {{.Meta.CustomerPhone}}
    </div>
    <div>
      <strong>Shipping</strong><br>
      {{.Meta.Logistics}}<br>
      {{.Meta.CustomerAddress}}
    </div>
  </div>
  {{end}}
  <table>
    <thead><tr><th>Item</th><th class="amount">Total</th></tr></thead>
    <tbody>
    {{range .Lines}}
    <tr>
      <td>{{.Name}}<br><small>{{.UnitPrice}} x {{.Qty}}</small></td>
      <td class="amount">{{.LineTotal}}</td>
    </tr>
    {{end}}
    </tbody>
  </table>
  <div class="total-section">
    <div class="row"><span>Subtotal</span><span>{{.Subtotal}}</span></div>
    {{if .HasDiscount}}
    <div class="row"><span>Item Discount</span><span>-{{.ItemDiscount}}</span></div>
    <div class="row"><span>Discount</span><span>-{{.BillDiscount}}</span></div>
    {{end}}
    <div class="row grand-total"><span>Grand Total</span><span>{{.Total}}</span></div>
  </div>
  <div class="footer">
    {{if .Meta.PaymentMethod}}<div>Payment: {{.Meta.PaymentMethod}} ({{.Meta.PaymentStatus}})</div>{{end}}
    <div>Thank you for choosing {{.StoreName}}. We hope to see you again soon!</div>
  </div>
</div>
</body>
</html>
`
