package slip

import (
	"bytes"
	"fmt"
	"html/template"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/mcdev12/cashier/go/internal/models"
	"github.com/shopspring/decimal"
)

var receiptTemplate = template.Must(template.New("receipt").Funcs(template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
	"when":  func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
	"draws": func(ns []int) string {
		parts := make([]string, len(ns))
		for i, n := range ns {
			parts[i] = fmt.Sprintf("#%d", n)
		}
		return strings.Join(parts, ", ")
	},
}).Parse(`<div class="receipt">
<h2>Roulette Betting Slip{{if .Reprint}} (REPRINT){{end}}</h2>
<p class="slip-number">Slip {{.Slip.SlipNumber}}</p>
<p class="draws">Draw {{draws .Slip.DrawNumbers}}</p>
<p class="date">{{when .Slip.CreatedAt}}</p>
<table class="bets">
<tr><th>Bet</th><th>Stake</th><th>Pays</th><th>Return</th></tr>
{{range .Slip.Bets}}<tr><td>{{.Description}}</td><td>{{money .Amount}}</td><td>{{.Multiplier}}:1</td><td>{{money .PotentialReturn}}</td></tr>
{{end}}</table>
<p class="total">Total stake {{money .Slip.TotalStake}}{{if gt .DrawCount 1}} x {{.DrawCount}} draws = {{money .GrandTotal}}{{end}}</p>
<p class="return">Potential return {{money .Slip.PotentialReturn}}</p>
<div class="barcode">*{{.Slip.Barcode}}*</div>
</div>`))

type receiptView struct {
	Slip       models.Slip
	Reprint    bool
	DrawCount  int
	GrandTotal decimal.Decimal
}

// RenderReceipt renders the printable receipt for slip.
func RenderReceipt(slip models.Slip, reprint bool) (string, error) {
	view := receiptView{
		Slip:       slip,
		Reprint:    reprint,
		DrawCount:  len(slip.DrawNumbers),
		GrandTotal: slip.TotalStake.Mul(decimal.NewFromInt(int64(len(slip.DrawNumbers)))),
	}
	var buf bytes.Buffer
	if err := receiptTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render receipt: %w", err)
	}
	return buf.String(), nil
}

// NewSlipNumber returns a 12 digit slip number: the date followed by six
// random digits.
func NewSlipNumber(now time.Time) string {
	return fmt.Sprintf("%s%06d", now.Format("060102"), rand.IntN(1_000_000))
}

// Barcode appends an EAN-13 check digit to a 12 digit slip number.
func Barcode(slipNumber string) string {
	sum := 0
	for i, r := range slipNumber {
		d := int(r - '0')
		if d < 0 || d > 9 {
			return slipNumber
		}
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return slipNumber + fmt.Sprint((10-sum%10)%10)
}
