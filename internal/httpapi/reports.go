package httpapi

import (
	"bytes"
	"encoding/csv"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"lojaju/backend/internal/domain"
)

func (a *API) handleDashboard(c *gin.Context) {
	summary, err := a.service.Dashboard(c.Request.Context())
	if err != nil {
		a.writeError(c, err)
		return
	}

	switch strings.ToLower(strings.TrimSpace(c.Query("format"))) {
	case "csv":
		body, err := dashboardToCSV(summary)
		if err != nil {
			a.writeError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="dashboard-`+summary.GeneratedAt.Format("2006-01-02")+`.csv"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", body)
	case "html":
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(dashboardToPrintableHTML(summary)))
	default:
		c.JSON(http.StatusOK, summary)
	}
}

func dashboardToCSV(summary domain.DashboardSummary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{
		{"metric", "month", "last_90_days"},
		{"sales", summary.Sales.Month.StringFixed(2), summary.Sales.Quarter.StringFixed(2)},
		{"received", summary.Received.Month.StringFixed(2), summary.Received.Quarter.StringFixed(2)},
		{"profit", summary.Profit.Month.StringFixed(2), summary.Profit.Quarter.StringFixed(2)},
		{"customers", strconv.FormatInt(summary.Customers, 10), ""},
		{"outstanding", summary.OutstandingTotal.StringFixed(2), ""},
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// brl renders an amount the way it is shown on screen, e.g. "R$ 1.234,56".
func brl(amount decimal.Decimal) string {
	fixed := amount.StringFixed(2)
	negative := strings.HasPrefix(fixed, "-")
	fixed = strings.TrimPrefix(fixed, "-")
	intPart, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	out := "R$ " + grouped.String() + "," + frac
	if negative {
		out = "-" + out
	}
	return out
}

var dashboardHTMLTmpl = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"brl":  brl,
	"date": func(t time.Time) string { return t.Format("02/01/2006") },
}).Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>Dashboard {{date .GeneratedAt}}</title>
  <style>
    body { font-family: sans-serif; margin: 24px; }
    table { border-collapse: collapse; margin-top: 8px; }
    th, td { border: 1px solid #ddd; padding: 6px 12px; font-size: 13px; }
    td.num { text-align: right; }
  </style>
</head>
<body>
  <h2>Dashboard {{date .GeneratedAt}}</h2>
  <p>Clientes: {{.Customers}} | A receber: {{brl .OutstandingTotal}}</p>
  <table>
    <thead><tr><th></th><th>Mês atual (desde {{date .MonthStart}})</th><th>Últimos 90 dias (desde {{date .QuarterStart}})</th></tr></thead>
    <tbody>
      <tr><td>Vendas</td><td class="num">{{brl .Sales.Month}}</td><td class="num">{{brl .Sales.Quarter}}</td></tr>
      <tr><td>Recebido</td><td class="num">{{brl .Received.Month}}</td><td class="num">{{brl .Received.Quarter}}</td></tr>
      <tr><td>Lucro</td><td class="num">{{brl .Profit.Month}}</td><td class="num">{{brl .Profit.Quarter}}</td></tr>
    </tbody>
  </table>
  <p>Fuso horário: {{.Timezone}}</p>
</body>
</html>
`))

func dashboardToPrintableHTML(summary domain.DashboardSummary) string {
	var buf bytes.Buffer
	if err := dashboardHTMLTmpl.Execute(&buf, summary); err != nil {
		return "<!doctype html><html><body><p>Report rendering error.</p></body></html>"
	}
	return buf.String()
}
