package view

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/civitrack/civitrack/internal/shared"
	"github.com/civitrack/civitrack/web"
)

// Engine renders HTML templates.
type Engine struct {
	templates *template.Template
	money     *MoneyFormatter
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	Username    string
	Data        any
}

// NewEngine parses templates with the default money format.
func NewEngine() (*Engine, error) {
	return NewEngineWithMoney(NewMoneyFormatter("en", ""))
}

// NewEngineWithMoney parses templates using the given money formatter.
func NewEngineWithMoney(money *MoneyFormatter) (*Engine, error) {
	if money == nil {
		money = NewMoneyFormatter("en", "")
	}
	tpl, err := template.New("root").Funcs(FuncMap(money)).ParseFS(web.Templates, "templates/layouts/*.html", "templates/partials/*.html", "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	return &Engine{templates: tpl, money: money}, nil
}

// Money exposes the engine's formatter for non-HTML outputs.
func (e *Engine) Money() *MoneyFormatter {
	if e == nil {
		return nil
	}
	return e.money
}

// FuncMap returns the helpers available to page and report templates.
func FuncMap(money *MoneyFormatter) template.FuncMap {
	return template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006")
		},
		"formatDateTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02 Jan 2006 15:04")
		},
		"dateInput": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"money":       money.Format,
		"amountInput": func(d decimal.Decimal) string { return d.StringFixed(2) },
		"negative":    func(d decimal.Decimal) bool { return d.IsNegative() },
	}
}

// Render executes a named template with TemplateData.
func (e *Engine) Render(w http.ResponseWriter, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return e.templates.ExecuteTemplate(w, name, data)
}
