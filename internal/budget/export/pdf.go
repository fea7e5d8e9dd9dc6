package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"

	"github.com/civitrack/civitrack/internal/budget"
	"github.com/civitrack/civitrack/internal/view"
	"github.com/civitrack/civitrack/web"
)

const reportTemplate = "reports/project_report.html"

// Renderer converts an HTML document into PDF bytes.
type Renderer interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// PDFExporter renders itemized project reports through Gotenberg.
type PDFExporter struct {
	renderer  Renderer
	templates *template.Template
}

// NewPDFExporter parses the embedded report template.
func NewPDFExporter(renderer Renderer, money *view.MoneyFormatter) (*PDFExporter, error) {
	if money == nil {
		money = view.NewMoneyFormatter("en", "")
	}
	tpl, err := template.New("report").Funcs(view.FuncMap(money)).ParseFS(web.Templates, "templates/reports/project_report.html")
	if err != nil {
		return nil, fmt.Errorf("parse project report template: %w", err)
	}
	return &PDFExporter{renderer: renderer, templates: tpl}, nil
}

// RenderHTML executes the report template.
func (p *PDFExporter) RenderHTML(report budget.Report) (string, error) {
	var buf bytes.Buffer
	if err := p.templates.ExecuteTemplate(&buf, reportTemplate, report); err != nil {
		return "", fmt.Errorf("render project report: %w", err)
	}
	return buf.String(), nil
}

// Export renders report as a PDF document.
func (p *PDFExporter) Export(ctx context.Context, report budget.Report) ([]byte, error) {
	if p == nil || p.renderer == nil {
		return nil, errors.New("pdf exporter not initialised")
	}
	html, err := p.RenderHTML(report)
	if err != nil {
		return nil, err
	}
	return p.renderer.RenderHTML(ctx, html)
}
