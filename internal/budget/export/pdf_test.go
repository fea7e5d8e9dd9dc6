package export

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civitrack/civitrack/internal/budget"
	"github.com/civitrack/civitrack/internal/view"
	"github.com/civitrack/civitrack/report"
)

func sampleReport() budget.Report {
	amt := decimal.RequireFromString
	project := budget.Project{ID: 3, Name: "Ward 12 Works", Amount: amt("1000000"), TotalReleased: amt("400000"), StartDate: time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)}
	roads := budget.Branch{ID: 9, ProjectID: 3, Name: "Roads", TotalSpent: amt("150000")}
	parks := budget.Branch{ID: 10, ProjectID: 3, Name: "Parks", TotalSpent: decimal.Zero}
	return budget.Report{
		Project: project,
		Summary: budget.ComputeSummary(project, []budget.Branch{roads, parks}),
		Branches: []budget.BranchSection{
			{Branch: roads, Entries: []budget.SubBranch{{ID: 1, BranchID: 9, Name: "Resurfacing Main St", Amount: amt("150000"), Date: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}}},
			{Branch: parks},
		},
		Releases:   []budget.ReleasedHistory{{ID: 4, ProjectID: 3, Amount: amt("400000"), Date: time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)}},
		ExportedAt: time.Date(2025, 3, 1, 14, 5, 0, 0, time.UTC),
		ExportedBy: "asha",
	}
}

func TestPDFExporter_PostsEverySection(t *testing.T) {
	var html string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		file, _, err := r.FormFile("files")
		if !assert.NoError(t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		html = string(data)
		_, _ = w.Write([]byte("MOCK-PDF-CONTENT"))
	}))
	defer srv.Close()

	exporter, err := NewPDFExporter(report.NewClient(srv.URL), view.NewMoneyFormatter("en", "Rs"))
	require.NoError(t, err)

	pdf, err := exporter.Export(context.Background(), sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "MOCK-PDF-CONTENT", string(pdf))

	for _, want := range []string{
		"Ward 12 Works",
		"Rs 1,000,000.00",
		"Rs 600,000.00",
		"Rs 250,000.00",
		"Branch: Roads",
		"Resurfacing Main St",
		"Branch: Parks",
		"No entries",
		"Fund releases",
		"20 Jan 2025",
		"Exported 01 Mar 2025 14:05 by asha",
	} {
		assert.Contains(t, html, want)
	}
	assert.Equal(t, 2, strings.Count(html, `class="branch"`))
}

type failingRenderer struct{}

func (failingRenderer) RenderHTML(ctx context.Context, html string) ([]byte, error) {
	return nil, errors.New("gotenberg unreachable")
}

func TestPDFExporter_RendererError(t *testing.T) {
	exporter, err := NewPDFExporter(failingRenderer{}, nil)
	require.NoError(t, err)
	_, err = exporter.Export(context.Background(), sampleReport())
	assert.EqualError(t, err, "gotenberg unreachable")
}

func TestPDFExporter_EscapesNames(t *testing.T) {
	exporter, err := NewPDFExporter(failingRenderer{}, nil)
	require.NoError(t, err)
	r := sampleReport()
	r.Project.Name = "<script>alert(1)</script>"
	html, err := exporter.RenderHTML(r)
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>alert(1)</script>")
}
