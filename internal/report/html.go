package report

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/sdtm/internal/core"
)

const defineStyle = `body { font-family: system-ui, -apple-system, 'Segoe UI', sans-serif; margin: 2rem; }
table { border-collapse: collapse; width: 100%; margin-bottom: 2rem; }
th, td { border: 1px solid #d1d5db; padding: 0.5rem 0.75rem; }
th { background: #f3f4f6; text-align: left; }
.error { color: #b91c1c; } .warning { color: #b45309; } .info { color: #1d4ed8; }`

// DefineHTML renders the human-readable view of the Define-XML snapshot.
func DefineHTML(summary *core.RunSummary) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &htmlWriter{w: w}
		p.raw(`<!doctype html><html lang="en"><head><meta charset="utf-8"><title>Define-XML HTML View</title><style>`)
		p.raw(defineStyle)
		p.raw(`</style></head><body><h1>Define-XML Snapshot</h1><p>Generated from compliance run `)
		p.text(summary.ID)
		p.raw(` (`)
		p.text(summary.StandardID)
		p.raw(`) on `)
		p.text(summary.StartedAt.UTC().Format(time.RFC3339))
		p.raw(`.</p>`)

		p.raw(`<h2>Datasets</h2><table><thead><tr><th>Domain</th><th>Filename</th><th>Rows</th><th>Columns</th></tr></thead><tbody>`)
		for _, d := range summary.Datasets {
			p.row(d.Domain, d.Name, strconv.Itoa(d.RowCount), strconv.Itoa(d.ColumnCount))
		}
		p.raw(`</tbody></table>`)

		p.raw(`<h2>Findings</h2><p>`)
		p.text(strconv.Itoa(summary.Summary.Errors) + " errors, " + strconv.Itoa(summary.Summary.Warnings) + " warnings")
		p.raw(`</p><table><thead><tr><th>ID</th><th>Domain</th><th>Variable</th><th>Severity</th><th>Message</th><th>Reference</th></tr></thead><tbody>`)
		for _, f := range summary.Findings {
			p.raw(`<tr><td>`)
			p.text(f.ID)
			p.raw(`</td><td>`)
			p.text(f.Domain)
			p.raw(`</td><td>`)
			p.text(f.Variable)
			p.raw(`</td><td class="`)
			p.text(string(f.Severity))
			p.raw(`">`)
			p.text(string(f.Severity))
			p.raw(`</td><td>`)
			p.text(f.Message)
			p.raw(`</td><td>`)
			p.text(f.RuleReference)
			p.raw(`</td></tr>`)
		}
		p.raw(`</tbody></table></body></html>`)
		return p.err
	})
}

// htmlWriter keeps the first write error so rendering reads linearly.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (p *htmlWriter) raw(s string) {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
}

func (p *htmlWriter) text(s string) {
	p.raw(templ.EscapeString(s))
}

func (p *htmlWriter) row(cells ...string) {
	p.raw(`<tr>`)
	for _, c := range cells {
		p.raw(`<td>`)
		p.text(c)
		p.raw(`</td>`)
	}
	p.raw(`</tr>`)
}
