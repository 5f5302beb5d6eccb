// Package templates holds the HTML fragments the web layer renders.
package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// ErrorAlert renders an error box for HTMX swaps. The code is shown for
// support reference; action is omitted when empty.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		html := `<div class="alert alert-error" role="alert"><p class="alert-message">` +
			templ.EscapeString(message) + `</p>`
		if action != "" {
			html += `<p class="alert-action">` + templ.EscapeString(action) + `</p>`
		}
		html += `<p class="alert-code">Code: ` + templ.EscapeString(code) + `</p></div>`
		_, err := io.WriteString(w, html)
		return err
	})
}
