package console

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Render writes the console page for v. Output is buffered so a template
// failure never leaves a half-written page.
func Render(w io.Writer, v *View) error {
	var buf bytes.Buffer
	if err := pageTmpl.ExecuteTemplate(&buf, "console", v); err != nil {
		return fmt.Errorf("console: render page: %w", err)
	}
	_, err := buf.WriteTo(w)
	return err
}
