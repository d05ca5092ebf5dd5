package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/khony/adzb/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

var negotiationTemplate = template.Must(
	template.New("negotiation.html").Funcs(template.FuncMap{
		"join": strings.Join,
		"formatDate": func(t time.Time, layout string) string {
			if t.IsZero() {
				return ""
			}
			return t.UTC().Format(layout)
		},
		"humanSize": humanSize,
	}).ParseFS(templateFS, "templates/negotiation.html"),
)

// DossierData holds everything the negotiation dossier renders.
type DossierData struct {
	OrganizationName  string
	Subject           string
	Content           string
	Status            string
	CreatorName       string
	Recipients        []string
	LastInteractionAt time.Time
	Evidence          *store.Evidence
	Domains           []string
	Attachments       []store.NegotiationAttachment
	GeneratedAt       time.Time
}

func RenderDossierHTML(data DossierData) (string, error) {
	var buf bytes.Buffer
	if err := negotiationTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
