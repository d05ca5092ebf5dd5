package email

import (
	"bytes"
	"html/template"
)

// NegotiationData feeds the negotiation email body. All fields are escaped.
type NegotiationData struct {
	OrganizationName string
	Subject          string
	Content          string
	AttachmentCount  int
}

var negotiationTemplate = template.Must(template.New("negotiation").Parse(negotiationEmailTemplate))

func RenderNegotiation(data NegotiationData) (string, error) {
	if data.OrganizationName == "" {
		data.OrganizationName = "Organization"
	}
	var buf bytes.Buffer
	if err := negotiationTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const negotiationEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #f97316; color: white; padding: 20px; border-radius: 8px 8px 0 0; }
        .content { background-color: #f9fafb; padding: 30px; border-radius: 0 0 8px 8px; }
        .footer { margin-top: 20px; padding: 20px; text-align: center; color: #6b7280; font-size: 12px; }
        .message { background-color: white; padding: 20px; border-radius: 8px; margin: 20px 0; white-space: pre-wrap; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1 style="margin: 0;">{{.Subject}}</h1>
            <p style="margin: 5px 0 0 0; opacity: 0.9;">{{.OrganizationName}}</p>
        </div>
        <div class="content">
            <div class="message">{{.Content}}</div>
            {{if gt .AttachmentCount 0}}
            <p style="margin-top: 20px; color: #6b7280;">This email contains {{.AttachmentCount}} attachment(s)</p>
            {{end}}
        </div>
        <div class="footer">
            <p>This is an automatic communication from the Adspika system.</p>
            <p>Please do not reply to this email.</p>
        </div>
    </div>
</body>
</html>`
