package exportsvc

import (
	"bytes"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/gachaupg/shuletrack/core"
)

// Mail sends art as an attachment of the "export_ready" email.
func Mail(svc core.EmailService, art Artifact, title string, rows int, to ...mail.Address) error {
	if len(to) == 0 {
		return errors.New("exportsvc.Mail: no recipients")
	}

	msg := &core.EmailMessage{
		To:           to,
		Subject:      title + " export",
		TemplateName: "export_ready",
		TemplateData: map[string]interface{}{
			"Title":    title,
			"Filename": art.Name,
			"Rows":     rows,
		},
	}
	if err := msg.Attach(bytes.NewReader(art.Data), art.Name, art.ContentType); err != nil {
		return errors.Wrap(err, "exportsvc.Mail")
	}
	return svc.SendMessages(msg)
}
