package main

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/pkg/errors"

	exportsvc "github.com/gachaupg/shuletrack/services/export"
)

func (cli *commandLine) export(ctx context.Context, name, format, dir string, to []string) error {
	f, err := exportsvc.ParseFormat(format)
	if err != nil {
		return err
	}
	recipients := make([]mail.Address, 0, len(to))
	for _, addr := range to {
		parsed, err := mail.ParseAddress(addr)
		if err != nil {
			return errors.Errorf("%q: invalid e-mail address", addr)
		}
		recipients = append(recipients, *parsed)
	}

	h, err := cli.handle(name)
	if err != nil {
		return err
	}
	if err = cli.load(ctx, h); err != nil {
		return err
	}

	desc := h.Descriptor()
	rows, err := cli.state.Rows(desc.Name)
	if err != nil {
		return err
	}
	tbl := exportsvc.Table{Name: desc.Name, Title: title(desc.Name), Headers: desc.Columns, Rows: rows}
	art, err := tbl.Render(f)
	if err != nil {
		return err
	}

	fp, err := exportsvc.Write(dir, art)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Exported %d %s to %s\n", len(rows), desc.Name, fp)

	if len(recipients) > 0 {
		if err = exportsvc.Mail(cli.mailer, art, tbl.Title, len(rows), recipients...); err != nil {
			return errors.Wrap(err, "mailing export")
		}
		fmt.Fprintf(cli.out, "Mailed %s to %d recipient(s).\n", art.Name, len(recipients))
	}
	return nil
}

// title turns a resource name into a heading: "route-stops" -> "Route Stops".
func title(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
