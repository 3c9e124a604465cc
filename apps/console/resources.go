package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/gachaupg/shuletrack/core/resource"
)

// related lists the resources whose labels decorate the rows of a resource.
var related = map[string][]string{
	"students":      {"grades", "parents"},
	"trips":         {"routes", "vehicles", "staff"},
	"route-stops":   {"routes"},
	"subscriptions": {"plans"},
}

// handle returns the named resource. Unknown names get a suggestion.
func (cli *commandLine) handle(name string) (resource.Handle, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if h, ok := cli.state.Handle(name); ok {
		return h, nil
	}
	if match := closestMatch(name, cli.state.Names()); match != "" {
		return nil, errors.Errorf("%q: no such resource, did you mean %q?", name, match)
	}
	return nil, errors.Errorf("%q: no such resource, run: resources", name)
}

func (cli *commandLine) scope() resource.Scope {
	return resource.Scope{School: cli.session.School()}
}

// load fetches h, then its related resources. Related failures only cost labels.
func (cli *commandLine) load(ctx context.Context, h resource.Handle) error {
	if !cli.session.IsAuthenticated() {
		return errNotLoggedIn
	}
	desc := h.Descriptor()
	if _, err := h.Load(ctx, cli.scope()); err != nil {
		if errors.Is(err, resource.ErrTenantRequired) {
			return errors.New("no active school, run: use SCHOOL_ID")
		}
		return err
	}
	if names := related[desc.Name]; len(names) > 0 {
		for name, err := range cli.state.LoadAll(ctx, cli.scope(), names...) {
			cli.logger.Warn(fmt.Sprintf("loading %s for %s labels: %v", name, desc.Name, err))
		}
	}
	return nil
}

func (cli *commandLine) resources() {
	for _, name := range cli.state.Names() {
		h, _ := cli.state.Handle(name)
		desc := h.Descriptor()
		scope := "per school"
		if !desc.Scoped {
			scope = "shared"
		}
		fmt.Fprintf(cli.out, "%-18s %-22s %s\n", desc.Name, desc.Label, scope)
	}
}

func (cli *commandLine) list(ctx context.Context, name string, limit int) error {
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
	total := len(rows)
	if limit > 0 && total > limit {
		rows = rows[:limit]
	}

	fmt.Fprintln(cli.out, renderTable(desc.Columns, rows))
	if len(rows) < total {
		fmt.Fprintf(cli.out, "%d of %d %s\n", len(rows), total, desc.Name)
	} else {
		fmt.Fprintf(cli.out, "%d %s\n", total, desc.Name)
	}
	return nil
}

func (cli *commandLine) create(ctx context.Context, name, payload string) error {
	h, err := cli.handle(name)
	if err != nil {
		return err
	}
	if !cli.session.IsAuthenticated() {
		return errNotLoggedIn
	}
	data, err := cli.payload(payload)
	if err != nil {
		return err
	}

	entity, err := h.CreateJSON(ctx, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Created %s %s.\n", h.Descriptor().Label, entity.Key())
	return nil
}

func (cli *commandLine) update(ctx context.Context, name, id, payload string, replace bool) error {
	h, err := cli.handle(name)
	if err != nil {
		return err
	}
	data, err := cli.payload(payload)
	if err != nil {
		return err
	}
	// patches are validated against the cached entity
	if err = cli.load(ctx, h); err != nil {
		return err
	}

	var entity resource.Entity
	if replace {
		entity, err = h.ReplaceJSON(ctx, resource.ParseID(id), data)
	} else {
		entity, err = h.UpdateJSON(ctx, resource.ParseID(id), data)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Updated %s %s.\n", h.Descriptor().Label, entity.Key())
	return nil
}

func (cli *commandLine) delete(ctx context.Context, name string, ids ...string) error {
	h, err := cli.handle(name)
	if err != nil {
		return err
	}
	if !cli.session.IsAuthenticated() {
		return errNotLoggedIn
	}

	keys := make([]resource.ID, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, resource.ParseID(id))
	}
	if err = h.DeleteMany(ctx, keys...); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Deleted %d %s.\n", len(keys), h.Descriptor().Name)
	return nil
}

// payload returns the JSON argument, read from the input when it is "-".
func (cli *commandLine) payload(arg string) ([]byte, error) {
	if arg != "-" {
		return []byte(arg), nil
	}
	data, err := io.ReadAll(cli.in)
	if err != nil {
		return nil, errors.Wrap(err, "reading payload")
	}
	return data, nil
}
