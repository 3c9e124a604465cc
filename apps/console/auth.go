package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/gachaupg/shuletrack/core"
	"github.com/gachaupg/shuletrack/core/user"
)

var errNotLoggedIn = errors.New("not logged in, run: login -email EMAIL")

func (cli *commandLine) login(ctx context.Context, email, pwd string) error {
	usr, err := cli.client.Login(ctx, user.Credentials{Email: core.CleanString(email, true /* lower */), Password: pwd})
	if err != nil {
		return err
	}

	fmt.Fprintf(cli.out, "Logged in as %s (%s).\n", usr.DisplayName(), user.RoleName(usr.Role))
	if school := cli.session.School(); school > 0 {
		fmt.Fprintf(cli.out, "Active school: %d\n", school)
	} else {
		fmt.Fprintln(cli.out, "No active school, run: use SCHOOL_ID")
	}
	return nil
}

func (cli *commandLine) logout() error {
	if err := cli.session.ClearAuth(); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "Logged out.")
	return nil
}

func (cli *commandLine) whoami(ctx context.Context, refresh bool) error {
	if !cli.session.IsAuthenticated() {
		return errNotLoggedIn
	}

	usr, ok := cli.session.Profile()
	if refresh || !ok {
		var err error
		if usr, err = cli.client.Me(ctx); err != nil {
			return err
		}
	}

	fmt.Fprintf(cli.out, "%s <%s>\n", usr.DisplayName(), usr.Email)
	fmt.Fprintf(cli.out, "Role:   %s\n", user.RoleName(usr.Role))
	if school := cli.session.School(); school > 0 {
		fmt.Fprintf(cli.out, "School: %d\n", school)
	} else {
		fmt.Fprintln(cli.out, "School: none")
	}
	return nil
}

func (cli *commandLine) use(arg string) error {
	school, err := strconv.Atoi(arg)
	if err != nil || school <= 0 {
		return errors.Errorf("%q: invalid school id", arg)
	}
	if err = cli.session.SetSchool(school); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "Active school: %d\n", school)
	return nil
}
