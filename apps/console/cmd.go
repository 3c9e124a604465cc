package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"golang.org/x/term"

	"github.com/gachaupg/shuletrack/core"
	"github.com/gachaupg/shuletrack/core/state"
	apisvc "github.com/gachaupg/shuletrack/services/api"
	sessionsvc "github.com/gachaupg/shuletrack/services/session"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf    *core.Config
	logger  core.Logger
	session *sessionsvc.Session
	client  *apisvc.Client
	state   *state.State
	mailer  core.EmailService
	in      io.Reader
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  login -email EMAIL                              - log in, the password is prompted next")
	fmt.Fprintln(cli.out, "  logout                                          - forget the session token")
	fmt.Fprintln(cli.out, "  whoami [-refresh]                               - show the logged in user")
	fmt.Fprintln(cli.out, "  use SCHOOL_ID                                   - select the active school")
	fmt.Fprintln(cli.out, "  resources                                       - list the resource names")
	fmt.Fprintln(cli.out, "  list RESOURCE [-limit N]                        - fetch and print a resource")
	fmt.Fprintln(cli.out, "  create RESOURCE JSON|-                          - create an entity")
	fmt.Fprintln(cli.out, "  update RESOURCE ID JSON|- [-replace]            - update an entity")
	fmt.Fprintln(cli.out, "  delete RESOURCE ID...                           - delete entities")
	fmt.Fprintln(cli.out, "  export RESOURCE [-format F] [-dir D] [-mail TO] - export as csv, pdf or doc")
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

// parse parses the command flags. Flags may follow the positional arguments,
// which are returned.
func parse(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			if err == flag.ErrHelp {
				return nil, errHelp
			}
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	loginCmd := cli.newFlagSet("login")
	loginEmail := loginCmd.String("email", "", "The account email. The password will be prompted next.")

	whoamiCmd := cli.newFlagSet("whoami")
	whoamiRefresh := whoamiCmd.Bool("refresh", false, "Reload the profile from the server.")

	listCmd := cli.newFlagSet("list")
	listLimit := listCmd.Int("limit", cli.session.Preferences().PageSize, "Maximum number of rows to print (0: all).")

	updateCmd := cli.newFlagSet("update")
	updateReplace := updateCmd.Bool("replace", false, "Send the payload as a full replacement (PUT).")

	exportCmd := cli.newFlagSet("export")
	exportFormat := exportCmd.String("format", "csv", "Export format: csv, pdf or doc.")
	exportDir := exportCmd.String("dir", cli.conf.Export.Dir, "Output directory.")
	exportMail := exportCmd.String("mail", "", "Comma separated addresses to e-mail the export to.")

	noFlagsCmd := cli.newFlagSet(args[1])

	switch args[1] {
	case "login":
		if _, err := parse(loginCmd, args[2:]); err != nil {
			return err
		}
		if *loginEmail == "" {
			loginCmd.Usage()
			return errHelp
		}
		fmt.Fprint(cli.out, "Enter password:")
		pwd, err := readPasswordFunc(stdinFd)
		fmt.Fprintln(cli.out)
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			loginCmd.Usage()
			return errHelp
		}
		return cli.login(ctx, *loginEmail, string(pwd))

	case "logout":
		return cli.logout()

	case "whoami":
		if _, err := parse(whoamiCmd, args[2:]); err != nil {
			return err
		}
		return cli.whoami(ctx, *whoamiRefresh)

	case "use":
		pos, err := parse(noFlagsCmd, args[2:])
		if err != nil {
			return err
		}
		if len(pos) != 1 {
			cli.printUsage()
			return errHelp
		}
		return cli.use(pos[0])

	case "resources":
		cli.resources()
		return nil

	case "list":
		pos, err := parse(listCmd, args[2:])
		if err != nil {
			return err
		}
		if len(pos) != 1 {
			cli.printUsage()
			return errHelp
		}
		return cli.list(ctx, pos[0], *listLimit)

	case "create":
		pos, err := parse(noFlagsCmd, args[2:])
		if err != nil {
			return err
		}
		if len(pos) != 2 {
			cli.printUsage()
			return errHelp
		}
		return cli.create(ctx, pos[0], pos[1])

	case "update":
		pos, err := parse(updateCmd, args[2:])
		if err != nil {
			return err
		}
		if len(pos) != 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.update(ctx, pos[0], pos[1], pos[2], *updateReplace)

	case "delete":
		pos, err := parse(noFlagsCmd, args[2:])
		if err != nil {
			return err
		}
		if len(pos) < 2 {
			cli.printUsage()
			return errHelp
		}
		return cli.delete(ctx, pos[0], pos[1:]...)

	case "export":
		pos, err := parse(exportCmd, args[2:])
		if err != nil {
			return err
		}
		if len(pos) != 1 {
			cli.printUsage()
			return errHelp
		}
		var to []string
		for _, addr := range strings.Split(*exportMail, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				to = append(to, addr)
			}
		}
		return cli.export(ctx, pos[0], *exportFormat, *exportDir, to)

	default:
		cli.printUsage()
		return errHelp
	}
}
