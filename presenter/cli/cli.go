// Package cli is the interactive command line front end.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/luma/huddle/client"
	"github.com/luma/huddle/presenter"
	"github.com/luma/huddle/protocol"
)

var (
	ErrUnterminatedQuote = errors.New("Unterminated quote")

	errExit = errors.New("exit")
)

type command struct {
	name  string
	usage string

	// minArgs and maxArgs count the arguments after the command name
	minArgs int
	maxArgs int

	mustBeJoined bool

	run func(ctx context.Context, args []string) error
}

// CLI reads commands, one per line, and prints their results along with
// message labels as they arrive.
type CLI struct {
	client presenter.Client

	in    io.Reader
	out   io.Writer
	outMu sync.Mutex

	commands []command

	log *zap.Logger
}

func New(c presenter.Client, in io.Reader, out io.Writer, log *zap.Logger) *CLI {
	if log == nil {
		log = zap.NewNop()
	}

	cli := &CLI{
		client: c,
		in:     in,
		out:    out,
		log:    log,
	}

	cli.commands = cli.commandTable()

	return cli
}

// Run reads commands until the input ends, the user exits or ctx ends. The
// connection is closed on the way out.
func (cli *CLI) Run(ctx context.Context) error {
	cancel := presenter.Subscribe(cli.client.Events(), cli.showPush)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(cli.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}

		readErr <- scanner.Err()
	}()

	cli.println("Enter a command or enter help to get a list of commands.")

	for {
		cli.prompt()

		select {
		case <-ctx.Done():
			return cli.close()

		case line, ok := <-lines:
			if !ok {
				var err error
				select {
				case err = <-readErr:
				default:
				}

				if closeErr := cli.close(); err == nil {
					err = closeErr
				}

				return err
			}

			if err := cli.Exec(ctx, line); errors.Is(err, errExit) {
				return nil
			}
		}
	}
}

// Exec runs one command line and prints its outcome. It only returns an
// error when the user asked to exit.
func (cli *CLI) Exec(ctx context.Context, line string) error {
	args, err := splitArgs(line)
	if err != nil {
		cli.println(err.Error() + ".")
		return nil
	}

	if len(args) == 0 {
		return nil
	}

	name := strings.ToLower(args[0])
	args = args[1:]

	for _, cmd := range cli.commands {
		if cmd.name != name {
			continue
		}

		if cmd.mustBeJoined && !cli.client.Joined() {
			cli.println("You must have connected to and joined a server to perform this command.")
			cli.println(`Run the command "connect <host> <port>" to connect to a server.`)
			cli.println(`Run the command "join <username>" to join a server.`)
			return nil
		}

		if len(args) < cmd.minArgs || len(args) > cmd.maxArgs {
			cli.println("Usage: " + cmd.usage)
			return nil
		}

		err := cmd.run(ctx, args)
		switch {
		case errors.Is(err, errExit):
			return err

		case err != nil:
			cli.log.Debug("Command failed", zap.String("command", name), zap.Error(err))
			cli.println(describe(err))
		}

		return nil
	}

	cli.println(fmt.Sprintf("No command with name %s.", name))

	return nil
}

func (cli *CLI) close() error {
	if !cli.client.Connected() {
		return nil
	}

	return cli.client.Disconnect(context.Background())
}

func (cli *CLI) showPush(p presenter.Push) {
	switch p.Kind {
	case presenter.KindLabel:
		m := p.Message
		cli.println(fmt.Sprintf("(%d) %s %s %s", m.MessageID, m.Subject, m.Username, m.PostDate))

	case presenter.KindBadMessage:
		cli.println("The server rejected the last request.")
	}
}

func (cli *CLI) commandTable() []command {
	return []command{
		{
			name:  "help",
			usage: "help",
			run: func(ctx context.Context, args []string) error {
				names := make([]string, 0, len(cli.commands))
				for _, cmd := range cli.commands {
					names = append(names, cmd.name)
				}

				cli.println("Available commands: " + strings.Join(names, ", "))
				return nil
			},
		},
		{
			name:    "connect",
			usage:   "connect <host> <port> | connect <address>",
			minArgs: 1,
			maxArgs: 2,
			run: func(ctx context.Context, args []string) error {
				if cli.client.Connected() {
					cli.println("You are already connected to a server.")
					return nil
				}

				addr := args[0]
				if len(args) == 2 {
					if _, err := strconv.Atoi(args[1]); err != nil {
						cli.println("The port must be an integer.")
						return nil
					}

					addr = net.JoinHostPort(args[0], args[1])
				}

				if err := cli.client.Connect(ctx, addr); err != nil {
					return err
				}

				cli.println("Connected.")
				return nil
			},
		},
		{
			name:    "join",
			usage:   "join <username>",
			minArgs: 1,
			maxArgs: 1,
			run: func(ctx context.Context, args []string) error {
				ok, err := cli.client.Join(ctx, args[0])
				if err != nil {
					return err
				}

				if ok {
					cli.println("Joined server.")
				} else {
					cli.println("Invalid username.")
				}

				return nil
			},
		},
		{
			name:         "post",
			usage:        "post <subject> <content>",
			minArgs:      2,
			maxArgs:      2,
			mustBeJoined: true,
			run: func(ctx context.Context, args []string) error {
				return cli.post(ctx, 0, args[0], args[1])
			},
		},
		{
			name:         "users",
			usage:        "users",
			mustBeJoined: true,
			run: func(ctx context.Context, args []string) error {
				return cli.users(ctx, 0)
			},
		},
		{
			name:         "leave",
			usage:        "leave",
			mustBeJoined: true,
			run: func(ctx context.Context, args []string) error {
				if err := cli.client.LogOut(ctx); err != nil {
					return err
				}

				cli.println("Left server.")
				return nil
			},
		},
		{
			name:         "message",
			usage:        "message <id>",
			minArgs:      1,
			maxArgs:      1,
			mustBeJoined: true,
			run: func(ctx context.Context, args []string) error {
				return cli.message(ctx, 0, args[0])
			},
		},
		{
			name:         "groups",
			usage:        "groups",
			mustBeJoined: true,
			run: func(ctx context.Context, args []string) error {
				groups, err := cli.client.Groups(ctx)
				if err != nil {
					return err
				}

				names := make([]string, 0, len(groups))
				for _, g := range groups {
					names = append(names, g.String())
				}

				cli.println("Groups: " + strings.Join(names, ", "))
				return nil
			},
		},
		{
			name:         "groupjoin",
			usage:        "groupjoin <group>",
			minArgs:      1,
			maxArgs:      1,
			mustBeJoined: true,
			run: func(ctx context.Context, args []string) error {
				id, err := presenter.ResolveGroup(ctx, cli.client, args[0])
				if err != nil {
					return err
				}

				if err := cli.client.JoinGroup(ctx, id); err != nil {
					return err
				}

				cli.println("Joined group.")
				return nil
			},
		},
		{
			name:         "grouppost",
			usage:        "grouppost <group> <subject> <content>",
			minArgs:      3,
			maxArgs:      3,
			mustBeJoined: true,
			run: func(ctx context.Context, args []string) error {
				id, err := presenter.ResolveGroup(ctx, cli.client, args[0])
				if err != nil {
					return err
				}

				return cli.post(ctx, id, args[1], args[2])
			},
		},
		{
			name:         "groupusers",
			usage:        "groupusers <group>",
			minArgs:      1,
			maxArgs:      1,
			mustBeJoined: true,
			run: func(ctx context.Context, args []string) error {
				id, err := presenter.ResolveGroup(ctx, cli.client, args[0])
				if err != nil {
					return err
				}

				return cli.users(ctx, id)
			},
		},
		{
			name:         "groupleave",
			usage:        "groupleave <group>",
			minArgs:      1,
			maxArgs:      1,
			mustBeJoined: true,
			run: func(ctx context.Context, args []string) error {
				id, err := presenter.ResolveGroup(ctx, cli.client, args[0])
				if err != nil {
					return err
				}

				if err := cli.client.LeaveGroup(ctx, id); err != nil {
					return err
				}

				cli.println("Left group.")
				return nil
			},
		},
		{
			name:         "groupmessage",
			usage:        "groupmessage <group> <id>",
			minArgs:      2,
			maxArgs:      2,
			mustBeJoined: true,
			run: func(ctx context.Context, args []string) error {
				id, err := presenter.ResolveGroup(ctx, cli.client, args[0])
				if err != nil {
					return err
				}

				return cli.message(ctx, id, args[1])
			},
		},
		{
			name:    "state",
			usage:   "state [path]",
			maxArgs: 1,
			run: func(ctx context.Context, args []string) error {
				data, err := cli.client.Snapshot()
				if err != nil {
					return err
				}

				path := "@pretty"
				if len(args) == 1 {
					path = args[0]
				}

				result := gjson.GetBytes(data, path)
				if !result.Exists() {
					cli.println("Nothing at " + path + ".")
					return nil
				}

				cli.println(strings.TrimSpace(result.String()))
				return nil
			},
		},
		{
			name:  "exit",
			usage: "exit",
			run: func(ctx context.Context, args []string) error {
				if err := cli.close(); err != nil {
					return err
				}

				cli.println("Disconnected.")
				return errExit
			},
		},
	}
}

func (cli *CLI) post(ctx context.Context, groupID int, subject, content string) error {
	m, err := cli.client.PostMessage(ctx, groupID, subject, content)
	if err != nil {
		return err
	}

	cli.println(fmt.Sprintf("Message %d posted.", m.MessageID))
	return nil
}

func (cli *CLI) users(ctx context.Context, groupID int) error {
	g, err := cli.client.GroupUsers(ctx, groupID)
	if err != nil {
		return err
	}

	cli.println(fmt.Sprintf("Users for %s: %s", g.Name, strings.Join(g.Users, ", ")))
	return nil
}

func (cli *CLI) message(ctx context.Context, groupID int, arg string) error {
	id, err := presenter.ParseMessageID(arg)
	if err != nil {
		return err
	}

	m, err := cli.client.RetrieveMessage(ctx, groupID, id)
	if err != nil {
		return err
	}

	cli.println(fmt.Sprintf("Message %d: %s", m.MessageID, m.Content))
	return nil
}

func (cli *CLI) prompt() {
	cli.outMu.Lock()
	defer cli.outMu.Unlock()

	fmt.Fprint(cli.out, "> ")
}

func (cli *CLI) println(line string) {
	cli.outMu.Lock()
	defer cli.outMu.Unlock()

	fmt.Fprintln(cli.out, line)
}

// describe turns an error into something to show the user.
func describe(err error) string {
	switch {
	case errors.Is(err, client.ErrNotConnected):
		return `You must first connect to a server. Run the command "connect <host> <port>".`

	case errors.Is(err, client.ErrAlreadyConnected):
		return "You are already connected to a server."

	case errors.Is(err, client.ErrNotJoined):
		return `You must first join the server. Run the command "join <username>".`

	case errors.Is(err, client.ErrAlreadyJoined):
		return "You have already joined the server."

	case errors.Is(err, client.ErrInvalidGroup), errors.Is(err, presenter.ErrUnknownGroup):
		return "Invalid group."

	case errors.Is(err, client.ErrNotMember):
		return "You are not a member of that group."

	case errors.Is(err, client.ErrAlreadyMember):
		return "You are already a member of that group."

	case errors.Is(err, client.ErrMessageUnavailable):
		return "That message is not available."

	case errors.Is(err, presenter.ErrBadMessageID):
		return "Invalid message id."

	case errors.Is(err, protocol.ErrInvalidField):
		return "Text may not contain line breaks."

	case errors.Is(err, client.ErrConnectionLost):
		return "Lost the connection to the server."

	case errors.Is(err, context.DeadlineExceeded):
		return "The server did not answer in time."

	default:
		return "Error: " + err.Error()
	}
}

// splitArgs splits a command line on spaces. Double quotes group words into
// a single argument.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		quoted  bool
		inArg   bool
	)

	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			inArg = true

		case (r == ' ' || r == '\t') && !quoted:
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}

		default:
			current.WriteRune(r)
			inArg = true
		}
	}

	if quoted {
		return nil, ErrUnterminatedQuote
	}

	if inArg {
		args = append(args, current.String())
	}

	return args, nil
}

var _ presenter.Presenter = (*CLI)(nil)
