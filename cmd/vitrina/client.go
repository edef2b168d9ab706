package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/vitrina/vitrina/internal/client"
	"github.com/vitrina/vitrina/internal/config"
	"github.com/vitrina/vitrina/internal/logging"
	"github.com/vitrina/vitrina/internal/player"
	"github.com/vitrina/vitrina/internal/player/mpv"
	"github.com/vitrina/vitrina/internal/tui"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Client configuration",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write an example config file",
				Flags: config.ClientFlags(),
				Action: func(ctx context.Context, cmd *cli.Command) error {
					path := cmd.String("config")
					if err := config.CreateClientFile(path); err != nil {
						return err
					}
					fmt.Printf("Wrote %s\n", path)
					return nil
				},
			},
		},
	}
}

// openClient loads the client config and the persisted session.
func openClient(ctx context.Context, cmd *cli.Command) (config.Client, *client.Client, func(), error) {
	cfg, err := config.ClientFromCommand(ctx, cmd)
	if err != nil {
		return config.Client{}, nil, nil, err
	}
	store, err := client.OpenBoltStore(cmd.String("session"))
	if err != nil {
		return config.Client{}, nil, nil, err
	}
	return cfg, client.New(cfg.Server, store), func() { _ = store.Close() }, nil
}

func loginCommand() *cli.Command {
	flags := append(config.ClientFlags(),
		&cli.StringFlag{Name: "email", Usage: "Account email"},
	)
	return &cli.Command{
		Name:  "login",
		Usage: "Sign in to the gallery server",
		Flags: flags,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, c, closeStore, err := openClient(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			in := bufio.NewReader(os.Stdin)
			email := cmd.String("email")
			if email == "" {
				if email, err = prompt(in, os.Stderr, "Email: "); err != nil {
					return err
				}
			}
			var source io.Reader = in
			if term.IsTerminal(int(os.Stdin.Fd())) {
				source = os.Stdin
			}
			password, err := promptPassword(source, os.Stderr)
			if err != nil {
				return err
			}

			t, err := c.Login(ctx, email, password)
			if err != nil {
				return err
			}
			fmt.Printf("Signed in as %s\n", t.Email)
			return nil
		},
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "Sign out and forget the local session",
		Flags: config.ClientFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, c, closeStore, err := openClient(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeStore()
			if err := c.Logout(ctx); err != nil {
				return err
			}
			fmt.Println("Signed out")
			return nil
		},
	}
}

func browseCommand() *cli.Command {
	return &cli.Command{
		Name:  "browse",
		Usage: "Browse and play the gallery in the terminal",
		Flags: config.ClientFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, c, closeStore, err := openClient(ctx, cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			logFile, err := logging.OpenFile(cfg.LogFile)
			if err != nil {
				return err
			}
			defer func() { _ = logFile.Close() }()
			logger := logging.Setup(logFile, cfg.LogLevel)

			launch := func(ctx context.Context, src player.MediaSource) (tui.Element, error) {
				el, err := mpv.Launch(ctx, mpv.Config{Path: cfg.Player.Path, Args: cfg.Player.Args}, src, logger)
				if err != nil {
					return nil, err
				}
				return el, nil
			}

			final, err := tea.NewProgram(tui.New(ctx, c, launch, logger), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return err
			}
			if m, ok := final.(tui.Model); ok && m.Err() != nil {
				return m.Err()
			}
			return nil
		},
	}
}

func prompt(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads without echo on a terminal and a plain line
// otherwise.
func promptPassword(in io.Reader, out io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, "Password: ")
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(pw), nil
	}
	r, ok := in.(*bufio.Reader)
	if !ok {
		r = bufio.NewReader(in)
	}
	return prompt(r, out, "Password: ")
}
