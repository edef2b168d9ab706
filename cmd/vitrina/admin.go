package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/vitrina/vitrina/internal/auth"
	"github.com/vitrina/vitrina/internal/config"
	"github.com/vitrina/vitrina/internal/database"
	"github.com/vitrina/vitrina/internal/docstore"
	"github.com/vitrina/vitrina/internal/logging"
	"github.com/vitrina/vitrina/internal/seed"
	"github.com/vitrina/vitrina/internal/validate"
)

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:      "seed",
		Usage:     "Import videos, posts and user profiles from a YAML file",
		ArgsUsage: "FILE",
		Flags:     config.ServerFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				return errors.New("seed file is required")
			}
			cfg := config.ServerFromCommand(cmd)
			logging.Setup(os.Stderr, cfg.LogLevel)

			f, err := seed.ParseFile(name)
			if err != nil {
				return err
			}
			db, err := connect(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			var media seed.Uploader
			store, err := openStorage(ctx, cfg)
			if err != nil {
				return err
			}
			if store != nil {
				media = store
			}

			res, err := seed.NewImporter(docstore.New(db.Pool), media, filepath.Dir(name)).Run(ctx, f)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d videos, %d posts, %d users (%d media uploads)\n", res.Videos, res.Posts, res.Users, res.Uploads)
			return nil
		},
	}
}

func usersCommand() *cli.Command {
	flags := append(config.ServerFlags(),
		&cli.StringFlag{Name: "email", Usage: "Account email", Required: true},
		&cli.StringFlag{Name: "password", Usage: "Account password (prompted when omitted)"},
		&cli.StringFlag{Name: "role", Usage: "premium or basic", Value: "premium"},
		&cli.StringFlag{Name: "display-name", Usage: "Name shown on the home page"},
		&cli.StringFlag{Name: "phone", Usage: "Phone number"},
		&cli.StringFlag{Name: "plan", Usage: "Plan name"},
	)
	return &cli.Command{
		Name:  "users",
		Usage: "Manage accounts",
		Commands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Create an account and its profile",
				Flags: flags,
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.ServerFromCommand(cmd)
					logging.Setup(os.Stderr, cfg.LogLevel)

					password := cmd.String("password")
					if password == "" {
						var err error
						if password, err = promptPassword(os.Stdin, os.Stderr); err != nil {
							return err
						}
					}
					u := newUser{
						Email:       cmd.String("email"),
						Password:    password,
						Role:        cmd.String("role"),
						DisplayName: cmd.String("display-name"),
						Phone:       cmd.String("phone"),
						Plan:        cmd.String("plan"),
					}
					if err := u.validate(); err != nil {
						return err
					}

					db, err := connect(ctx, cfg)
					if err != nil {
						return err
					}
					defer db.Close()

					uid, err := addUser(ctx, db.Pool, u, time.Now())
					if err != nil {
						return err
					}
					fmt.Printf("Created %s (%s)\n", u.Email, uid)
					return nil
				},
			},
		},
	}
}

type newUser struct {
	Email, Password, Role, DisplayName, Phone, Plan string
}

func (u newUser) validate() error {
	for _, msg := range []string{
		validate.Email(strings.TrimSpace(u.Email)),
		validate.Password(u.Password),
		validate.Role(u.Role),
		validate.DisplayName(u.DisplayName),
	} {
		if msg != "" {
			return errors.New(msg)
		}
	}
	return nil
}

// addUser creates the account and writes its users/{uid} profile.
func addUser(ctx context.Context, db database.DBTX, u newUser, now time.Time) (string, error) {
	if err := u.validate(); err != nil {
		return "", err
	}
	email := auth.NormalizeEmail(u.Email)
	uid, err := auth.NewHandler(db, "", false).CreateAccount(ctx, email, u.Password)
	if err != nil {
		return "", err
	}

	profile := docstore.Fields{
		"email":        email,
		"role":         u.Role,
		"status":       "active",
		"created_time": docstore.NewTimestamp(now),
	}
	if u.DisplayName != "" {
		profile["display_name"] = u.DisplayName
	}
	if u.Phone != "" {
		profile["phone_number"] = u.Phone
	}
	if u.Plan != "" {
		profile["plan_name"] = u.Plan
		profile["pay_time"] = docstore.NewTimestamp(now)
	}
	if err := docstore.New(db).Put(ctx, docstore.CollectionUsers, uid, profile); err != nil {
		return "", fmt.Errorf("write profile: %w", err)
	}
	slog.Info("account created", "user_id", uid, "role", u.Role)
	return uid, nil
}
