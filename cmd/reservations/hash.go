package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/dukerupert/reservations/internal/auth"
)

var errEmptyPassword = errors.New("password must not be empty")

func hashPasswordCmd() *cli.Command {
	return &cli.Command{
		Name:      "hash-password",
		Usage:     "Print the bcrypt hash of a password for ADMIN_PASSWORD_HASH",
		ArgsUsage: "[password]",
		Description: `Reads the password from the first argument, or from the first line of
standard input when no argument is given:

  echo -n 's3cret' | reservations hash-password`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			password := cmd.Args().First()
			if password == "" {
				line, err := bufio.NewReader(cmd.Root().Reader).ReadString('\n')
				if err != nil && line == "" {
					return errEmptyPassword
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return errEmptyPassword
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.Root().Writer, hash)
			return err
		},
	}
}
