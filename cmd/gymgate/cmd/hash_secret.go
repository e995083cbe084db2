package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soroboxing/gymgate/auth"
	"github.com/soroboxing/gymgate/member"
)

func newHashSecretCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hash-secret",
		Short: "Print the Argon2id hash of a secret read from stdin",
		Long: `Reads one line from stdin and prints its Argon2id PHC string using the
configured kdf-profile, for seeding member rows by hand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading secret from stdin: %w", err)
			}
			secret := member.NormalizeSecret(strings.TrimRight(line, "\r\n"))
			if secret == "" {
				return errors.New("secret is empty")
			}
			params, err := a.cfg.Argon2idParams()
			if err != nil {
				return err
			}
			hash, err := auth.HashSecret(secret, params)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
