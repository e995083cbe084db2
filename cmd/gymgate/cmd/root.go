package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/soroboxing/gymgate/auth"
	"github.com/soroboxing/gymgate/internal/config"
	"github.com/soroboxing/gymgate/internal/util"
)

// Version is set at build time with -ldflags "-X ...cmd.Version=...".
var Version = "dev"

// app carries state shared by all subcommands once the config is loaded.
type app struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
	logOutput  io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{logOutput: os.Stderr}

	root := &cobra.Command{
		Use:   "gymgate",
		Short: "gymgate authenticates gym members",
		Long: `Session authentication for the gym web app: member login with
identifier and PIN, cookie sessions, admin-gated member management.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(a.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			level, err := cfg.Level()
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = slog.New(slog.NewJSONHandler(a.logOutput, &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "Path to a YAML config file (default ./gymgate.yaml if present)")
	pf.String("store", config.StoreBbolt, "Member and session store: memory, bbolt or postgres")
	pf.String("data-dir", "./data", "Directory for the bbolt database")
	pf.String("database-url", "", "Postgres connection string")
	pf.String("session-store", config.SessionStoreSame, "Where sessions live: same or redis")
	pf.String("redis-addr", "localhost:6379", "Redis address for session-store=redis")
	pf.Int("session-ttl-days", 7, "Session lifetime in days")
	pf.Int("secret-length", auth.DefaultSecretLength, "Digits in generated PINs (4 to 6)")
	pf.String("kdf-profile", util.KDFProfileModerate, "Argon2id cost profile: interactive, moderate or sensitive")
	pf.String("log-level", "info", "Log level: debug, info, warn or error")

	root.AddCommand(
		newServerCmd(a),
		newBootstrapCmd(a),
		newHashSecretCmd(a),
		newMembersCmd(a),
		newSessionsCmd(a),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	root := newRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openService opens the configured stores and returns a Service over them.
// The returned func closes the stores.
func (a *app) openService(ctx context.Context, opts ...auth.Option) (*auth.Service, func(), error) {
	b, err := openBackends(ctx, a.cfg)
	if err != nil {
		return nil, nil, err
	}
	params, err := a.cfg.Argon2idParams()
	if err != nil {
		b.Close()
		return nil, nil, err
	}
	base := []auth.Option{
		auth.WithLogger(a.logger),
		auth.WithTTL(a.cfg.SessionTTL()),
		auth.WithSecretLength(a.cfg.SecretLength),
		auth.WithArgon2idParams(params),
	}
	return auth.New(b.members, b.sessions, append(base, opts...)...), b.Close, nil
}
