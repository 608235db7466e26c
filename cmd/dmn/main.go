package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/quantumdmn/dmn-go/pkg/auth"
	"github.com/quantumdmn/dmn-go/pkg/client"
	"github.com/quantumdmn/dmn-go/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

var (
	cfgFile string
	baseURL string
	verbose bool

	v      *viper.Viper
	cfg    *config.Config
	logger *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dmn",
	Short: "QuantumDMN command-line client",
	Long: `dmn evaluates stored DMN decision models on QuantumDMN.

Settings come from dmn.yaml (./ or ~/.quantumdmn/), QUANTUMDMN_* environment
variables, and flags, in increasing order of precedence:

  export QUANTUMDMN_AUTH_ZITADEL_KEY_FILE=~/key.json
  dmn evaluate loan-approval --project 0b7c1c5e-... --input applicant.json`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		v = config.NewViper(cfgFile)
		if err := v.BindPFlag("base_url", cmd.Flags().Lookup("base-url")); err != nil {
			return err
		}
		if err := config.ReadInConfig(v); err != nil {
			return err
		}
		cfg, err = config.FromViper(v)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./dmn.yaml or ~/.quantumdmn/dmn.yaml)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "API base URL (default "+config.DefaultBaseURL+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "development logging")

	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(mockCmd)
	rootCmd.AddCommand(versionCmd)
}

// newClient builds an API client from the loaded configuration.
func newClient() (*client.Client, error) {
	return client.NewFromConfig(cfg, client.Options{Logger: logger})
}

// ── token ────────────────────────────────────────────────────────────────────

var tokenShowExpiry bool

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Exchange the configured service-account key for an access token",
	Long: `token performs a JWT-bearer exchange with the configured Zitadel issuer
and prints the access token, for use with curl or other tools:

  curl -H "Authorization: Bearer $(dmn token)" https://api.quantumdmn.com/...`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().BoolVar(&tokenShowExpiry, "expiry", false, "also print the token expiry (RFC 3339) on stderr")
}

func runToken(cmd *cobra.Command, _ []string) error {
	if !cfg.UsesKeyFile() {
		return fmt.Errorf("no key file configured: set auth.zitadel.key_file or QUANTUMDMN_AUTH_ZITADEL_KEY_FILE")
	}
	z := cfg.Auth.Zitadel
	cache, err := auth.NewTokenCacheFromFile(z.KeyFile, z.Issuer, z.ProjectID, auth.Options{
		Timeout: cfg.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout)
	defer cancel()
	if _, err := cache.GetToken(ctx); err != nil {
		return err
	}
	tok, err := cache.Token()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok.AccessToken)
	if tokenShowExpiry {
		fmt.Fprintln(cmd.ErrOrStderr(), tok.Expiry.Format(time.RFC3339))
	}
	return nil
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "dmn %s\n", version)
	},
}
