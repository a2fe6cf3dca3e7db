package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/linksigner/internal/clock"
	"github.com/dharsanguruparan/linksigner/internal/config"
	"github.com/dharsanguruparan/linksigner/internal/signedurl"
	"github.com/dharsanguruparan/linksigner/internal/signing"
)

func newRootCommand(clk clock.Clock) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "linksigner",
		Short: "Sign and verify HMAC protected links",
		Long: `linksigner issues and checks links whose query parameters carry an HMAC-SHA256 signature
and an expiry. It reads the same LINKSIGNER_* settings as the server, so links it signs are
accepted by the server and the other way round.`,
		SilenceUsage: true,
	}
	cmd.AddCommand(
		newSignCmd(clk),
		newVerifyCmd(clk),
		newMACCmd(clk),
	)
	return cmd
}

func loadSigner(clk clock.Clock) (*signing.Signer, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	signer, err := signing.New(cfg.SigningSecret, cfg.SignerOptions(clk)...)
	if err != nil {
		return nil, nil, err
	}
	return signer, cfg, nil
}

// parsePairs turns key=value arguments into Params, keeping argument order.
func parsePairs(args []string) (signing.Params, error) {
	var p signing.Params
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return signing.Params{}, fmt.Errorf("expected key=value, got %q", arg)
		}
		if p.Has(key) {
			return signing.Params{}, fmt.Errorf("parameter %q given twice", key)
		}
		p.SetString(key, value)
	}
	return p, nil
}

func newSignCmd(clk clock.Clock) *cobra.Command {
	var (
		ttl         time.Duration
		expiresAt   int64
		noAdditions bool
		base        string
	)
	cmd := &cobra.Command{
		Use:   "sign ROUTE [key=value...]",
		Short: "Print a signed URL for ROUTE",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl != 0 && expiresAt != 0 {
				return errors.New("--ttl and --expires-at are mutually exclusive")
			}
			if ttl < 0 {
				return errors.New("--ttl must be positive")
			}
			signer, cfg, err := loadSigner(clk)
			if err != nil {
				return err
			}
			params, err := parsePairs(args[1:])
			if err != nil {
				return err
			}

			var opts []signing.SignOption
			switch {
			case expiresAt != 0:
				opts = append(opts, signing.ExpiresAt(time.Unix(expiresAt, 0)))
			case ttl > 0:
				opts = append(opts, signing.ExpiresAt(clk.Now().Add(ttl)))
			}
			if noAdditions {
				opts = append(opts, signing.DisallowAdditions())
			}

			route := args[0]
			signed, err := signer.Sign(route, params, opts...)
			if err != nil {
				return err
			}
			if base == "" {
				base = cfg.BaseURL
			}
			link, err := signedurl.Build(base, route, signed)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), link)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Lifetime of the link (defaults to LINKSIGNER_DEFAULT_TTL)")
	cmd.Flags().Int64Var(&expiresAt, "expires-at", 0, "Absolute expiry as Unix seconds")
	cmd.Flags().BoolVar(&noAdditions, "no-additions", false, "Reject links that gain extra query parameters")
	cmd.Flags().StringVar(&base, "base", "", "Scheme and host to prefix (defaults to LINKSIGNER_BASE_URL)")
	return cmd
}

func newVerifyCmd(clk clock.Clock) *cobra.Command {
	var route string
	cmd := &cobra.Command{
		Use:   "verify URL",
		Short: "Check a signed URL and print why it fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, _, err := loadSigner(clk)
			if err != nil {
				return err
			}
			urlRoute, params, err := signedurl.Split(args[0])
			if err != nil {
				return err
			}
			if route == "" {
				route = urlRoute
			}
			if err := signer.Verify(params, route); err != nil {
				if kind, ok := signing.VerificationKind(err); ok {
					return fmt.Errorf("invalid: %s", kind)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "valid")
			if exp, ok := signer.Expiration(params); ok {
				fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&route, "route", "", "Route to verify against instead of the URL path")
	return cmd
}

func newMACCmd(clk clock.Clock) *cobra.Command {
	return &cobra.Command{
		Use:   "mac ROUTE [key=value...]",
		Short: "Print the MAC over ROUTE and the given parameters",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, _, err := loadSigner(clk)
			if err != nil {
				return err
			}
			params, err := parsePairs(args[1:])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signer.ComputeMAC(params, args[0]))
			return nil
		},
	}
}
