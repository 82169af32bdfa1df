package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnehpets/httprpc/service"
)

type issueOptions struct {
	*rootOptions
	Subject string
	Roles   []string
	MaxAge  int
}

func newIssueCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &issueOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Print a principal cookie for the configured cookie key",
		Long: `Print a principal cookie for the configured cookie key.

The output is a Cookie header value that can be passed to curl. Catalog
changes require a principal with the editor role whenever a cookie key is
configured.

Example:
  HTTPRPC_COOKIE_KEY=$(openssl rand -hex 32) httprpc issue --subject ada --role editor`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.CookieKey == "" {
				return errors.New("no cookie key configured")
			}
			pc, err := principalCookie(cfg)
			if err != nil {
				return err
			}
			ck, err := pc.Issue(service.Principal{Subject: opts.Subject, Roles: opts.Roles}, opts.MaxAge)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", ck.Name, ck.Value)
			return err
		},
	}
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "principal subject (required)")
	cmd.Flags().StringSliceVar(&opts.Roles, "role", nil, "principal role (repeatable)")
	cmd.Flags().IntVar(&opts.MaxAge, "max-age", 86400, "cookie lifetime in seconds")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
