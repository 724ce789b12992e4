package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aussiebroadwan/xdauth/internal/login"
	"github.com/aussiebroadwan/xdauth/internal/vault"
	"github.com/spf13/cobra"
)

var errSessionInactive = errors.New("session is not logged in")

// credentialFlags are shared by commands that take an account.
type credentialFlags struct {
	portal   string
	account  string
	password string
	question int
	answer   string
}

func (f *credentialFlags) bind(cmd *cobra.Command, withSecrets bool) {
	cmd.Flags().StringVarP(&f.portal, "portal", "p", string(login.PortalIDS), "portal: ids, ehall or rsbbs")
	cmd.Flags().StringVarP(&f.account, "account", "a", "", "account name (required)")
	_ = cmd.MarkFlagRequired("account")
	if withSecrets {
		cmd.Flags().StringVar(&f.password, "password", "", "password (env XDAUTH_PASSWORD, prompted when unset)")
		cmd.Flags().IntVar(&f.question, "question", 0, "forum security question id (0-7)")
		cmd.Flags().StringVar(&f.answer, "answer", "", "forum security answer")
	}
}

// secrets resolves the password and security question.
func (f *credentialFlags) secrets(p *prompter) ([]byte, login.QuestionAnswerPair, error) {
	q, err := login.QuestionFromID(f.question)
	if err != nil {
		return nil, login.QuestionAnswerPair{}, err
	}
	qa := login.QuestionAnswerPair{Question: q, Answer: f.answer}

	password := f.password
	if password == "" {
		password = os.Getenv("XDAUTH_PASSWORD")
	}
	if password == "" {
		if password, err = p.askSecret("password: "); err != nil {
			return nil, qa, fmt.Errorf("read password: %w", err)
		}
	}
	return []byte(password), qa, nil
}

func newLoginCmd(root *rootOptions) *cobra.Command {
	var (
		creds      credentialFlags
		target     string
		cookieDays int
		stored     bool
		save       bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to a portal",
		Long: `Logs in to the IDS single sign-on, the ehall portal through IDS, or the
rsbbs forum. Slider captchas are solved automatically; forum captchas are
saved as PNG files and answered on the terminal.

With --stored the credential comes from the vault. With --save a successful
login stores the credential and, when a master key is configured, a sealed
snapshot of the session cookies.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())

			kind, err := login.ParsePortal(creds.portal)
			if err != nil {
				return err
			}
			opts := vault.LoginOptions{
				Target:     target,
				TextSolver: p.textSolver(),
				CookieDays: cookieDays,
			}

			var session *login.Session
			if stored {
				svc, err := root.app.Vault()
				if err != nil {
					return err
				}
				session, err = svc.Login(ctx, kind, creds.account, opts)
				if err != nil {
					return err
				}
			} else {
				password, qa, err := creds.secrets(p)
				if err != nil {
					return err
				}
				session, err = root.app.Orchestrator().Login(ctx, login.Request{
					Account:    creds.account,
					Password:   password,
					Portal:     kind,
					Target:     target,
					TextSolver: opts.TextSolver,
					QA:         qa,
					CookieDays: cookieDays,
				})
				if err != nil {
					return err
				}
				if save {
					if err := saveSession(cmd, root, session, password, qa); err != nil {
						return err
					}
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "logged in to %s as %s after %d attempt(s), session %s\n",
				session.Portal, session.Account, session.Attempts, session.ID)
			return nil
		},
	}

	creds.bind(cmd, true)
	cmd.Flags().StringVar(&target, "target", "", "IDS service URL to log in to (ids portal only)")
	cmd.Flags().IntVar(&cookieDays, "cookie-days", 0, "forum cookie lifetime in days")
	cmd.Flags().BoolVar(&stored, "stored", false, "use the credential stored in the vault")
	cmd.Flags().BoolVar(&save, "save", false, "store the credential and session in the vault")
	cmd.MarkFlagsMutuallyExclusive("stored", "save")
	cmd.MarkFlagsMutuallyExclusive("stored", "password")
	return cmd
}

func saveSession(cmd *cobra.Command, root *rootOptions, session *login.Session, password []byte, qa login.QuestionAnswerPair) error {
	svc, err := root.app.Vault()
	if err != nil {
		return err
	}
	acct, err := svc.AddAccount(cmd.Context(), vault.AddAccountParams{
		Portal:   session.Portal,
		Username: session.Account,
		Password: password,
		QA:       qa,
	})
	if err != nil {
		return err
	}
	err = svc.SaveSnapshot(cmd.Context(), acct, session)
	if errors.Is(err, vault.ErrNoSealer) {
		fmt.Fprintln(cmd.ErrOrStderr(), "credential stored; set a master key to keep sessions")
		return nil
	}
	return err
}

func newStatusCmd(root *rootOptions) *cobra.Command {
	var creds credentialFlags

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check whether a saved session is still logged in",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := login.ParsePortal(creds.portal)
			if err != nil {
				return err
			}
			svc, err := root.app.Vault()
			if err != nil {
				return err
			}
			session, err := svc.Restore(cmd.Context(), kind, creds.account, root.app.Config().UserAgent)
			if err != nil {
				return err
			}
			if !session.IsAuthenticated(cmd.Context()) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: logged out\n", kind, creds.account)
				return errSessionInactive
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: logged in (session %s)\n", kind, creds.account, session.ID)
			return nil
		},
	}
	creds.bind(cmd, false)
	return cmd
}
