package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AI-Team-Dev/jobportal/internal/domain/auth"
	"github.com/AI-Team-Dev/jobportal/internal/domain/model"
	"github.com/AI-Team-Dev/jobportal/internal/store"
)

// passwordEnv lets scripts pass a password without putting it on the command line.
const passwordEnv = "JOBPORTAL_PASSWORD"

// portalKinds maps the positional portal argument onto the two flows.
var portalKinds = []string{"hr", "applicant"}

func portalArg(args []string) (string, error) {
	kind := strings.ToLower(args[0])
	for _, k := range portalKinds {
		if kind == k {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown portal %q (valid options: hr, applicant)", args[0])
}

func (a *app) password(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if v := os.Getenv(passwordEnv); v != "" {
		return v, nil
	}
	a.console().Info("Password:")
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("password is required")
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:       "login hr|applicant",
		Short:     "Log in to the HR or applicant portal",
		Args:      cobra.ExactArgs(1),
		ValidArgs: portalKinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := portalArg(args)
			if err != nil {
				return err
			}
			pw, err := a.password(password)
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			creds := auth.Credentials{Email: strings.TrimSpace(email), Password: pw}
			var res store.Result
			if kind == "hr" {
				res = s.LoginHR(cmd.Context(), creds)
			} else {
				res = s.LoginApplicant(cmd.Context(), creds)
			}
			if err := a.check(res); err != nil {
				return err
			}
			name := creds.Email
			if u := s.Snapshot().User; u != nil {
				name = u.DisplayName()
			}
			a.console().Success("Logged in as %s", name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email (applicants may use another identifier)")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (default $"+passwordEnv+", else prompt)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSignupCmd(a *app) *cobra.Command {
	var name, email, password, company string
	cmd := &cobra.Command{
		Use:   "signup hr|applicant",
		Short: "Create an account; a one-time code is sent by email",
		Long: `Create an HR or applicant account. The backend emails a one-time code;
finish with "jobportal verify".`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: portalKinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := portalArg(args)
			if err != nil {
				return err
			}
			pw, err := a.password(password)
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			var res store.Result
			if kind == "hr" {
				res = s.SignupHR(cmd.Context(), model.HRSignup{FullName: name, Email: email, Password: pw, Company: company})
			} else {
				res = s.SignupApplicant(cmd.Context(), model.ApplicantSignup{Name: name, Email: email, Password: pw})
			}
			if err := a.check(res); err != nil {
				return err
			}
			a.console().Success("Account created. Check %s for the verification code.", email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "full name")
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (default $"+passwordEnv+", else prompt)")
	cmd.Flags().StringVar(&company, "company", "", "company name (hr only)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newVerifyCmd(a *app) *cobra.Command {
	var email, otp string
	cmd := &cobra.Command{
		Use:   "verify hr|applicant",
		Short: "Confirm an account with the emailed one-time code",
		Long: `Confirm an account. A verified HR account is logged in immediately;
applicants log in afterwards with "jobportal login applicant".`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: portalKinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := portalArg(args)
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			in := model.OTPVerification{Email: email, OTP: strings.TrimSpace(otp)}
			var res store.Result
			if kind == "hr" {
				res = s.VerifyHROTP(cmd.Context(), in)
			} else {
				res = s.VerifyApplicantOTP(cmd.Context(), in)
			}
			if err := a.check(res); err != nil {
				return err
			}
			if s.Snapshot().HR.LoggedIn && kind == "hr" {
				a.console().Success("Email verified. Logged in as %s", email)
			} else {
				a.console().Success("Email verified. You can log in now.")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVar(&otp, "otp", "", "one-time code")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("otp")
	return cmd
}

func newResendCmd(a *app) *cobra.Command {
	var email, phone string
	cmd := &cobra.Command{
		Use:       "resend hr|applicant",
		Short:     "Send the verification code again",
		Args:      cobra.ExactArgs(1),
		ValidArgs: portalKinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := portalArg(args)
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			in := model.OTPResend{Email: email}
			var res store.Result
			if kind == "hr" {
				res = s.ResendHROTP(cmd.Context(), in)
			} else {
				in.Phone = phone
				res = s.ResendApplicantOTP(cmd.Context(), in)
			}
			if err := a.check(res); err != nil {
				return err
			}
			a.console().Success("Verification code sent to %s", email)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().StringVar(&phone, "phone", "", "phone number (applicant only)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End every session and erase persisted state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.check(s.Logout(cmd.Context())); err != nil {
				return err
			}
			a.console().Success("Logged out")
			return nil
		},
	}
}

type whoami struct {
	Kind      string     `json:"kind"`
	HR        string     `json:"hr,omitempty"`
	Applicant string     `json:"applicant,omitempty"`
	User      *auth.User `json:"user,omitempty"`
	Applied   int        `json:"applied"`
	Saved     int        `json:"saved"`
	CanApply  bool       `json:"canApply"`
	Blocker   string     `json:"applyBlocker,omitempty"`
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			snap := s.Snapshot()
			w := whoami{
				Kind:    s.CurrentKind().String(),
				User:    snap.User,
				Applied: len(snap.Applied),
				Saved:   len(snap.Saved),
			}
			if snap.HR.LoggedIn {
				w.HR = snap.HR.Email
			}
			if snap.Applicant.LoggedIn {
				w.Applicant = snap.Applicant.Email
			}
			ok, reason := s.CanApply()
			w.CanApply = ok
			w.Blocker = string(reason)

			p := a.console()
			if a.flags.jsonOut {
				return p.JSON(w)
			}
			if w.HR == "" && w.Applicant == "" {
				p.Print("Not logged in")
				return nil
			}
			rows := [][]string{{"acting as", w.Kind}}
			if w.HR != "" {
				rows = append(rows, []string{"hr", w.HR})
			}
			if w.Applicant != "" {
				rows = append(rows,
					[]string{"applicant", w.Applicant},
					[]string{"applied", fmt.Sprint(w.Applied)},
					[]string{"saved", fmt.Sprint(w.Saved)},
				)
				if w.CanApply {
					rows = append(rows, []string{"can apply", "yes"})
				} else {
					rows = append(rows, []string{"can apply", "no (" + w.Blocker + ")"})
				}
			}
			if w.User != nil {
				rows = append(rows, []string{"name", w.User.DisplayName()})
			}
			return p.Table([]string{"FIELD", "VALUE"}, rows)
		},
	}
}

func newRouteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "route <path>",
		Short: "Check whether the current session may open a portal page",
		Long: `Check the navigation guard for a portal page, e.g. /dashboard or
/applications. Exits non-zero and prints the login page to use when the page is
not allowed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			d := s.AuthorizeRoute(args[0])
			if a.flags.jsonOut {
				if err := a.console().JSON(d); err != nil {
					return err
				}
			}
			if !d.Allowed {
				return fmt.Errorf("%s is not available (%s); redirect to %s, run %q", args[0], d.Reason, d.Redirect, loginHint(d.Redirect))
			}
			if !a.flags.jsonOut {
				a.console().Success("%s is available", args[0])
			}
			return nil
		},
	}
}

func errNotAllowed(d store.Decision) error {
	return fmt.Errorf("not allowed (%s); log in first: %s", d.Reason, loginHint(d.Redirect))
}

func loginHint(redirect string) string {
	switch redirect {
	case store.RouteLoginHR:
		return "jobportal login hr"
	case store.RouteLoginApplicant:
		return "jobportal login applicant"
	default:
		return redirect
	}
}
