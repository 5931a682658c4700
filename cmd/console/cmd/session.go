package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"recruitpipe/console/internal/identity/service"
	"recruitpipe/console/internal/platform/rbac"
)

func newLoginCmd(a *app) *cobra.Command {
	var (
		email         string
		password      string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Long: `Sign in with the identity provider, then verify the account with the backend.
The session is stored only when both steps succeed.

Examples:
  console login --email ava@example.com --password-stdin < pw.txt
  console login --email ava@example.com     # prompts for the password`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prefer --password-stdin)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	_ = cmd.MarkFlagRequired("email")

	cmd.RunE = a.session(func(cmd *cobra.Command, args []string) error {
		if password == "" {
			in := newLineInput(cmd.InOrStdin())
			var err error
			if passwordStdin {
				password, err = in.line()
			} else {
				a.printer.Prompt("Password: ")
				password, err = in.secret(a.printer)
			}
			if err != nil {
				return err
			}
		}
		rec, err := a.manager.Login(cmd.Context(), email, password)
		if err != nil {
			return userError(err)
		}
		a.printer.Success("Signed in as %s (%s)", rec.Profile.Name, rec.Role)
		a.printer.Field("landing", rbac.LandingFor(rec.Role))
		return nil
	})
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: a.session(func(cmd *cobra.Command, args []string) error {
			if err := a.manager.Logout(cmd.Context()); err != nil {
				return err
			}
			a.printer.Success("Signed out")
			return nil
		}),
	}
}

type whoami struct {
	Authenticated bool       `json:"authenticated"`
	Role          string     `json:"role,omitempty"`
	Name          string     `json:"name,omitempty"`
	Email         string     `json:"email,omitempty"`
	Username      string     `json:"username,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	Landing       string     `json:"landing"`
}

func newWhoamiCmd(a *app) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.RunE = a.session(func(cmd *cobra.Command, args []string) error {
		w := whoami{Landing: rbac.LoginPath}
		if prof, ok := a.manager.Profile(); ok {
			w.Authenticated = a.manager.IsAuthenticated()
			w.Role = string(a.manager.Role())
			w.Name, w.Email, w.Username = prof.Name, prof.Email, prof.Username
			w.Landing = rbac.LandingFor(a.manager.Role())
			if exp, ok := a.manager.ExpiresAt(); ok {
				w.ExpiresAt = &exp
			}
		}
		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(w)
		}
		if !w.Authenticated {
			a.printer.Println("Not signed in.")
			return nil
		}
		a.printer.Field("name", w.Name)
		a.printer.Field("email", w.Email)
		if w.Username != "" {
			a.printer.Field("username", w.Username)
		}
		a.printer.Field("role", w.Role)
		a.printer.Field("landing", w.Landing)
		if w.ExpiresAt != nil {
			a.printer.Field("expires", w.ExpiresAt.Local().Format(time.RFC3339))
		}
		return nil
	})
	return cmd
}

func newRefreshCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new identity token",
		Args:  cobra.NoArgs,
		RunE: a.session(func(cmd *cobra.Command, args []string) error {
			if !a.manager.IsAuthenticated() {
				return userError(service.ErrNotAuthenticated)
			}
			rec, err := a.manager.Refresh(cmd.Context())
			if err != nil {
				return userError(err)
			}
			a.printer.Success("Session refreshed")
			a.printer.Field("expires", rec.ExpiresAt.Local().Format(time.RFC3339))
			return nil
		}),
	}
}

func newProfileCmd(a *app) *cobra.Command {
	var name, username string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Edit the display name or username",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&name, "name", "", "new display name")
	cmd.Flags().StringVar(&username, "username", "", "new username")
	cmd.RunE = a.session(func(cmd *cobra.Command, args []string) error {
		var upd service.ProfileUpdate
		if cmd.Flags().Changed("name") {
			upd.Name = &name
		}
		if cmd.Flags().Changed("username") {
			upd.Username = &username
		}
		if upd.Name == nil && upd.Username == nil {
			return errors.New("nothing to change: pass --name or --username")
		}
		rec, err := a.manager.UpdateProfile(cmd.Context(), upd)
		if err != nil {
			return userError(err)
		}
		a.printer.Success("Profile updated")
		a.printer.Field("name", rec.Profile.Name)
		if rec.Profile.Username != "" {
			a.printer.Field("username", rec.Profile.Username)
		}
		return nil
	})
	return cmd
}

func newRouteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "route <path>",
		Short: "Show whether the current session may open a dashboard path",
		Long: `Evaluate the route gate for path with the current session.

Examples:
  console route /admin/users      # render, or redirect to your landing page
  console route /login            # redirect when already signed in`,
		Args: cobra.ExactArgs(1),
		RunE: a.session(func(cmd *cobra.Command, args []string) error {
			table := rbac.NewRouteTable(rbac.DefaultRoutes())
			d := table.Resolve(args[0], rbac.RouteInput{
				IsAuthenticated: a.manager.IsAuthenticated(),
				Role:            a.manager.Role(),
			})
			if d.Outcome == rbac.Redirect {
				a.printer.Println("%s %s", d.Outcome, d.Path)
				return nil
			}
			a.printer.Println("%s", d.Outcome)
			return nil
		}),
	}
}

// userError pairs err with the message a person should see.
func userError(err error) error {
	msg := service.FriendlyMessage(err)
	if msg == "" {
		return err
	}
	return fmt.Errorf("%s (%w)", msg, err)
}
