package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"recruitpipe/console/internal/backend"
	"recruitpipe/console/internal/identity/service"
	"recruitpipe/console/internal/mfa/stepup"
)

const (
	maxCodeAttempts     = 3
	maxPasswordAttempts = 3
)

var errGaveUp = errors.New("too many failed attempts")

func newPasswordCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "password",
		Short: "Change the password after step-up verification",
		Long: `Send a one-time code to the signed-in email, verify it, then set a new password.

At the code prompt, type the six digits or "resend" to request another code once the
cooldown has passed. With OTP_AUTOFILL=true a development backend's code is filled in.`,
		Args: cobra.NoArgs,
		RunE: a.session(func(cmd *cobra.Command, args []string) error {
			if !a.manager.IsAuthenticated() {
				return userError(service.ErrNotAuthenticated)
			}
			flow := stepup.New(a.backend, a.manager, stepup.Options{
				Cooldown:    a.cfg.Cooldown(),
				DevAutofill: a.cfg.OTPAutofill,
				Logger:      a.logger,
				Audit:       a.audit,
			})
			defer flow.Close()

			ctx := cmd.Context()
			if err := flow.Send(ctx); err != nil {
				return err
			}
			in := newLineInput(cmd.InOrStdin())
			if err := verifyCode(cmd, a.printer, flow, in); err != nil {
				return err
			}
			a.printer.Success("Identity verified")
			if err := choosePassword(cmd, a.printer, flow, in); err != nil {
				return err
			}
			a.printer.Success("Password changed")
			return nil
		}),
	}
}

func verifyCode(cmd *cobra.Command, p *printer, flow *stepup.Flow, in *lineInput) error {
	ctx := cmd.Context()
	p.Info("A verification code was sent to %s", flow.Snapshot().Email)
	for failures := 0; failures < maxCodeAttempts; {
		if st := flow.Snapshot(); st.DevCode != "" && flow.Complete() {
			p.Info("Using development code %s", st.DevCode)
		} else {
			p.Prompt("Code: ")
			answer, err := in.line()
			if err != nil {
				return err
			}
			answer = strings.TrimSpace(answer)
			if strings.EqualFold(answer, "resend") {
				if err := flow.Send(ctx); err != nil {
					if errors.Is(err, stepup.ErrCooldownActive) {
						p.Warn("You can request a new code in %ds", flow.Snapshot().CooldownRemaining)
						continue
					}
					return err
				}
				p.Info("A new code was sent")
				continue
			}
			if !flow.Paste(0, answer) {
				p.Warn("%s", stepup.ErrIncompleteCode)
				continue
			}
		}
		err := flow.Verify(ctx)
		if err == nil {
			return nil
		}
		switch {
		case errors.Is(err, backend.ErrNotAuthenticated):
			return fmt.Errorf("your session is no longer valid, sign in again: %w", err)
		case !errors.Is(err, stepup.ErrCodeRejected):
			return err
		}
		failures++
		p.Warn("That code was not accepted")
	}
	return errGaveUp
}

func choosePassword(cmd *cobra.Command, p *printer, flow *stepup.Flow, in *lineInput) error {
	for attempt := 0; attempt < maxPasswordAttempts; attempt++ {
		p.Prompt("New password: ")
		pw, err := in.secret(p)
		if err != nil {
			return err
		}
		p.Prompt("Confirm password: ")
		confirm, err := in.secret(p)
		if err != nil {
			return err
		}
		if err := flow.SetPassword(pw, confirm); err != nil {
			return err
		}
		err = flow.Reset(cmd.Context())
		switch {
		case err == nil:
			return nil
		case errors.Is(err, stepup.ErrPolicyViolation):
			p.Warn("The password does not meet every requirement:")
			p.Policy(flow.PolicyReport())
		case errors.Is(err, stepup.ErrPasswordMismatch):
			p.Warn("%s", stepup.ErrPasswordMismatch)
		default:
			return err
		}
	}
	return errGaveUp
}
