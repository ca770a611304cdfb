package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/weiliu/h5client/internal/account"
	"github.com/weiliu/h5client/internal/models"
	"github.com/weiliu/h5client/internal/session"
	"github.com/weiliu/h5client/internal/upload"
)

func (c *cli) newLoginCmd() *cobra.Command {
	var form account.LoginForm

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and cache the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			profile, err := deps.Account.Login(cmd.Context(), form)
			if err != nil {
				return err
			}
			c.out().print(profile, func(w io.Writer) {
				fmt.Fprintf(w, "signed in as %s\n", profile.NickName)
			})
			return nil
		},
	}

	cmd.Flags().StringVarP(&form.Username, "username", "u", "", "Account name")
	cmd.Flags().StringVarP(&form.Password, "password", "p", "", "Password")

	return cmd
}

type registration struct {
	Credentials *account.Credentials `json:"credentials,omitempty"`
	Profile     models.Profile       `json:"profile"`
}

func (c *cli) newRegisterCmd() *cobra.Command {
	var (
		form   account.RegisterForm
		quick  bool
		avatar string
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, err := c.services(ctx)
			if err != nil {
				return err
			}

			var result registration
			if quick {
				creds, profile, err := deps.Account.QuickRegister(ctx)
				if err != nil {
					return err
				}
				result = registration{Credentials: &creds, Profile: profile}
			} else {
				if avatar != "" {
					if err := form.Validate(); err != nil {
						return err
					}
					if form.Icon, err = upload.File(ctx, deps.Uploader, avatar); err != nil {
						return err
					}
				}
				profile, err := deps.Account.Register(ctx, form)
				if err != nil {
					return err
				}
				result = registration{Profile: profile}
			}

			c.out().print(result, func(w io.Writer) {
				fmt.Fprintf(w, "registered %s\n", result.Profile.Username)
				if result.Credentials != nil {
					fmt.Fprintf(w, "  account:  %s\n  nickname: %s\n  password: %s\n",
						result.Credentials.Username, result.Credentials.Nickname, result.Credentials.Password)
				}
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&form.Account, "account", "", "Account name (4-20 letters or digits)")
	cmd.Flags().StringVar(&form.Nickname, "nickname", "", "Display name")
	cmd.Flags().StringVar(&form.Password, "password", "", "Password")
	cmd.Flags().StringVar(&form.ConfirmPassword, "confirm", "", "Password confirmation")
	cmd.Flags().StringVar(&avatar, "avatar", "", "Avatar image to upload")
	cmd.Flags().BoolVar(&quick, "quick", false, "Register a generated account")
	cmd.MarkFlagsMutuallyExclusive("quick", "account")

	return cmd
}

func (c *cli) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			if err := deps.Account.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("signed out locally: %w", err)
			}
			c.out().message("signed out")
			return nil
		},
	}
}

func (c *cli) newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit the signed-in viewer's profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.showProfile(cmd.Context())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Refresh and show the profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.showProfile(cmd.Context())
		},
	})
	cmd.AddCommand(c.newProfileSaveCmd())

	return cmd
}

func (c *cli) showProfile(ctx context.Context) error {
	deps, err := c.services(ctx)
	if err != nil {
		return err
	}
	profile, err := deps.Account.RefreshProfile(ctx)
	if err != nil {
		return requireLogin(err)
	}
	c.out().print(profile, func(w io.Writer) { writeProfile(w, profile) })
	return nil
}

func (c *cli) newProfileSaveCmd() *cobra.Command {
	var nickname, note, email, avatar string

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Update profile fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			flags := cmd.Flags()

			var form account.ProfileForm
			if flags.Changed("nickname") {
				form.NickName = &nickname
			}
			if flags.Changed("note") {
				form.Note = &note
			}
			if flags.Changed("email") {
				form.Email = &email
			}
			if err := form.Validate(); err != nil {
				return err
			}

			deps, err := c.services(ctx)
			if err != nil {
				return err
			}
			if deps.Session.Profile() == nil {
				if _, err := deps.Account.RefreshProfile(ctx); err != nil {
					return requireLogin(err)
				}
			}
			if avatar != "" {
				location, err := upload.File(ctx, deps.Uploader, avatar)
				if err != nil {
					return err
				}
				form.Icon = &location
			}

			profile, err := deps.Account.SaveProfile(ctx, form)
			if err != nil {
				return err
			}
			c.out().print(profile, func(w io.Writer) { writeProfile(w, profile) })
			return nil
		},
	}

	cmd.Flags().StringVar(&nickname, "nickname", "", "Display name (2-8 characters)")
	cmd.Flags().StringVar(&note, "note", "", "Personal note")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&avatar, "avatar", "", "Avatar image to upload (max 5 MiB)")

	return cmd
}

func (c *cli) newPasswordCmd() *cobra.Command {
	var form account.PasswordForm

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Change the password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := form.Validate(); err != nil {
				return err
			}
			deps, err := c.services(ctx)
			if err != nil {
				return err
			}
			if deps.Session.Profile() == nil {
				if _, err := deps.Account.RefreshProfile(ctx); err != nil {
					return requireLogin(err)
				}
			}
			if err := deps.Account.UpdatePassword(ctx, form); err != nil {
				return err
			}
			c.out().message("password updated")
			return nil
		},
	}

	cmd.Flags().StringVar(&form.OldPassword, "old", "", "Current password")
	cmd.Flags().StringVar(&form.NewPassword, "new", "", "New password")
	cmd.Flags().StringVar(&form.ConfirmPassword, "confirm", "", "New password confirmation")

	return cmd
}

// requireLogin maps a missing session onto a readable failure.
func requireLogin(err error) error {
	if errors.Is(err, session.ErrNotLoggedIn) {
		return fmt.Errorf("please log in first: %w", err)
	}
	return err
}
