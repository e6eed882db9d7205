package main

import (
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sensordash/internal/types"
)

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Sign in and persist the session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		if err := a.sessions.Login(cmd.Context(), args[0], password); err != nil {
			return err
		}
		if u := a.sessions.User(); u != nil {
			fmt.Printf("Signed in as %s", u.Username)
			if u.IsAdmin {
				fmt.Print(" (admin)")
			}
			fmt.Println()
		} else {
			fmt.Println("Signed in")
		}
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register <username> <email>",
	Short: "Create a new account (does not sign in)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}
		if err := a.sessions.Register(cmd.Context(), args[0], args[1], password); err != nil {
			return err
		}
		fmt.Println("Account created. Sign in with: sensordash login", args[0])
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if !a.sessions.IsAuthenticated() {
			fmt.Println("Not signed in")
			return nil
		}
		u := a.sessions.User()
		if u == nil {
			fmt.Println("Signed in (profile not confirmed)")
			return nil
		}
		fmt.Printf("%s <%s>", u.Username, u.Email)
		if u.IsAdmin {
			fmt.Print(" admin")
		}
		fmt.Println()
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the persisted session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		a.sessions.Logout()
		fmt.Println("Signed out")
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Update the current user's profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		email, _ := cmd.Flags().GetString("email")
		changePassword, _ := cmd.Flags().GetBool("password")
		if email == "" && !changePassword {
			return fmt.Errorf("nothing to update: pass --email and/or --password")
		}

		a, err := newApp()
		if err != nil {
			return err
		}

		var up types.ProfileUpdate
		if email != "" {
			up.Email = &email
		}
		if changePassword {
			password, err := readPassword("New password: ")
			if err != nil {
				return err
			}
			up.Password = &password
		}
		if err := a.sessions.UpdateProfile(cmd.Context(), up); err != nil {
			return err
		}
		fmt.Println("Profile updated")
		return nil
	},
}

func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	data, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(data), nil
}

func init() {
	profileCmd.Flags().String("email", "", "new email address")
	profileCmd.Flags().Bool("password", false, "prompt for a new password")
	rootCmd.AddCommand(loginCmd, registerCmd, whoamiCmd, logoutCmd, profileCmd)
}
