package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hq-launcher/hql/internal/core"
	"github.com/hq-launcher/hql/internal/depot"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the Steam login used for game downloads",
	Long: `Manage the Steam login the depot tool uses to download game files.

Use 'hql auth login' to log in.
Use 'hql auth logout' to forget the login.
Use 'hql auth status' to see who is logged in.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Log in to Steam",
	Long: `Log in to Steam through the depot tool. The password is read without echo
and is never stored; the depot tool remembers the session itself.

If Steam asks for a Steam Guard code you will be prompted for it. If it asks
for confirmation in the mobile app, approve the login there.

Examples:
  hql auth login
  hql auth login mysteamname
  hql auth login mysteamname --code ABC12`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the Steam login",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the Steam login status",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var authCode string

func init() {
	authLoginCmd.Flags().StringVar(&authCode, "code", "", "Steam Guard code to submit up front")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	var username string
	if len(args) > 0 {
		username = args[0]
	} else {
		fmt.Print("Steam username: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return fmt.Errorf("username cannot be empty")
	}

	password, err := readSecret(reader, "Steam password: ")
	if err != nil {
		return fmt.Errorf("reading password: %w", err)
	}

	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	ctx := cmd.Context()
	events, unsubscribe := svc.Bus().Subscribe(16)
	defer unsubscribe()

	auth := svc.Auth()
	id, err := auth.Start(ctx, username, password)
	if err != nil {
		return err
	}
	if authCode != "" {
		if err := auth.SubmitCode(id, authCode); err != nil {
			return err
		}
	}

	if err := followLogin(ctx, auth, id, events, reader); err != nil {
		return err
	}

	snap, err := auth.Wait(ctx, id)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	fmt.Printf("Logged in as %s.\n", snap.Username)
	return nil
}

// followLogin answers prompts of session id until it ends
func followLogin(ctx context.Context, auth *depot.Authenticator, id int64, events <-chan core.Event, reader *bufio.Reader) error {
	awaitingCode := depot.PhaseAwaitingTwoFactor.String()
	awaitingMobile := depot.PhaseAwaitingMobileConfirmation.String()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return nil
			}
			if e.Name != core.EventDepotAuth || e.SessionID != id {
				if e.Name == core.EventDepotOutput && verbose {
					fmt.Fprintln(os.Stderr, e.Message)
				}
				continue
			}

			switch e.SessionPhase {
			case awaitingCode:
				code, err := readLine(reader, "Steam Guard code: ")
				if err != nil {
					return fmt.Errorf("reading code: %w", err)
				}
				if err := auth.SubmitCode(id, code); err != nil {
					fmt.Fprintf(os.Stderr, "warning: %v\n", err)
				}
			case awaitingMobile:
				fmt.Println("Approve the login in the Steam mobile app...")
			case depot.PhaseSucceeded.String(), depot.PhaseFailed.String():
				return nil
			}
		}
	}
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	if err := svc.Auth().Logout(); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	fmt.Println("Logged out.")
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	svc, err := initService()
	if err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer closeService(svc)

	state, err := svc.Auth().LoginState()
	if err != nil {
		return fmt.Errorf("reading login state: %w", err)
	}
	if !state.LoggedIn {
		fmt.Println("Steam: not logged in")
		return nil
	}
	fmt.Printf("Steam: logged in as %s\n", maskUsername(state.Username))
	return nil
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt)

	if term.IsTerminal(int(os.Stdin.Fd())) {
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println() // Add newline after hidden input
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	// Fallback for non-terminal input (e.g., piped input)
	return readLine(reader, "")
}

func readLine(reader *bufio.Reader, prompt string) (string, error) {
	if prompt != "" {
		fmt.Print(prompt)
	}
	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// maskUsername shows the first and last two characters of a username
func maskUsername(name string) string {
	if len(name) <= 4 {
		return name
	}
	return name[:2] + strings.Repeat("*", len(name)-4) + name[len(name)-2:]
}
