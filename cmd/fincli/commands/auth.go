package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"
)

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "authentication and session management",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "log in and store a session for the account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "account email"},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "account password (prompted if omitted)"},
				},
				Action: loginAction,
			},
			{
				Name:  "register",
				Usage: "create a new account",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "account email"},
					&cli.StringFlag{Name: "password", Aliases: []string{"p"}, Usage: "account password (prompted if omitted)"},
				},
				Action: registerAction,
			},
			{
				Name:  "logout",
				Usage: "remove a stored session (default: current)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "email to log out"},
				},
				Action: logoutAction,
			},
			{
				Name:   "whoami",
				Usage:  "show the current session",
				Action: whoamiAction,
			},
			{
				Name:      "switch",
				Usage:     "switch to another authenticated account",
				ArgsUsage: "<email>",
				Action:    switchAction,
			},
			{
				Name:   "sessions",
				Usage:  "list stored sessions",
				Action: sessionsAction,
			},
		},
	}
}

func loginAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}

	email, password, err := credentialsFromFlags(cmd)
	if err != nil {
		return err
	}

	info, err := application.Sessions.Login(ctx, email, password)
	if err != nil {
		return err
	}

	fmt.Printf("Logged in as %s\n", info.Identity)
	if info.TenantID != nil {
		fmt.Printf("  tenant: %d", *info.TenantID)
		if info.Role != nil {
			fmt.Printf(" (%s)", *info.Role)
		}
		fmt.Println()
	}
	fmt.Printf("  token expires: %s\n", info.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	return nil
}

func registerAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}

	email, password, err := credentialsFromFlags(cmd)
	if err != nil {
		return err
	}

	user, err := application.Auth.Register(ctx, email, password)
	if err != nil {
		return err
	}

	fmt.Printf("Registered %s\n", user.Email)
	fmt.Println("You can now log in with: fincli auth login")
	return nil
}

func logoutAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}

	if err := application.Sessions.Logout(ctx, cmd.String("email")); err != nil {
		return err
	}

	fmt.Println("Logged out")
	return nil
}

func whoamiAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}

	info, err := application.Sessions.Context(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Identity: %s\n", info.Identity)
	if info.TenantID != nil {
		fmt.Printf("Tenant:   %d\n", *info.TenantID)
	}
	if info.Role != nil {
		fmt.Printf("Role:     %s\n", *info.Role)
	}
	fmt.Printf("Expires:  %s\n", info.ExpiresAt.Local().Format("2006-01-02 15:04:05"))
	if info.PendingTenantSwitch != nil {
		fmt.Printf("Pending tenant switch to %d (log in again to apply)\n", *info.PendingTenantSwitch)
	}
	return nil
}

func switchAction(ctx context.Context, cmd *cli.Command) error {
	email := cmd.Args().First()
	if email == "" {
		return fmt.Errorf("usage: fincli auth switch <email>")
	}

	application, err := setup(cmd)
	if err != nil {
		return err
	}

	if err := application.Sessions.SwitchIdentity(ctx, email); err != nil {
		return err
	}

	fmt.Printf("Switched to %s\n", email)
	return nil
}

func sessionsAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}

	identities, err := application.Sessions.ListIdentities(ctx)
	if err != nil {
		return err
	}

	if len(identities) == 0 {
		fmt.Println("No stored sessions. Log in with: fincli auth login")
		return nil
	}

	for _, id := range identities {
		marker := " "
		if id.Current {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, id.Name)
	}
	return nil
}

// credentialsFromFlags resolves email and password, prompting for
// whatever the flags left out. The password prompt never echoes.
func credentialsFromFlags(cmd *cli.Command) (email, password string, err error) {
	email = cmd.String("email")
	if email == "" {
		fmt.Print("Email: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return "", "", fmt.Errorf("reading email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	if email == "" {
		return "", "", fmt.Errorf("email is required")
	}

	password = cmd.String("password")
	if password == "" {
		fmt.Print("Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return "", "", fmt.Errorf("reading password: %w", err)
		}
		password = string(raw)
	}
	if password == "" {
		return "", "", fmt.Errorf("password is required")
	}

	return email, password, nil
}
