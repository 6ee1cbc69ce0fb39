package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/florianilch/fincli/internal/claims"
)

func tenantCommand() *cli.Command {
	return &cli.Command{
		Name:  "tenant",
		Usage: "tenant context management",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "display the tenant the current session is scoped to",
				Action: tenantShowAction,
			},
			{
				Name:      "switch",
				Usage:     "request a different tenant for the current account",
				ArgsUsage: "<tenant-id>",
				Action:    tenantSwitchAction,
			},
			{
				Name:   "list",
				Usage:  "list tenants the current account belongs to",
				Action: tenantListAction,
			},
			{
				Name:      "rename",
				Usage:     "rename the current tenant",
				ArgsUsage: "<name>",
				Action:    tenantRenameAction,
			},
			{
				Name:   "members",
				Usage:  "list members of the current tenant",
				Action: tenantMembersAction,
			},
			{
				Name:  "invite",
				Usage: "add a user to the current tenant",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Aliases: []string{"u"}, Usage: "auth user id to invite", Required: true},
					&cli.StringFlag{Name: "role", Aliases: []string{"r"}, Usage: "role (owner|admin|member|viewer)", Value: string(claims.RoleMember)},
				},
				Action: tenantInviteAction,
			},
			{
				Name:      "set-role",
				Usage:     "change a member's role",
				ArgsUsage: "<user-id> <role>",
				Action:    tenantSetRoleAction,
			},
			{
				Name:      "remove",
				Usage:     "remove a member from the current tenant",
				ArgsUsage: "<user-id>",
				Action:    tenantRemoveAction,
			},
		},
	}
}

func tenantShowAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}

	tenant, err := application.API.CurrentTenant(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Tenant:  %s (id %d)\n", tenant.Name, tenant.ID)
	fmt.Printf("Created: %s\n", tenant.CreatedAt.Local().Format("2006-01-02"))

	info, err := application.Sessions.Context(ctx)
	if err != nil {
		return err
	}
	if info.Role != nil {
		fmt.Printf("Role:    %s\n", *info.Role)
	}
	if info.PendingTenantSwitch != nil {
		fmt.Printf("Pending switch to tenant %d (log in again to apply)\n", *info.PendingTenantSwitch)
	}
	return nil
}

func tenantSwitchAction(ctx context.Context, cmd *cli.Command) error {
	raw := cmd.Args().First()
	if raw == "" {
		return fmt.Errorf("usage: fincli tenant switch <tenant-id>")
	}
	tenantID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid tenant id %q", raw)
	}

	application, err := setup(cmd)
	if err != nil {
		return err
	}

	// Tenant and role are claims minted by the authentication service;
	// the switch is recorded locally and enforced by the next login.
	if err := application.Sessions.RecordTenantSwitch(ctx, tenantID); err != nil {
		return err
	}

	fmt.Printf("Tenant switch to %d recorded.\n", tenantID)
	fmt.Println("The current token stays valid for the old tenant; log in again to activate the new one.")
	return nil
}

func tenantListAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}

	tenants, err := application.API.ListUserTenants(ctx)
	if err != nil {
		return err
	}

	if len(tenants) == 0 {
		fmt.Println("No tenants found")
		return nil
	}

	info, err := application.Sessions.Context(ctx)
	if err != nil {
		return err
	}

	for _, tenant := range tenants {
		marker := " "
		if info.TenantID != nil && *info.TenantID == tenant.ID {
			marker = "*"
		}
		fmt.Printf("%s %6d  %-24s %s\n", marker, tenant.ID, tenant.Name, tenant.Role)
	}
	return nil
}

func tenantRenameAction(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return fmt.Errorf("usage: fincli tenant rename <name>")
	}

	application, err := setup(cmd)
	if err != nil {
		return err
	}

	tenant, err := application.API.UpdateTenant(ctx, name)
	if err != nil {
		return err
	}

	fmt.Printf("Renamed tenant %d to %q\n", tenant.ID, tenant.Name)
	return nil
}

func tenantMembersAction(ctx context.Context, cmd *cli.Command) error {
	application, err := setup(cmd)
	if err != nil {
		return err
	}

	members, err := application.API.ListTenantMembers(ctx)
	if err != nil {
		return err
	}

	if len(members) == 0 {
		fmt.Println("No members found")
		return nil
	}

	for _, m := range members {
		fmt.Printf("%6d  %-30s %s\n", m.UserID, m.Email, m.Role)
	}
	fmt.Printf("Total members: %d\n", len(members))
	return nil
}

func tenantInviteAction(ctx context.Context, cmd *cli.Command) error {
	role, err := claims.ParseRole(cmd.String("role"))
	if err != nil {
		return err
	}

	application, err := setup(cmd)
	if err != nil {
		return err
	}

	member, err := application.API.InviteMember(ctx, cmd.String("user"), string(role))
	if err != nil {
		return err
	}

	fmt.Printf("Invited user %d as %s\n", member.UserID, member.Role)
	return nil
}

func tenantSetRoleAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("usage: fincli tenant set-role <user-id> <role>")
	}
	userID, err := memberIDArg(cmd)
	if err != nil {
		return err
	}
	role, err := claims.ParseRole(cmd.Args().Get(1))
	if err != nil {
		return err
	}

	application, err := setup(cmd)
	if err != nil {
		return err
	}

	member, err := application.API.UpdateMemberRole(ctx, userID, string(role))
	if err != nil {
		return err
	}

	fmt.Printf("User %d is now %s\n", member.UserID, member.Role)
	return nil
}

func tenantRemoveAction(ctx context.Context, cmd *cli.Command) error {
	userID, err := memberIDArg(cmd)
	if err != nil {
		return err
	}

	application, err := setup(cmd)
	if err != nil {
		return err
	}

	if err := application.API.RemoveMember(ctx, userID); err != nil {
		return err
	}

	fmt.Printf("Removed user %d from the tenant\n", userID)
	return nil
}

func memberIDArg(cmd *cli.Command) (int64, error) {
	raw := cmd.Args().First()
	if raw == "" {
		return 0, fmt.Errorf("a member user id is required")
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return userID, nil
}
