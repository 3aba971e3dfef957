package main

import (
	"context"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spec-kit/ticket-lease-service/internal/api/dto"
	"github.com/spec-kit/ticket-lease-service/internal/app"
	"github.com/spec-kit/ticket-lease-service/internal/domain"
	"github.com/spec-kit/ticket-lease-service/internal/service"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage accounts"}
	cmd.AddCommand(userCreateCmd(), userListCmd())
	return cmd
}

func userCreateCmd() *cobra.Command {
	var input service.UserCreateInput
	var role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin or agent account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Role = domain.Role(role)
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				user, err := a.Accounts.Create(ctx, input)
				if err != nil {
					return describe(err)
				}
				return renderUsers([]domain.User{*user})
			})
		},
	}
	cmd.Flags().StringVar(&input.Username, "username", "", "login name")
	cmd.Flags().StringVar(&input.Password, "password", "", "password")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleAgent), "admin or agent")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func userListCmd() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				users, err := a.Accounts.List(ctx, limit, offset)
				if err != nil {
					return err
				}
				return renderUsers(users)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "page size")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	return cmd
}

func renderUsers(users []domain.User) error {
	if viper.GetBool("json") {
		views := make([]dto.UserView, 0, len(users))
		for i := range users {
			views = append(views, dto.NewUserView(&users[i]))
		}
		return printJSON(views)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Username", "Role", "Active", "Created"})
	for _, u := range users {
		tw.AppendRow(table.Row{u.ID, u.Username, u.Role, u.Active, u.CreatedAt.Format("2006-01-02 15:04:05")})
	}
	tw.Render()
	return nil
}
