package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spec-kit/ticket-lease-service/internal/api/dto"
	"github.com/spec-kit/ticket-lease-service/internal/app"
	"github.com/spec-kit/ticket-lease-service/internal/domain"
	"github.com/spec-kit/ticket-lease-service/internal/service"
	apperrors "github.com/spec-kit/ticket-lease-service/pkg/util/errorutil"
)

func ticketCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "ticket", Short: "Manage the ticket pool"}
	cmd.AddCommand(ticketCreateCmd(), ticketListCmd(), ticketSeedCmd())
	return cmd
}

func ticketCreateCmd() *cobra.Command {
	var input service.TicketCreateInput
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Add one unassigned ticket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				ticket, err := a.Tickets.Create(ctx, 0, input)
				if err != nil {
					return describe(err)
				}
				return renderTickets(ctx, a, []domain.Ticket{*ticket})
			})
		},
	}
	cmd.Flags().StringVar(&input.Subject, "subject", "", "ticket subject")
	cmd.Flags().StringVar(&input.Description, "description", "", "ticket description")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func ticketSeedCmd() *cobra.Command {
	var (
		count  int
		prefix string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the pool with generated tickets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				for i := 1; i <= count; i++ {
					_, err := a.Tickets.Create(ctx, 0, service.TicketCreateInput{
						Subject:     fmt.Sprintf("%s %d", prefix, i),
						Description: fmt.Sprintf("Generated ticket %d of %d", i, count),
					})
					if err != nil {
						return describe(err)
					}
				}
				fmt.Printf("created %d tickets\n", count)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 50, "number of tickets")
	cmd.Flags().StringVar(&prefix, "prefix", "Ticket", "subject prefix")
	return cmd
}

func ticketListCmd() *cobra.Command {
	var (
		filter   service.TicketListFilter
		assignee string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tickets in distribution order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				if assignee != "" {
					user, err := a.Accounts.GetByUsername(ctx, assignee)
					if err != nil {
						return describe(err)
					}
					filter.AssignedTo = &user.ID
				}
				tickets, err := a.Tickets.List(ctx, filter)
				if err != nil {
					return err
				}
				return renderTickets(ctx, a, tickets)
			})
		},
	}
	cmd.Flags().BoolVar(&filter.Unassigned, "unassigned", false, "only unassigned tickets")
	cmd.Flags().StringVar(&assignee, "assignee", "", "only tickets held by this username")
	cmd.Flags().IntVar(&filter.Limit, "limit", 100, "page size")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "rows to skip")
	return cmd
}

func leaseCmd() *cobra.Command {
	var quota int
	cmd := &cobra.Command{
		Use:   "lease <username>",
		Short: "Top up an agent's held tickets and print them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				user, err := a.Accounts.GetByUsername(ctx, args[0])
				if err != nil {
					return describe(err)
				}
				held, err := a.Lease.LeaseTickets(ctx, user.ID, quota)
				if err != nil {
					return describe(err)
				}
				return renderTickets(ctx, a, held)
			})
		},
	}
	cmd.Flags().IntVar(&quota, "quota", 0, "tickets to hold (0 uses the configured quota)")
	return cmd
}

func sellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sell <username> <ticket-id>",
		Short: "Mark a ticket held by the agent as sold",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticketID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid ticket id %q", args[1])
			}
			return withApp(cmd.Context(), true, func(ctx context.Context, a *app.App) error {
				user, err := a.Accounts.GetByUsername(ctx, args[0])
				if err != nil {
					return describe(err)
				}
				if err := a.Lease.Sell(ctx, user.ID, ticketID); err != nil {
					return describe(err)
				}
				fmt.Println("Ticket marked as sold.")
				return nil
			})
		},
	}
}

func renderTickets(ctx context.Context, a *app.App, tickets []domain.Ticket) error {
	names, err := a.Accounts.Usernames(ctx, tickets)
	if err != nil {
		return err
	}
	if viper.GetBool("json") {
		return printJSON(dto.NewTicketViews(tickets, names))
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Order", "ID", "Subject", "State", "Assigned To", "Created"})
	for _, t := range tickets {
		assigned := ""
		if t.AssignedTo != nil {
			assigned = strconv.FormatInt(*t.AssignedTo, 10)
		}
		tw.AppendRow(table.Row{t.CreationOrder, t.ID, t.Subject, t.State(), assigned, t.CreatedAt.Format("2006-01-02 15:04:05")})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "Total", len(tickets)})
	tw.Render()
	return nil
}

// describe flattens service errors and their field details into one line.
func describe(err error) error {
	de := apperrors.ToDomainError(err)
	if len(de.Details) == 0 {
		return de
	}
	keys := make([]string, 0, len(de.Details))
	for k := range de.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", k, de.Details[k]))
	}
	return fmt.Errorf("%s (%s)", de.Message, strings.Join(parts, "; "))
}
