package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	pb "appointment-booking-api/internal/rpc/bookingv1"
)

func password(cmd *cobra.Command, flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	return promptPassword(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password: ")
}

func registerCmd(a *app) *cobra.Command {
	var email, name, pw string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and start a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := password(cmd, pw)
			if err != nil {
				return err
			}
			resp, err := a.client.Register(cmd.Context(), &pb.RegisterRequest{Email: email, Password: p, Name: name})
			if err != nil {
				return err
			}
			if err := saveToken(a.tokenFile, resp.Token); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "registered %s (%s), logged in until %s\n", resp.User.Email, resp.User.ID, resp.ExpiresAt)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&pw, "password", "", "password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func loginCmd(a *app) *cobra.Command {
	var email, pw string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Start a session and remember its token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := password(cmd, pw)
			if err != nil {
				return err
			}
			resp, err := a.client.Login(cmd.Context(), &pb.LoginRequest{Email: email, Password: p})
			if err != nil {
				return err
			}
			if err := saveToken(a.tokenFile, resp.Token); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "logged in as %s until %s\n", resp.User.Email, resp.ExpiresAt)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&pw, "password", "", "password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := a.client.Logout(a.authed(cmd.Context()), &pb.LogoutRequest{}); err != nil {
				return err
			}
			if err := clearToken(a.tokenFile); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return nil
		},
	}
}

func bookCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "book DATE TIME",
		Short: "Book a slot, e.g. bookctl book 2025-03-10 14:00",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.client.CreateAppointment(a.authed(cmd.Context()), &pb.CreateAppointmentRequest{Date: args[0], Time: args[1]})
			if err != nil {
				return err
			}
			ap := resp.Appointment
			fmt.Fprintf(cmd.OutOrStdout(), "booked #%d on %s at %s\n", ap.ID, ap.Date, ap.Time)
			return nil
		},
	}
}

func listCmd(a *app) *cobra.Command {
	var mine bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List booked appointments",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := a.client.ListAppointments(a.authed(cmd.Context()), &pb.ListAppointmentsRequest{Mine: mine})
			if err != nil {
				return err
			}
			if len(resp.Appointments) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no appointments")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tTIME\tOWNER")
			for _, ap := range resp.Appointments {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", ap.ID, ap.Date, ap.Time, ap.Owner)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&mine, "mine", false, "only my appointments")
	return cmd
}

func cancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel an appointment by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}
			if _, err := a.client.CancelAppointment(a.authed(cmd.Context()), &pb.CancelAppointmentRequest{ID: id}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled #%d\n", id)
			return nil
		},
	}
}

func slotsCmd(a *app) *cobra.Command {
	var start, end, step string
	cmd := &cobra.Command{
		Use:   "slots DATE",
		Short: "Show free slots on a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.client.AvailableSlots(cmd.Context(), &pb.AvailableSlotsRequest{
				Date: args[0], Start: start, End: end, Step: step,
			})
			if err != nil {
				return err
			}
			if len(resp.Slots) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no free slots on %s\n", resp.Date)
				return nil
			}
			for _, s := range resp.Slots {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "first slot (server default when empty)")
	cmd.Flags().StringVar(&end, "end", "", "last slot (server default when empty)")
	cmd.Flags().StringVar(&step, "step", "", "slot length, e.g. 30m")
	return cmd
}
