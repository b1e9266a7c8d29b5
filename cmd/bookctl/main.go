// Command bookctl books, lists and cancels appointments against a running
// booking server over gRPC.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	pb "appointment-booking-api/internal/rpc/bookingv1"
)

// dial is replaced in tests.
var dial = func(addr string) (pb.BookingClient, io.Closer, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return pb.NewBookingClient(conn), conn, nil
}

type app struct {
	server    string
	tokenFile string

	client pb.BookingClient
	closer io.Closer
}

func (a *app) connect(cmd *cobra.Command, _ []string) error {
	c, closer, err := dial(a.server)
	if err != nil {
		return err
	}
	a.client, a.closer = c, closer
	return nil
}

func (a *app) close(*cobra.Command, []string) error {
	if a.closer != nil {
		return a.closer.Close()
	}
	return nil
}

// authed attaches the saved session, if any, to ctx.
func (a *app) authed(ctx context.Context) context.Context {
	tok, err := loadToken(a.tokenFile)
	if err != nil || tok == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+tok)
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bookctl-token"
	}
	return filepath.Join(home, ".bookctl", "token")
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:                "bookctl",
		Short:              "Book appointment slots",
		SilenceUsage:       true,
		PersistentPreRunE:  a.connect,
		PersistentPostRunE: a.close,
	}
	root.PersistentFlags().StringVar(&a.server, "server", envOr("BOOKCTL_SERVER", "localhost:50051"), "gRPC server address")
	root.PersistentFlags().StringVar(&a.tokenFile, "token-file", defaultTokenFile(), "where the session token is kept")

	root.AddCommand(
		registerCmd(a),
		loginCmd(a),
		logoutCmd(a),
		bookCmd(a),
		listCmd(a),
		cancelCmd(a),
		slotsCmd(a),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
