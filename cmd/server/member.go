package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dkeye/Relay/internal/config"
	"github.com/dkeye/Relay/internal/domain"
)

var errVolatileStore = errors.New("memberships need a persistent store (store.driver: sqlite)")

// memberCmd edits durable room memberships directly in the configured store.
// The REST surface only lets existing members grant access, so the first
// member of a room is written here.
func memberCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage durable room memberships",
	}
	cmd.AddCommand(memberEditCmd("add", "Grant users a room membership"))
	cmd.AddCommand(memberEditCmd("remove", "Revoke users' room membership"))
	return cmd
}

func memberEditCmd(verb, short string) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <room-id> <user-id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Store.Driver != "sqlite" {
				return errVolatileStore
			}
			room, err := domain.ParseRoomID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := openStores(ctx, cfg.Store)
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer st.close()

			for _, id := range args[1:] {
				user := domain.UserID(id)
				if verb == "add" {
					err = st.memberships.AddMember(ctx, room, user)
				} else {
					err = st.memberships.RemoveMember(ctx, room, user)
				}
				if err != nil {
					return fmt.Errorf("%s %s: %w", verb, id, err)
				}
			}
			members, err := st.memberships.RoomMembers(ctx, room)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", room, members)
			return nil
		},
	}
}
