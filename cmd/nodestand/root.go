package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"nodestand-backend/domain/core/entities"
	"nodestand-backend/domain/core/valueobjects"
	"nodestand-backend/infrastructure/config"
	"nodestand-backend/infrastructure/di"
	"nodestand-backend/pkg/auth"
)

// opener builds the application container for one command run.
type opener func(ctx context.Context) (*di.Container, func(), error)

func defaultOpener(ctx context.Context) (*di.Container, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	return di.InitializeContainer(ctx, cfg)
}

// NewRootCmd creates the root command with all subcommands registered.
func NewRootCmd(open opener) *cobra.Command {
	root := &cobra.Command{
		Use:           "nodestand",
		Short:         "nodestand - administer the argument graph",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(newSeedCmd(open))
	root.AddCommand(newGraphCmd(open))
	root.AddCommand(newSearchCmd(open))
	root.AddCommand(newPublishCmd(open))
	root.AddCommand(newTokenCmd())
	return root
}

func withContainer(cmd *cobra.Command, open opener, fn func(ctx context.Context, c *di.Container) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, cleanup, err := open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open application: %w", err)
	}
	defer cleanup()
	return fn(ctx, c)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newGraphCmd(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "graph <stable-id>",
		Short: "Print the graph around the current version of a lineage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stableID, err := valueobjects.NewStableIDFromString(args[0])
			if err != nil {
				return err
			}
			return withContainer(cmd, open, func(ctx context.Context, c *di.Container) error {
				graph, err := c.Service.GetGraph(ctx, stableID)
				if err != nil {
					return err
				}
				for _, n := range graph.Nodes {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %-14s v%-4d %s\n", n.ID(), n.Type(), n.BuildVersion(), n.Body().Title())
				}
				for _, e := range graph.Edges {
					fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", e.Parent, e.Child)
				}
				return nil
			})
		},
	}
}

func newSearchCmd(open opener) *cobra.Command {
	var (
		kinds []string
		user  string
	)
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search node titles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(kinds) == 0 {
				kinds = []string{"assertion", "interpretation", "source"}
			}
			parsed := make([]entities.Kind, 0, len(kinds))
			for _, k := range kinds {
				kind, err := entities.ParseKind(k)
				if err != nil {
					return err
				}
				parsed = append(parsed, kind)
			}
			return withContainer(cmd, open, func(ctx context.Context, c *di.Container) error {
				bodies, err := c.Service.Search(ctx, user, args[0], parsed)
				if err != nil {
					return err
				}
				for _, b := range bodies {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %-14s %s\n", b.MajorVersion().StableID, b.Kind(), b.Title())
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&kinds, "type", nil, "restrict to node types (assertion, interpretation, source)")
	cmd.Flags().StringVar(&user, "user", "", "include this user's drafts")
	return cmd
}

func newPublishCmd(open opener) *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "publish <node-id>",
		Short: "Publish a draft together with its connected drafts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeID, err := valueobjects.NewNodeIDFromString(args[0])
			if err != nil {
				return err
			}
			return withContainer(cmd, open, func(ctx context.Context, c *di.Container) error {
				result, err := c.Service.Publish(ctx, user, nodeID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "published %d node(s) at build version %d\n", len(result.Published), result.BuildVersion)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id that owns the draft's author")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Sign an API token for a user with the configured secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			v, err := auth.NewJWTValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
			if err != nil {
				return err
			}
			token, err := v.GenerateToken(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
