package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/iliyamo/product-catalog/internal/client"
)

func (a *app) loginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session cookies",
		RunE: func(_ *cobra.Command, _ []string) error {
			if username == "" || password == "" {
				return errors.New("--username and --password are required")
			}
			return a.withSession(func(ctx context.Context, c *client.Client) error {
				u, err := c.Login(ctx, username, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "logged in as %s (%s), landing %s\n", u.Username, u.Role, u.Landing)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "username or email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget the cookies",
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.withSession(func(ctx context.Context, c *client.Client) error {
				if err := c.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(a.out, "logged out")
				return nil
			})
		},
	}
}

func (a *app) meCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the logged in user",
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.withSession(func(ctx context.Context, c *client.Client) error {
				u, err := c.Me(ctx)
				if err != nil {
					return err
				}
				return a.printJSON(u)
			})
		},
	}
}

func (a *app) productsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "products", Short: "Browse and manage products"}

	var search string
	var page, limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List one page of products with signed image URLs",
		RunE: func(_ *cobra.Command, _ []string) error {
			return a.withSession(func(ctx context.Context, c *client.Client) error {
				p, err := c.ListProducts(ctx, search, page, limit)
				if err != nil {
					return err
				}
				return a.printJSON(p)
			})
		},
	}
	list.Flags().StringVar(&search, "search", "", "case-insensitive name filter")
	list.Flags().IntVar(&page, "page", 1, "page number")
	list.Flags().IntVar(&limit, "limit", 10, "page size (max 100)")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a product and its images (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid id %q", args[0])
			}
			return a.withSession(func(ctx context.Context, c *client.Client) error {
				if err := c.DeleteProduct(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "product %d deleted\n", id)
				return nil
			})
		},
	}

	cmd.AddCommand(list, del)
	return cmd
}
