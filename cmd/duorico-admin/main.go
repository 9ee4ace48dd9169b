// duorico-admin is the operator CLI: account creation, couple pairing and
// inspection, run directly against the SQLite database.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"duorico/internal/auth"
	"duorico/internal/config"
	"duorico/internal/storage"
)

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "duorico-admin",
	Short:         "Administer duorico accounts and couples",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)

	rootCmd.AddCommand(coupleCmd)
	coupleCmd.AddCommand(couplePairCmd)
	coupleCmd.AddCommand(coupleUnpairCmd)

	userCreateCmd.Flags().String("email", "", "Account email (required)")
	userCreateCmd.Flags().String("name", "", "Full name (required)")
	userCreateCmd.Flags().String("password", "", "Password, prompted when omitted")
	userCreateCmd.MarkFlagRequired("email")
	userCreateCmd.MarkFlagRequired("name")
}

// openServices builds the repository and identity service from the same
// configuration the server uses.
func openServices() (*storage.Repository, *auth.Service, error) {
	cfg := config.Load()
	repo, err := storage.New(cfg.SQLiteDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return repo, auth.NewService(repo, cfg.JWTSecret, cfg.TokenTTL), nil
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		email, _ := cmd.Flags().GetString("email")
		name, _ := cmd.Flags().GetString("name")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			fmt.Fprint(os.Stderr, "Password: ")
			if _, err := fmt.Scanln(&password); err != nil {
				return fmt.Errorf("read password: %w", err)
			}
		}

		repo, authSvc, err := openServices()
		if err != nil {
			return err
		}
		defer repo.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		u, err := authSvc.SignUp(ctx, email, name, password)
		if err != nil {
			return err
		}
		fmt.Printf("Created account %s (%s)\n", u.Email, u.ID)
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(_ *cobra.Command, _ []string) error {
		repo, _, err := openServices()
		if err != nil {
			return err
		}
		defer repo.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		users, err := repo.ListUsers(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tEMAIL\tNAME\tCOUPLE\tCREATED")
		for _, u := range users {
			couple := u.CoupleID
			if couple == "" {
				couple = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				u.ID, u.Email, u.FullName, couple, u.CreatedAt.Format(time.DateOnly))
		}
		return w.Flush()
	},
}

var coupleCmd = &cobra.Command{
	Use:   "couple",
	Short: "Manage couple pairing",
}

var couplePairCmd = &cobra.Command{
	Use:   "pair EMAIL PARTNER_EMAIL",
	Short: "Pair two accounts into a couple",
	Args:  cobra.ExactArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		repo, authSvc, err := openServices()
		if err != nil {
			return err
		}
		defer repo.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		u, err := repo.GetUserByEmail(ctx, args[0])
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no account with email %q", args[0])
			}
			return err
		}

		coupleID, err := authSvc.Pair(ctx, u.ID, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Paired %s and %s as couple %s\n", args[0], args[1], coupleID)
		return nil
	},
}

var coupleUnpairCmd = &cobra.Command{
	Use:   "unpair EMAIL",
	Short: "Remove an account from its couple",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		repo, authSvc, err := openServices()
		if err != nil {
			return err
		}
		defer repo.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		u, err := repo.GetUserByEmail(ctx, args[0])
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no account with email %q", args[0])
			}
			return err
		}

		if err := authSvc.Unpair(ctx, u.ID); err != nil {
			return err
		}
		fmt.Printf("Unpaired %s\n", args[0])
		return nil
	},
}
