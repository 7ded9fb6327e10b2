package main

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/luminote/luminote/adapters/hasher"
	"github.com/luminote/luminote/adapters/idgen"
	"github.com/luminote/luminote/adapters/sqlite"
	"github.com/luminote/luminote/config"
	"github.com/luminote/luminote/ports"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage learner accounts",
	Long: `Manage luminote learner accounts.

Each account carries a token balance that generation requests draw
down; accounts with a zero balance are refused before any upstream
call is made.

Examples:
  luminote users list
  luminote users create --username=alice --balance=100000
  luminote users get alice
  luminote users topup alice 50000`,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active users",
	RunE:  runUsersList,
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	RunE:  runUsersCreate,
}

var usersGetCmd = &cobra.Command{
	Use:   "get <user-id-or-username>",
	Short: "Get user details",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersGet,
}

var usersTopupCmd = &cobra.Command{
	Use:   "topup <user-id-or-username> <tokens>",
	Short: "Add tokens to a user's balance",
	Args:  cobra.ExactArgs(2),
	RunE:  runUsersTopup,
}

var (
	userUsername string
	userPassword string
	userBalance  int
)

func init() {
	rootCmd.AddCommand(usersCmd)

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersGetCmd)
	usersCmd.AddCommand(usersTopupCmd)

	usersCreateCmd.Flags().StringVar(&userUsername, "username", "", "username (required)")
	usersCreateCmd.Flags().StringVar(&userPassword, "password", "", "password (will prompt if not provided)")
	usersCreateCmd.Flags().IntVar(&userBalance, "balance", 0, "initial token balance")
	usersCreateCmd.MarkFlagRequired("username")
}

func runUsersList(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	users, err := sqlite.NewUserStore(db).ListActive(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users found.")
		fmt.Println()
		fmt.Println("Create a user with: luminote users create --username=alice")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tBALANCE\tSTATUS")
	fmt.Fprintln(w, "--\t--------\t-------\t------")

	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", u.ID, u.Username, u.TokenBalance, u.Status)
	}

	w.Flush()
	return nil
}

func runUsersCreate(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	password := userPassword
	if password == "" {
		password, err = promptPassword("Password: ")
		if err != nil {
			return err
		}
		if password == "" {
			return fmt.Errorf("password cannot be empty")
		}
	}

	hash, err := hasher.NewBcrypt(0).Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := ports.User{
		ID:           idgen.UUID{}.New(),
		Username:     userUsername,
		PasswordHash: hash,
		TokenBalance: userBalance,
		Status:       "active",
	}

	if err := sqlite.NewUserStore(db).Create(context.Background(), user); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("%s Created user: %s\n", checkMark, user.ID)
	fmt.Printf("   Username: %s\n", user.Username)
	fmt.Printf("   Balance:  %d tokens\n", user.TokenBalance)
	return nil
}

func runUsersGet(cmd *cobra.Command, args []string) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := getUser(sqlite.NewUserStore(db), args[0])
	if err != nil {
		return fmt.Errorf("user not found: %s", args[0])
	}

	fmt.Printf("ID:       %s\n", user.ID)
	fmt.Printf("Username: %s\n", user.Username)
	fmt.Printf("Balance:  %d tokens\n", user.TokenBalance)
	fmt.Printf("Status:   %s\n", user.Status)
	fmt.Printf("Created:  %s\n", user.CreatedAt.Format("2006-01-02 15:04:05"))
	if user.Profile != "" {
		fmt.Printf("Profile:  %s\n", user.Profile)
	}
	return nil
}

func runUsersTopup(cmd *cobra.Command, args []string) error {
	var tokens int
	if _, err := fmt.Sscanf(args[1], "%d", &tokens); err != nil || tokens <= 0 {
		return fmt.Errorf("invalid token amount: %s", args[1])
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := sqlite.NewUserStore(db)
	user, err := getUser(store, args[0])
	if err != nil {
		return fmt.Errorf("user not found: %s", args[0])
	}

	res, err := db.Exec(`UPDATE users SET token_balance = token_balance + ? WHERE id = ?`, tokens, user.ID)
	if err != nil {
		return fmt.Errorf("failed to top up: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user not found: %s", user.ID)
	}

	fmt.Printf("%s Added %d tokens to %s (now %d)\n", checkMark, tokens, user.Username, user.TokenBalance+tokens)
	return nil
}

func openDatabase() (*sqlite.DB, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := sqlite.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return db, nil
}

// getUser resolves either a user id or a username.
func getUser(store *sqlite.UserStore, identifier string) (ports.User, error) {
	ctx := context.Background()
	if u, err := store.Get(ctx, identifier); err == nil {
		return u, nil
	}
	return store.GetByUsername(ctx, identifier)
}

func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}
