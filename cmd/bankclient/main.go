package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/eaglebank/webclient/internal/app"
	"github.com/eaglebank/webclient/internal/config"
	"github.com/eaglebank/webclient/internal/notify"
	"github.com/eaglebank/webclient/internal/transfer"
	"github.com/eaglebank/webclient/shared/cqrs"
	"github.com/eaglebank/webclient/shared/logger"
	"github.com/eaglebank/webclient/shared/models"
)

const usage = `usage: bankclient [flags] <command> [args]

commands:
  signup                         create a user (--email --password --first-name ...)
  verify <token>                 verify an email address
  login                          sign in (--email --password)
  logout                         sign out and forget the session
  dashboard                      greeting, current account and connectivity
  accounts [list]                list accounts
  accounts create                open a new account
  accounts default <id>          make an account the default
  accounts use <id>              switch the current account
  transactions                   list transactions (--account)
  transfer                       send money (--to --amount [--description] [--from])
  profile [show]                 show the profile
  profile update                 change profile fields
  listen                         stay connected and print transfer notifications
`

type cliFlags struct {
	email, password     string
	firstName, lastName string
	phone, birthDate    string
	account, from, to   string
	amount, description string
}

func main() {
	fs := pflag.NewFlagSet("bankclient", pflag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage, "\nflags:\n")
		fs.PrintDefaults()
	}
	config.ClientFlags(fs)

	var f cliFlags
	fs.StringVar(&f.email, "email", "", "email address")
	fs.StringVar(&f.password, "password", "", "password")
	fs.StringVar(&f.firstName, "first-name", "", "first name")
	fs.StringVar(&f.lastName, "last-name", "", "last name")
	fs.StringVar(&f.phone, "phone", "", "phone number")
	fs.StringVar(&f.birthDate, "birth-date", "", "birth date (YYYY-MM-DD)")
	fs.StringVar(&f.account, "account", "", "account id (defaults to the current account)")
	fs.StringVar(&f.from, "from", "", "source account id (defaults to the current account)")
	fs.StringVar(&f.to, "to", "", "recipient account number")
	fs.StringVar(&f.amount, "amount", "", "amount to send")
	fs.StringVar(&f.description, "description", "", "transfer description")
	_ = fs.Parse(os.Args[1:])

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(fs)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logr, err := logger.NewConsole(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logr.Sync() }()

	a, err := app.New(cfg, app.Options{
		Logger:    logr,
		ToastSink: notify.NewWriterSink(os.Stdout),
		Widget:    notify.LinkWidget{Domain: cfg.VideoDomain, Out: os.Stdout},
		OnLogout: func(reason app.LogoutReason) {
			if reason != app.LogoutRequested {
				fmt.Printf("Signed out (%s). Please log in again.\n", reason)
			}
		},
	})
	if err != nil {
		log.Fatalf("Failed to start client: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Init(ctx); err != nil {
		log.Fatalf("Failed to initialise client: %v", err)
	}
	runErr := run(ctx, a, f, args)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		logr.Warnw("shutdown incomplete", "error", err)
	}

	if runErr != nil {
		if errors.Is(runErr, app.ErrNotAuthenticated) {
			fmt.Fprintln(os.Stderr, "Please log in first.")
		} else {
			fmt.Fprintln(os.Stderr, runErr)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, a *app.App, f cliFlags, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "signup":
		msg, err := a.Signup(ctx, models.SignupForm{
			Email: f.email, Password: f.password, FirstName: f.firstName,
			LastName: f.lastName, PhoneNumber: f.phone, BirthDate: f.birthDate,
		})
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil

	case "verify":
		if len(rest) == 0 {
			return app.ErrMissingToken
		}
		msg, err := a.VerifyEmail(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Println(msg)
		return nil

	case "login":
		if err := a.Login(ctx, f.email, f.password); err != nil {
			return err
		}
		return printDashboard(ctx, a)

	case "logout":
		a.Logout(ctx)
		fmt.Println("Signed out.")
		return nil

	case "dashboard":
		return printDashboard(ctx, a)

	case "accounts":
		if err := a.Guard(ctx); err != nil {
			return err
		}
		return runAccounts(ctx, a, rest)

	case "transactions":
		if err := a.Guard(ctx); err != nil {
			return err
		}
		txs, err := a.Transfers.ListTransactions(ctx, f.account)
		if err != nil {
			return err
		}
		if len(txs) == 0 {
			fmt.Println("No transactions yet.")
		}
		for _, tx := range txs {
			fmt.Printf("%s  %-10s  %-10s -> %-10s  $%s  %s\n",
				tx.CreatedAt.Local().Format("2006-01-02 15:04"), tx.TransactionReference,
				partyName(tx.FromAccount), partyName(tx.ToAccount), tx.Amount.StringFixed(2), tx.Description)
		}
		return nil

	case "transfer":
		if err := a.Guard(ctx); err != nil {
			return err
		}
		amount, err := transfer.ParseAmount(f.amount)
		if err != nil {
			return err
		}
		tx, err := a.Transfers.CreateTransfer(ctx, cqrs.CreateTransferCommand{
			FromAccountID:          f.from,
			RecipientAccountNumber: f.to,
			Amount:                 amount,
			Description:            f.description,
		})
		if err != nil {
			return err
		}
		fmt.Printf("Reference: %s\n", tx.TransactionReference)
		return nil

	case "profile":
		if err := a.Guard(ctx); err != nil {
			return err
		}
		if len(rest) > 0 && rest[0] == "update" {
			p, msg, err := a.Profile.Update(ctx, models.ProfileUpdate{
				Email: f.email, Password: f.password, FirstName: f.firstName,
				LastName: f.lastName, PhoneNumber: f.phone,
			})
			if err != nil {
				return err
			}
			fmt.Println(msg)
			printProfile(p)
			return nil
		}
		p, err := a.Profile.Fetch(ctx)
		if err != nil {
			return err
		}
		printProfile(p)
		return nil

	case "listen":
		if err := a.Guard(ctx); err != nil {
			return err
		}
		fmt.Println("Listening for transfers. Press Ctrl+C to stop.")
		<-ctx.Done()
		return nil
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func runAccounts(ctx context.Context, a *app.App, args []string) error {
	sub := "list"
	if len(args) > 0 {
		sub = args[0]
	}
	switch sub {
	case "list":
		if err := a.Accounts.FetchAccounts(ctx); err != nil {
			return err
		}
		accs := a.Accounts.Accounts()
		if len(accs) == 0 {
			fmt.Println("No accounts yet. Run `bankclient accounts create`.")
			return nil
		}
		cur, _ := a.Accounts.Current()
		for _, acc := range accs {
			printAccount(acc, acc.ID == cur.ID)
		}
		return nil
	case "create":
		acc, err := a.Accounts.CreateAccount(ctx)
		if err != nil {
			return err
		}
		printAccount(acc, true)
		return nil
	case "default", "use":
		if len(args) < 2 {
			return fmt.Errorf("accounts %s needs an account id", sub)
		}
		if err := a.Accounts.FetchAccounts(ctx); err != nil {
			return err
		}
		if sub == "default" {
			return a.Accounts.SetDefaultAccount(ctx, args[1])
		}
		return a.Accounts.Select(ctx, args[1])
	}
	return fmt.Errorf("unknown accounts command %q", sub)
}

func printDashboard(ctx context.Context, a *app.App) error {
	d, err := a.Dashboard(ctx)
	if err != nil {
		return err
	}
	fmt.Println(d.Greeting)
	if d.Connected {
		fmt.Println("Live updates: connected")
	} else {
		fmt.Println("Live updates: offline")
	}
	switch {
	case d.Current != nil:
		printAccount(*d.Current, true)
	case d.Message != "":
		fmt.Println(d.Message)
	default:
		fmt.Println("No accounts yet. Run `bankclient accounts create`.")
	}
	return nil
}

func printAccount(acc models.Account, current bool) {
	marker := " "
	if current {
		marker = "*"
	}
	var tags []string
	if acc.IsDefault {
		tags = append(tags, "default")
	}
	fmt.Printf("%s %s  %s  $%s  %s\n", marker, acc.ID, acc.AccountNumber, acc.Balance.StringFixed(2), strings.Join(tags, ","))
}

func printProfile(p models.UserProfile) {
	fmt.Printf("%s %s <%s>\n", p.FirstName, p.LastName, p.Email)
	if p.PhoneNumber != "" {
		fmt.Printf("Phone: %s\n", p.PhoneNumber)
	}
	if p.BirthDate != "" {
		fmt.Printf("Born:  %s\n", p.BirthDate)
	}
}

func partyName(p models.Party) string {
	if p.User != nil && p.User.FirstName != "" {
		return p.User.FirstName
	}
	return p.AccountNumber
}
