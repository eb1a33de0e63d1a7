// ABOUTME: lendtrack subcommand implementations
// ABOUTME: Each command resumes the saved session and calls one desk operation

package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/2389/lendtrack/internal/config"
	"github.com/2389/lendtrack/internal/identity"
	"github.com/2389/lendtrack/internal/ledger"
	"github.com/2389/lendtrack/internal/lending"
	"github.com/2389/lendtrack/internal/report"
	"github.com/2389/lendtrack/internal/store"
)

// splitArgs separates positional arguments from --flags. Flags named in
// valued take the next argument; every other flag is boolean.
func splitArgs(args []string, valued ...string) ([]string, map[string]string) {
	takesValue := map[string]bool{}
	for _, v := range valued {
		takesValue[v] = true
	}

	var positional []string
	flags := map[string]string{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			positional = append(positional, arg)
			continue
		}
		name := strings.TrimPrefix(arg, "--")
		if k, v, ok := strings.Cut(name, "="); ok {
			flags[k] = v
			continue
		}
		if takesValue[name] && i+1 < len(args) {
			flags[name] = args[i+1]
			i++
			continue
		}
		flags[name] = "true"
	}
	return positional, flags
}

func parseRole(s string) (store.Role, error) {
	switch strings.ToLower(s) {
	case "admin":
		return store.RoleAdministrator, nil
	}
	r := store.Role(strings.ToLower(s))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q (use borrower, staff or administrator)", s)
	}
	return r, nil
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func cmdInit(ctx context.Context) error {
	reader := stdin

	fmt.Println("lendtrack configuration setup")
	fmt.Println("=============================")
	fmt.Println()

	cfg := config.Default()
	outputFile := prompt(reader, "Config file path", config.DefaultPath())
	cfg.Database.Path = prompt(reader, "SQLite database path", cfg.Database.Path)
	cfg.Database.Driver = prompt(reader, "SQLite driver (sqlite/sqlite3)", cfg.Database.Driver)

	days := prompt(reader, "Default loan length in days", strconv.Itoa(cfg.Loans.DefaultDays))
	n, err := strconv.Atoi(days)
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid loan length %q", days)
	}
	cfg.Loans.DefaultDays = n

	secret, err := randomSecret()
	if err != nil {
		return fmt.Errorf("generating session secret: %w", err)
	}
	cfg.Auth.SessionSecret = secret

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.WriteDefault(outputFile, cfg); err != nil {
		return err
	}
	if outputFile != config.DefaultPath() {
		os.Setenv("LENDTRACK_CONFIG", outputFile)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Printf("\n✓ Config written to %s\n", outputFile)
	green.Printf("✓ Database ready at %s\n", cfg.Database.Path)
	fmt.Println()
	yellow.Println("  First login:")
	fmt.Printf("    lendtrack login %s    # default secret: %s\n", cfg.Bootstrap.AdminID, cfg.Bootstrap.AdminSecret)
	fmt.Println("    lendtrack passwd       # change it right away")
	fmt.Println()
	return nil
}

func cmdLogin(ctx context.Context, args []string) error {
	pos, flags := splitArgs(args, "secret")
	if len(pos) < 1 {
		return fmt.Errorf("usage: login <id> [--secret S]")
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	secret := flags["secret"]
	if secret == "" {
		secret = os.Getenv("LENDTRACK_SECRET")
	}
	if secret == "" {
		if secret, err = readSecret("Secret"); err != nil {
			return err
		}
	}

	sess, err := a.desk.Login(ctx, pos[0], secret)
	if err != nil {
		return err
	}

	token, err := sess.Token()
	if err != nil {
		return fmt.Errorf("%w (run: lendtrack init, or set LENDTRACK_AUTH_SESSION_SECRET)", err)
	}
	if err := saveToken(token); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	ident := sess.Identity()
	color.New(color.FgGreen).Printf("✓ Welcome, %s (%s)\n", ident.DisplayName, ident.Role)

	if sess.MustRotate() {
		warnDefaultSecret()
	}

	if ident.Role != store.RoleBorrower {
		if n, err := sess.CountOverdue(ctx); err == nil && n > 0 {
			color.New(color.FgYellow).Printf("  %d overdue loan(s): run lendtrack overdue\n", n)
		}
	}
	return nil
}

func cmdLogout(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if sess, err := a.session(ctx); err == nil {
		sess.Logout(ctx)
	}
	if err := removeToken(); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

func cmdWhoami(ctx context.Context) error {
	return withSession(ctx, func(a *app, sess *lending.Session) error {
		ident := sess.Identity()
		fmt.Printf("ID:      %s\n", ident.ID)
		fmt.Printf("Name:    %s\n", ident.DisplayName)
		fmt.Printf("Role:    %s\n", ident.Role)
		fmt.Printf("Session: %s\n", sess.Actor().SessionID)
		return nil
	})
}

func cmdPasswd(ctx context.Context, args []string) error {
	return withSession(ctx, func(a *app, sess *lending.Session) error {
		id := sess.Actor().IdentityID
		if len(args) > 0 {
			id = args[0]
		}

		first, err := readSecret(fmt.Sprintf("New secret for %s", id))
		if err != nil {
			return err
		}
		second, err := readSecret("Repeat new secret")
		if err != nil {
			return err
		}
		if first != second {
			return fmt.Errorf("secrets do not match")
		}

		if err := sess.ChangeSecret(ctx, id, first); err != nil {
			return err
		}
		color.New(color.FgGreen).Printf("✓ Secret changed for %s\n", id)
		return nil
	})
}

func cmdAssets(ctx context.Context, args []string) error {
	subcmd := "list"
	if len(args) > 0 && !strings.HasPrefix(args[0], "--") {
		subcmd = args[0]
		args = args[1:]
	}

	return withSession(ctx, func(a *app, sess *lending.Session) error {
		green := color.New(color.FgGreen)

		switch subcmd {
		case "list":
			_, flags := splitArgs(args, "status")
			var status *store.AssetStatus
			if s := flags["status"]; s != "" {
				st := store.AssetStatus(s)
				status = &st
			}
			assets, err := sess.Assets(ctx, status)
			if err != nil {
				return err
			}
			printAssets(os.Stdout, assets)
			return nil

		case "add":
			if len(args) < 3 {
				return fmt.Errorf("usage: assets add <tag> <make> <model>")
			}
			if err := sess.RegisterAsset(ctx, args[0], args[1], strings.Join(args[2:], " ")); err != nil {
				return err
			}
			green.Printf("✓ Registered asset %s\n", args[0])
			return nil

		case "edit":
			if len(args) < 3 {
				return fmt.Errorf("usage: assets edit <tag> <make> <model>")
			}
			if err := sess.UpdateAsset(ctx, args[0], args[1], strings.Join(args[2:], " ")); err != nil {
				return err
			}
			green.Printf("✓ Updated asset %s\n", args[0])
			return nil

		case "status":
			if len(args) < 2 {
				return fmt.Errorf("usage: assets status <tag> <available|maintenance|damaged>")
			}
			if err := sess.SetAssetStatus(ctx, args[0], store.AssetStatus(args[1])); err != nil {
				return err
			}
			green.Printf("✓ %s is now %s\n", args[0], args[1])
			return nil

		case "history":
			if len(args) < 1 {
				return fmt.Errorf("usage: assets history <tag>")
			}
			if _, err := sess.Asset(ctx, args[0]); err != nil {
				return err
			}
			loans, err := sess.History(ctx, args[0])
			if err != nil {
				return err
			}
			printLoans(os.Stdout, sess, "History of "+args[0], loans)
			return nil

		default:
			return fmt.Errorf("unknown assets subcommand: %s (use list, add, edit, status, history)", subcmd)
		}
	})
}

func cmdUsers(ctx context.Context, args []string) error {
	subcmd := "list"
	if len(args) > 0 {
		subcmd = args[0]
		args = args[1:]
	}

	return withSession(ctx, func(a *app, sess *lending.Session) error {
		green := color.New(color.FgGreen)

		switch subcmd {
		case "list":
			people, err := sess.Identities(ctx)
			if err != nil {
				return err
			}
			printIdentities(os.Stdout, people)
			return nil

		case "add":
			pos, flags := splitArgs(args, "secret")
			if len(pos) < 3 {
				return fmt.Errorf("usage: users add <id> <name> <role> [--secret S]")
			}
			role, err := parseRole(pos[len(pos)-1])
			if err != nil {
				return err
			}
			secret := flags["secret"]
			if secret == "" {
				if secret, err = readSecret(fmt.Sprintf("Secret for %s", pos[0])); err != nil {
					return err
				}
			}
			err = sess.RegisterIdentity(ctx, identity.RegisterInput{
				ID:          pos[0],
				DisplayName: strings.Join(pos[1:len(pos)-1], " "),
				Role:        role,
				Secret:      secret,
			})
			if err != nil {
				return err
			}
			green.Printf("✓ Registered %s %s\n", role, pos[0])
			return nil

		case "edit":
			if len(args) < 3 {
				return fmt.Errorf("usage: users edit <id> <name> <role>")
			}
			role, err := parseRole(args[len(args)-1])
			if err != nil {
				return err
			}
			name := strings.Join(args[1:len(args)-1], " ")
			if err := sess.UpdateIdentity(ctx, args[0], name, role); err != nil {
				return err
			}
			green.Printf("✓ Updated %s\n", args[0])
			return nil

		default:
			return fmt.Errorf("unknown users subcommand: %s (use list, add, edit)", subcmd)
		}
	})
}

func cmdCheckout(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: checkout <tag> <borrower> [days]")
	}

	return withSession(ctx, func(a *app, sess *lending.Session) error {
		days := a.cfg.Loans.DefaultDays
		if len(args) > 2 {
			n, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid days %q: %w", args[2], ledger.ErrInvalidDuration)
			}
			days = n
		}

		id, err := sess.Checkout(ctx, args[0], args[1], days)
		if err != nil {
			return err
		}
		color.New(color.FgGreen).Printf("✓ Loan %d: %s lent to %s\n", id, args[0], args[1])

		if loan, err := sess.Loan(ctx, id); err == nil {
			fmt.Printf("  due %s\n", localTime(loan.DueAt))
		}
		return nil
	})
}

func cmdCheckin(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: checkin <tag>")
	}

	return withSession(ctx, func(a *app, sess *lending.Session) error {
		loan, err := sess.CheckIn(ctx, args[0])
		if err != nil {
			return err
		}
		color.New(color.FgGreen).Printf("✓ %s returned (loan %d)\n", args[0], loan.ID)
		if loan.ReturnedAt != nil && loan.ReturnedAt.After(loan.DueAt) {
			color.New(color.FgYellow).Printf("  returned late, was due %s\n", loan.DueAt.Local().Format("Jan 02 15:04"))
		}
		return nil
	})
}

func scopeFrom(flags map[string]string) ledger.Scope {
	if flags["all"] == "true" {
		return ledger.ScopeAll
	}
	return ledger.ScopeOpenOnly
}

func cmdLoans(ctx context.Context, args []string) error {
	pos, flags := splitArgs(args)
	scope := scopeFrom(flags)

	return withSession(ctx, func(a *app, sess *lending.Session) error {
		loans, err := sess.Search(ctx, strings.Join(pos, " "), scope)
		if err != nil {
			return err
		}
		title := "Open loans"
		if scope == ledger.ScopeAll {
			title = "All loans"
		}
		printLoans(os.Stdout, sess, title, loans)
		return nil
	})
}

func cmdOverdue(ctx context.Context) error {
	return withSession(ctx, func(a *app, sess *lending.Session) error {
		loans, err := sess.Overdue(ctx)
		if err != nil {
			return err
		}
		printLoans(os.Stdout, sess, "Overdue loans", loans)
		return nil
	})
}

func cmdActivity(ctx context.Context, args []string) error {
	limit := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid limit %q", args[0])
		}
		limit = n
	}

	return withSession(ctx, func(a *app, sess *lending.Session) error {
		records, err := sess.Activity(ctx, limit)
		if err != nil {
			return err
		}
		printActivity(os.Stdout, records)
		return nil
	})
}

func cmdExport(ctx context.Context, args []string) error {
	pos, flags := splitArgs(args, "format", "out")
	format, err := report.ParseFormat(flags["format"])
	if err != nil {
		return err
	}

	return withSession(ctx, func(a *app, sess *lending.Session) error {
		var w io.Writer = os.Stdout
		out := flags["out"]
		if out != "" {
			if filepath.Ext(out) == "" {
				out += format.Extension()
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating %s: %w", out, err)
			}
			defer f.Close()
			w = f
		}

		n, err := sess.Export(ctx, w, format, strings.Join(pos, " "), scopeFrom(flags))
		if err != nil {
			return err
		}
		if out != "" {
			color.New(color.FgGreen).Fprintf(os.Stderr, "✓ Exported %d loans to %s\n", n, out)
		}
		return nil
	})
}

func cmdReconcile(ctx context.Context) error {
	return withSession(ctx, func(a *app, sess *lending.Session) error {
		repairs, err := sess.Reconcile(ctx)
		if err != nil {
			return err
		}
		if len(repairs) == 0 {
			color.New(color.FgGreen).Println("✓ Asset statuses match the ledger")
			return nil
		}
		for _, r := range repairs {
			color.New(color.FgYellow).Printf("  repaired %s: %s -> %s\n", r.Tag, r.From, r.To)
		}
		return nil
	})
}
