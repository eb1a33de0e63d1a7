// ABOUTME: Entry point for the lendtrack CLI
// ABOUTME: Dispatches subcommands for loans, assets, people and reports against the local database

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
)

// Version is set at build time.
var version = "dev"

const banner = `
 _                _ _                  _
| | ___ _ __   __| | |_ _ __ __ _  ___| | __
| |/ _ \ '_ \ / _' | __| '__/ _' |/ __| |/ /
| |  __/ | | | (_| | |_| | | (_| | (__|   <
|_|\___|_| |_|\__,_|\__|_|  \__,_|\___|_|\_\
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "init":
		err = cmdInit(ctx)
	case "login":
		err = cmdLogin(ctx, args)
	case "logout":
		err = cmdLogout(ctx)
	case "whoami":
		err = cmdWhoami(ctx)
	case "passwd":
		err = cmdPasswd(ctx, args)
	case "assets":
		err = cmdAssets(ctx, args)
	case "users":
		err = cmdUsers(ctx, args)
	case "checkout":
		err = cmdCheckout(ctx, args)
	case "checkin":
		err = cmdCheckin(ctx, args)
	case "loans":
		err = cmdLoans(ctx, args)
	case "overdue":
		err = cmdOverdue(ctx)
	case "activity":
		err = cmdActivity(ctx, args)
	case "export":
		err = cmdExport(ctx, args)
	case "reconcile":
		err = cmdReconcile(ctx)
	case "version":
		fmt.Println("lendtrack", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: lendtrack <command> [args]")
	fmt.Println()
	yellow.Println("Session:")
	fmt.Println("  init                              Create config and database, provision the first administrator")
	fmt.Println("  login <id> [--secret S]           Log in and remember the session")
	fmt.Println("  logout                            Forget the session")
	fmt.Println("  whoami                            Show the logged-in identity")
	fmt.Println("  passwd [id]                       Change your secret (or someone else's, as administrator)")
	fmt.Println()
	yellow.Println("Loans:")
	fmt.Println("  checkout <tag> <borrower> [days]  Lend an asset")
	fmt.Println("  checkin <tag>                     Take an asset back")
	fmt.Println("  loans [--all] [filter]            Search loans (open only unless --all)")
	fmt.Println("  overdue                           List overdue loans")
	fmt.Println("  export [--format csv|md|html] [--all] [--out FILE] [filter]")
	fmt.Println()
	yellow.Println("Assets:")
	fmt.Println("  assets [list] [--status S]        List assets")
	fmt.Println("  assets add <tag> <make> <model>   Register an asset")
	fmt.Println("  assets edit <tag> <make> <model>  Change make and model")
	fmt.Println("  assets status <tag> <status>      available, maintenance or damaged")
	fmt.Println("  assets history <tag>              Loans of one asset, newest first")
	fmt.Println()
	yellow.Println("People:")
	fmt.Println("  users [list]                      List identities")
	fmt.Println("  users add <id> <name> <role>      Register borrower, staff or administrator")
	fmt.Println("  users edit <id> <name> <role>     Change name and role")
	fmt.Println()
	yellow.Println("Administration:")
	fmt.Println("  activity [limit]                  Recent activity, newest first")
	fmt.Println("  reconcile                         Repair asset statuses from open loans")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  LENDTRACK_CONFIG                  Config file (default: ~/.config/lendtrack/config.yaml)")
	fmt.Println("  LENDTRACK_TOKEN                   Session token (overrides the saved login)")
	fmt.Println("  LENDTRACK_SECRET                  Secret for login, instead of prompting")
	fmt.Println("  LENDTRACK_<SECTION>_<KEY>         Override any config value")
	fmt.Println()
}
