// ABOUTME: acl-admin subcommand implementations
// ABOUTME: Each command parses its own flags and prints colorized, tabular output

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/coven-acl/internal/api"
	"github.com/2389/coven-acl/internal/client"
	"github.com/2389/coven-acl/internal/identity"
)

var (
	green  = color.New(color.FgGreen)
	cyan   = color.New(color.FgCyan)
	yellow = color.New(color.FgYellow)
	gray   = color.New(color.FgHiBlack)
)

func heading(title string) {
	fmt.Println()
	cyan.Println("  " + title)
	cyan.Println("  " + strings.Repeat("-", len(title)))
}

func cmdLogin(ctx context.Context, c *client.Client, args []string) error {
	fs := newFlagSet("login")
	keyFile := fs.StringP("key-file", "k", "", "file holding the private key hex")
	if _, err := parseArgs(fs, args, commands["login"].usage, 0, 0); err != nil {
		return err
	}

	key, err := loadKey(*keyFile)
	if err != nil {
		return err
	}
	resp, err := c.Login(ctx, key)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	path, err := saveToken(resp.Token)
	if err != nil {
		return err
	}

	green.Printf("✓ Logged in as %s\n", resp.Identity)
	fmt.Printf("  Token:   %s (expires %s)\n", path, resp.ExpiresAt.Local().Format("Jan 02 15:04"))
	return nil
}

func cmdWhoami(ctx context.Context, c *client.Client, args []string) error {
	fs := newFlagSet("whoami")
	keyFile := fs.StringP("key-file", "k", "", "show the identity of this key instead")
	if _, err := parseArgs(fs, args, commands["whoami"].usage, 0, 0); err != nil {
		return err
	}

	if *keyFile != "" {
		key, err := loadKey(*keyFile)
		if err != nil {
			return err
		}
		fmt.Println(key.Identity())
		return nil
	}

	if c.Token() == "" {
		return client.ErrNoToken
	}
	if err := c.Health(ctx); err != nil {
		yellow.Printf("  Gateway:  ")
		color.Red("UNREACHABLE (%v)\n", err)
		return nil
	}
	// listing is the cheapest authenticated call; it fails fast on a bad token
	if _, err := c.ListDeployments(ctx); err != nil {
		yellow.Printf("  Identity: ")
		color.Red("auth failed (%v)\n", err)
		return nil
	}
	green.Printf("  Identity: ")
	fmt.Println("token accepted")
	return nil
}

func cmdDeploy(ctx context.Context, c *client.Client, args []string) error {
	fs := newFlagSet("deploy")
	name := fs.String("name", "", "token name (default: gateway config)")
	symbol := fs.String("symbol", "", "token symbol (default: gateway config)")
	if _, err := parseArgs(fs, args, commands["deploy"].usage, 0, 0); err != nil {
		return err
	}

	d, err := c.Deploy(ctx, *name, *symbol)
	if err != nil {
		return fmt.Errorf("deploy: %w", err)
	}

	green.Printf("✓ Deployed %s\n", d.ID)
	fmt.Printf("  Admin:    %s\n", d.Deployer)
	fmt.Printf("  Token:    %s (%s)\n", d.TokenName, d.TokenSymbol)
	return nil
}

func cmdList(ctx context.Context, c *client.Client, args []string) error {
	if _, err := parseArgs(newFlagSet("list"), args, commands["list"].usage, 0, 0); err != nil {
		return err
	}

	deployments, err := c.ListDeployments(ctx)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}

	heading("Deployments")
	if len(deployments) == 0 {
		fmt.Println("  (no deployments)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tTOKEN\tDEPLOYER\tCREATED")
	fmt.Fprintln(w, "  --\t-----\t--------\t-------")
	for _, d := range deployments {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", d.ID, truncate(d.TokenSymbol, 10), d.Deployer.Short(), d.CreatedAt.Local().Format("Jan 02 15:04"))
	}
	_ = w.Flush()
	fmt.Println()
	return nil
}

func cmdStatus(ctx context.Context, c *client.Client, args []string) error {
	rest, err := parseArgs(newFlagSet("status"), args, commands["status"].usage, 1, 1)
	if err != nil {
		return err
	}

	st, err := c.Status(ctx, rest[0])
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}

	heading("Deployment " + st.ID)
	fmt.Printf("  Deployer:      %s\n", st.Deployer)
	green.Printf("  Admin:         %s\n", st.Admin)
	fmt.Printf("  Token:         %s (%s)\n", st.TokenName, st.TokenSymbol)
	fmt.Printf("  Total supply:  %d\n", st.TotalSupply)
	fmt.Printf("  Events:        %d access, %d token\n", st.AccessEvents, st.TokenEvents)
	fmt.Printf("  Created:       %s\n", st.CreatedAt.Local().Format(time.RFC1123))
	fmt.Println()
	return nil
}

func cmdSetAdmin(ctx context.Context, c *client.Client, args []string) error {
	rest, err := parseArgs(newFlagSet("set-admin"), args, commands["set-admin"].usage, 2, 2)
	if err != nil {
		return err
	}
	newAdmin, err := parseIdentityArg(rest[1])
	if err != nil {
		return err
	}

	ev, err := c.SetAdmin(ctx, rest[0], newAdmin)
	if err != nil {
		return fmt.Errorf("set-admin: %w", err)
	}
	green.Printf("✓ Admin changed %s → %s\n", ev.Previous.Short(), ev.Current)
	return nil
}

func cmdAuthorize(ctx context.Context, c *client.Client, args []string) error {
	rest, err := parseArgs(newFlagSet("authorize"), args, commands["authorize"].usage, 2, 2)
	if err != nil {
		return err
	}
	subject, err := parseIdentityArg(rest[1])
	if err != nil {
		return err
	}

	if _, err := c.Authorize(ctx, rest[0], subject); err != nil {
		return fmt.Errorf("authorize: %w", err)
	}
	green.Printf("✓ Authorized %s\n", subject)
	return nil
}

func cmdDeauthorize(ctx context.Context, c *client.Client, args []string) error {
	rest, err := parseArgs(newFlagSet("deauthorize"), args, commands["deauthorize"].usage, 2, 2)
	if err != nil {
		return err
	}
	subject, err := parseIdentityArg(rest[1])
	if err != nil {
		return err
	}

	if _, err := c.Deauthorize(ctx, rest[0], subject); err != nil {
		return fmt.Errorf("deauthorize: %w", err)
	}
	green.Printf("✓ Deauthorized %s\n", subject)
	return nil
}

func cmdCheck(ctx context.Context, c *client.Client, args []string) error {
	rest, err := parseArgs(newFlagSet("check"), args, commands["check"].usage, 2, 2)
	if err != nil {
		return err
	}
	subject, err := parseIdentityArg(rest[1])
	if err != nil {
		return err
	}

	ok, err := c.IsAuthorized(ctx, rest[0], subject)
	if err != nil {
		return fmt.Errorf("check: %w", err)
	}
	if ok {
		green.Printf("✓ %s is authorized\n", subject)
	} else {
		yellow.Printf("✗ %s is not authorized\n", subject)
	}
	return nil
}

func cmdEvents(ctx context.Context, c *client.Client, args []string) error {
	fs := newFlagSet("events")
	follow := fs.BoolP("follow", "f", false, "stream live events until interrupted")
	rest, err := parseArgs(fs, args, commands["events"].usage, 1, 1)
	if err != nil {
		return err
	}

	if *follow {
		gray.Println("  following events (Ctrl-C to stop)")
		return c.StreamEvents(ctx, rest[0], func(ev client.StreamEvent) error {
			switch {
			case ev.Access != nil:
				printAccessEvent(*ev.Access)
			case ev.Transfer != nil:
				printTransfer(*ev.Transfer)
			}
			return nil
		})
	}

	events, err := c.Events(ctx, rest[0])
	if err != nil {
		return fmt.Errorf("events: %w", err)
	}

	heading("Access Events")
	for _, ev := range events.Access {
		printAccessEvent(ev)
	}
	heading("Token Events")
	if len(events.Token) == 0 {
		fmt.Println("  (none)")
	}
	for _, tr := range events.Token {
		printTransfer(tr)
	}
	fmt.Println()
	return nil
}

func printAccessEvent(ev api.Event) {
	fmt.Printf("  #%-4d %-22s ", ev.Seq, ev.Kind)
	switch {
	case ev.Current != nil:
		fmt.Printf("%s → %s", ev.Previous.Short(), ev.Current.Short())
	case ev.Subject != nil && ev.Status != nil:
		fmt.Printf("%s authorized=%t", ev.Subject.Short(), *ev.Status)
	}
	gray.Printf("  by %s\n", ev.Caller.Short())
}

func printTransfer(tr api.Transfer) {
	kind := "transfer"
	if tr.Mint {
		kind = "mint"
	}
	fmt.Printf("  #%-4d %-22s %s → %s %d", tr.Seq, kind, tr.From.Short(), tr.To.Short(), tr.Amount)
	gray.Printf("  by %s\n", tr.Caller.Short())
}

func cmdAudit(ctx context.Context, c *client.Client, args []string) error {
	fs := newFlagSet("audit")
	caller := fs.String("caller", "", "only calls made by this identity")
	action := fs.String("action", "", "only this action (deploy, set_admin, authorize, deauthorize, mint, transfer)")
	outcome := fs.String("outcome", "", "only accepted or rejected calls")
	limit := fs.IntP("limit", "n", 50, "maximum entries")
	rest, err := parseArgs(fs, args, commands["audit"].usage, 1, 1)
	if err != nil {
		return err
	}

	q := client.AuditQuery{Action: *action, Outcome: *outcome, Limit: *limit}
	if *caller != "" {
		if q.Caller, err = parseIdentityArg(*caller); err != nil {
			return err
		}
	}

	entries, err := c.Audit(ctx, rest[0], q)
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}

	heading("Audit Log")
	if len(entries) == 0 {
		fmt.Println("  (no entries)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TIME\tCALLER\tACTION\tTARGET\tOUTCOME")
	fmt.Fprintln(w, "  ----\t------\t------\t------\t-------")
	for _, e := range entries {
		outcome := green.Sprint(e.Outcome)
		if e.Outcome != "accepted" {
			outcome = color.RedString("%s: %s", e.Outcome, e.Error)
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Local().Format("Jan 02 15:04:05"), e.Caller.Short(), e.Action, truncate(e.Target, 32), outcome)
	}
	_ = w.Flush()
	fmt.Println()
	return nil
}

func parseTokenArgs(name string, args []string) (string, identity.Identity, uint64, error) {
	rest, err := parseArgs(newFlagSet(name), args, commands[name].usage, 3, 3)
	if err != nil {
		return "", identity.Null, 0, err
	}
	to, err := parseIdentityArg(rest[1])
	if err != nil {
		return "", identity.Null, 0, err
	}
	amount, err := strconv.ParseUint(rest[2], 10, 64)
	if err != nil {
		return "", identity.Null, 0, fmt.Errorf("amount %q: %w", rest[2], err)
	}
	return rest[0], to, amount, nil
}

func cmdMint(ctx context.Context, c *client.Client, args []string) error {
	id, to, amount, err := parseTokenArgs("mint", args)
	if err != nil {
		return err
	}

	if _, err := c.Mint(ctx, id, to, amount); err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	green.Printf("✓ Minted %d to %s\n", amount, to)
	return nil
}

func cmdTransfer(ctx context.Context, c *client.Client, args []string) error {
	id, to, amount, err := parseTokenArgs("transfer", args)
	if err != nil {
		return err
	}

	if _, err := c.Transfer(ctx, id, to, amount); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	green.Printf("✓ Transferred %d to %s\n", amount, to)
	return nil
}

func cmdBalance(ctx context.Context, c *client.Client, args []string) error {
	fs := newFlagSet("balance")
	keyFile := fs.StringP("key-file", "k", "", "key whose identity to look up when none is given")
	rest, err := parseArgs(fs, args, commands["balance"].usage, 1, 2)
	if err != nil {
		return err
	}

	var holder identity.Identity
	if len(rest) == 2 {
		if holder, err = parseIdentityArg(rest[1]); err != nil {
			return err
		}
	} else {
		key, err := loadKey(*keyFile)
		if err != nil {
			return err
		}
		holder = key.Identity()
	}

	bal, err := c.Balance(ctx, rest[0], holder)
	if err != nil {
		return fmt.Errorf("balance: %w", err)
	}
	fmt.Printf("%s: %d %s\n", bal.Identity, bal.Balance, bal.Symbol)
	return nil
}
