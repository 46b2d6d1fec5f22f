// ABOUTME: acl-gateway demo: deploy, authorize, mint and transfer against an in-memory ledger
// ABOUTME: Prints balances after each step and the notifications a watcher would have seen

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/2389/coven-acl/internal/config"
	"github.com/2389/coven-acl/internal/identity"
	"github.com/2389/coven-acl/internal/ledger"
	"github.com/2389/coven-acl/internal/notify"
	"github.com/2389/coven-acl/internal/store"
)

const (
	demoMember   = "0xd1f4c4afffbc6984214d37bef1e3153b911e5166"
	demoReceiver = "0x369d745a39705f35a35051a7f765553727beb3ca"
)

func runDemo(ctx context.Context, args []string) error {
	fs, _ := newFlagSet("demo")
	verbose := fs.BoolP("verbose", "v", false, "show ledger logs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if *verbose {
		logger = setupLogger(config.LoggingConfig{Level: "debug", Format: "text"})
	}

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		return err
	}
	defer s.Close()

	broadcaster := notify.NewBroadcaster(logger)
	defer broadcaster.Close()
	l := ledger.New(s, broadcaster, logger)

	deployerKey, err := identity.NewKey()
	if err != nil {
		return err
	}
	deployer := deployerKey.Identity()
	member := identity.MustParse(demoMember)
	receiver := identity.MustParse(demoReceiver)

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	d, err := l.Deploy(ctx, deployer, "Coven Token", "CVN")
	if err != nil {
		return fmt.Errorf("deploy: %w", err)
	}
	green.Printf("✓ Deployed %s\n", d.ID)
	fmt.Printf("  Admin:    %s\n", deployer)

	watchCtx, stopWatching := context.WithCancel(ctx)
	defer stopWatching()
	notifications, _ := broadcaster.Subscribe(watchCtx, d.ID)

	if _, err := l.Authorize(ctx, d.ID, deployer, member); err != nil {
		return fmt.Errorf("authorize: %w", err)
	}
	green.Printf("✓ Authorized %s\n", member)

	if _, err := l.Mint(ctx, d.ID, deployer, member, 100); err != nil {
		return fmt.Errorf("mint: %w", err)
	}
	green.Printf("✓ Minted 100 CVN to %s\n", member)
	if err := printBalance(l, d.ID, member); err != nil {
		return err
	}

	if _, err := l.Transfer(ctx, d.ID, member, receiver, 50); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	green.Printf("✓ Transferred 50 CVN to %s\n", receiver)
	if err := printBalance(l, d.ID, member); err != nil {
		return err
	}

	// rejected calls are audited but never notify
	if _, err := l.Mint(ctx, d.ID, receiver, receiver, 1); err != nil {
		color.Yellow("✗ Mint by %s rejected: %v\n", receiver.Short(), err)
	}

	fmt.Println()
	cyan.Println("  Balances")
	cyan.Println("  --------")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, holder := range []identity.Identity{deployer, member, receiver} {
		bal, err := l.BalanceOf(d.ID, holder)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %s\t%d CVN\n", holder, bal)
	}
	_ = w.Flush()

	fmt.Println()
	cyan.Println("  Notifications")
	cyan.Println("  -------------")
	stopWatching()
	for n := range notifications {
		fmt.Printf("  %-22s", n.Kind())
		switch {
		case n.Access != nil:
			fmt.Printf(" seq=%d caller=%s\n", n.Access.Seq, n.Access.Caller.Short())
		case n.Transfer != nil:
			fmt.Printf(" seq=%d %s -> %s %d\n", n.Transfer.Seq, n.Transfer.From.Short(), n.Transfer.To.Short(), n.Transfer.Amount)
		}
	}
	fmt.Println()
	return nil
}

func printBalance(l *ledger.Ledger, id string, holder identity.Identity) error {
	bal, err := l.BalanceOf(id, holder)
	if err != nil {
		return err
	}
	fmt.Printf("  User balance: %d\n", bal)
	return nil
}
