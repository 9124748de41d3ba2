package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gfranco93/cmirror/internal/ctl"
	"github.com/gfranco93/cmirror/internal/profile"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	yesFlag := flag.Bool("yes", false, "confirm destructive commands")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c := ctl.New(profile.SocketPath(profileName))

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, *jsonFlag)
	case "state":
		cmdState(ctx, c, *jsonFlag)
	case "diag":
		cmdDiag(ctx, c, *jsonFlag)
	case "gaps":
		cmdGaps(ctx, c, *jsonFlag)
	case "sync":
		cmdSync(ctx, c, *jsonFlag)
	case "reset":
		cmdReset(ctx, c, *jsonFlag, *yesFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: cmirrorctl [--profile <name>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status    Show daemon runtime state")
	fmt.Fprintln(os.Stderr, "  state     Show chat-list sync cursors")
	fmt.Fprintln(os.Stderr, "  diag      Show sync diagnostics")
	fmt.Fprintln(os.Stderr, "  gaps      Run gap detection")
	fmt.Fprintln(os.Stderr, "  sync      Trigger a sync cycle")
	fmt.Fprintln(os.Stderr, "  reset     Clear all sync cursors (requires --yes)")
}

func cmdStatus(ctx context.Context, c *ctl.Client, jsonOut bool) {
	resp, err := c.Status(ctx)
	exitOn(err)
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Profile: %s\n", resp.Profile)
	fmt.Printf("State:   %s\n", resp.State)
}

func cmdState(ctx context.Context, c *ctl.Client, jsonOut bool) {
	resp, err := c.SyncState(ctx)
	exitOn(err)
	if jsonOut {
		outputJSON(resp)
		return
	}
	if resp.State == nil {
		fmt.Println("No sync has run yet.")
		return
	}
	fmt.Printf("Newest cursor: %s\n", strOrUnset(resp.State.NewestCursor))
	fmt.Printf("Oldest cursor: %s\n", strOrUnset(resp.State.OldestCursor))
	fmt.Printf("Total chats:   %d\n", resp.State.TotalChats)
	fmt.Printf("Last synced:   %s\n", time.UnixMilli(resp.State.LastSyncedAt).Format(time.RFC3339))
	fmt.Printf("Sync source:   %s\n", resp.State.SyncSource)
	if resp.State.SyncLockID != nil {
		fmt.Printf("Lock holder:   %s\n", *resp.State.SyncLockID)
	}
}

func cmdDiag(ctx context.Context, c *ctl.Client, jsonOut bool) {
	resp, err := c.Diagnostics(ctx)
	exitOn(err)
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Chats:               %d\n", resp.Stats.ChatCount)
	fmt.Printf("Messages:            %d\n", resp.Stats.MessageCount)
	fmt.Printf("Chats with windows:  %d\n", resp.Stats.ChatsWithWindows)
	fmt.Printf("Complete histories:  %d\n", resp.Stats.ChatsWithFullHistory)
}

func cmdGaps(ctx context.Context, c *ctl.Client, jsonOut bool) {
	resp, err := c.Gaps(ctx)
	exitOn(err)
	if jsonOut {
		outputJSON(resp)
		return
	}
	if !resp.HasIssues {
		fmt.Println("No gaps detected.")
		return
	}
	fmt.Printf("%d issues found:\n", len(resp.Issues))
	for _, issue := range resp.Issues {
		fmt.Printf("  - %s\n", issue)
	}
}

func cmdSync(ctx context.Context, c *ctl.Client, jsonOut bool) {
	resp, err := c.RunSync(ctx)
	exitOn(err)
	if jsonOut {
		outputJSON(resp)
		return
	}
	if !resp.Started {
		fmt.Printf("Skipped: %s\n", resp.Message)
		return
	}
	fmt.Printf("Synced %d chats, %d messages.\n", resp.Result.Chats, resp.Result.Messages)
}

func cmdReset(ctx context.Context, c *ctl.Client, jsonOut, yes bool) {
	if !yes {
		fmt.Fprintln(os.Stderr, "reset clears all sync cursors and forces a full re-sync; pass --yes to confirm")
		os.Exit(1)
	}
	resp, err := c.ResetCursors(ctx)
	exitOn(err)
	if jsonOut {
		outputJSON(resp)
		return
	}
	fmt.Printf("Reset cursors on %d chats.\n", resp.ChatsReset)
}

func strOrUnset(s *string) string {
	if s == nil {
		return "(unset)"
	}
	return *s
}

func exitOn(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}
