package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/matheus3301/zapcrm/internal/client"
	"github.com/matheus3301/zapcrm/internal/config"
	"github.com/matheus3301/zapcrm/internal/qr"
)

func main() {
	addrFlag := flag.String("addr", config.DefaultListen, "daemon address")
	tenantFlag := flag.String("tenant", "", "tenant id")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	if *tenantFlag == "" {
		fmt.Fprintln(os.Stderr, "error: --tenant is required")
		os.Exit(1)
	}

	c := client.New(*addrFlag)
	tenant := *tenantFlag

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, tenant, *jsonFlag)
	case "connect":
		cmdConnect(ctx, c, tenant)
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: zapcrmctl send <contact> <body...>")
			os.Exit(1)
		}
		cmdSend(ctx, c, tenant, args[1], strings.Join(args[2:], " "), *jsonFlag)
	case "contacts":
		cmdContacts(ctx, c, tenant, *jsonFlag)
	case "history":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: zapcrmctl history <contact>")
			os.Exit(1)
		}
		cmdHistory(ctx, c, tenant, args[1], *jsonFlag)
	case "lead":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: zapcrmctl lead <phone> [name...]")
			os.Exit(1)
		}
		cmdLead(ctx, c, tenant, args[1], strings.Join(args[2:], " "), *jsonFlag)
	case "stage":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: zapcrmctl stage <contact> <NEW|CONTACTED|VISIT|PROPOSAL|CLOSED|ARCHIVED>")
			os.Exit(1)
		}
		cmdStage(ctx, c, tenant, args[1], args[2], *jsonFlag)
	case "pause":
		cmdPause(ctx, c, tenant, true)
	case "resume":
		cmdPause(ctx, c, tenant, false)
	case "automation":
		cmdAutomation(ctx, c, tenant, *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: zapcrmctl --tenant <id> [--addr <host:port>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                 Show session connection status")
	fmt.Fprintln(os.Stderr, "  connect                Connect or resume the session (prints QR if pairing)")
	fmt.Fprintln(os.Stderr, "  send <contact> <body>  Send a text message")
	fmt.Fprintln(os.Stderr, "  contacts               List contacts by recency")
	fmt.Fprintln(os.Stderr, "  history <contact>      Show a conversation")
	fmt.Fprintln(os.Stderr, "  lead <phone> [name]    Register a lead manually")
	fmt.Fprintln(os.Stderr, "  stage <contact> <s>    Move a lead through the pipeline")
	fmt.Fprintln(os.Stderr, "  pause | resume         Toggle automated replies")
	fmt.Fprintln(os.Stderr, "  automation             Show automation pause state")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func cmdStatus(ctx context.Context, c *client.Client, tenant string, jsonOut bool) {
	snap, err := c.Connection(ctx, tenant)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(snap)
		return
	}
	fmt.Printf("Tenant: %s\n", snap.TenantID)
	fmt.Printf("Status: %s\n", snap.Status)
	if snap.QR != "" {
		fmt.Println("QR pairing pending. Run 'zapcrmctl connect' or the TUI to scan.")
	}
}

func cmdConnect(ctx context.Context, c *client.Client, tenant string) {
	snap, err := c.Connect(ctx, tenant)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Status: %s\n", snap.Status)
	if snap.QR == "" {
		return
	}
	// Poll while a pairing code is pending so the operator can scan it.
	fmt.Println("Scan this code with WhatsApp on the business phone:")
	fmt.Println(qr.Render(snap.QR))
	for {
		time.Sleep(2 * time.Second)
		snap, err = c.Connection(ctx, tenant)
		if err != nil {
			fatal(err)
		}
		switch {
		case snap.QR != "":
			continue
		default:
			fmt.Printf("Status: %s\n", snap.Status)
			return
		}
	}
}

func cmdSend(ctx context.Context, c *client.Client, tenant, contact, body string, jsonOut bool) {
	msg, err := c.Send(ctx, tenant, contact, body)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(msg)
		return
	}
	fmt.Printf("sent #%d to %s\n", msg.ID, msg.ContactID)
}

func cmdContacts(ctx context.Context, c *client.Client, tenant string, jsonOut bool) {
	contacts, err := c.Contacts(ctx, tenant)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(contacts)
		return
	}
	for _, contact := range contacts {
		unread := ""
		if contact.UnreadCount > 0 {
			unread = fmt.Sprintf(" (%d unread)", contact.UnreadCount)
		}
		fmt.Printf("%-16s %-10s %s%s\n", contact.ContactID, contact.Stage, contact.Name, unread)
	}
}

func cmdHistory(ctx context.Context, c *client.Client, tenant, contact string, jsonOut bool) {
	page, err := c.History(ctx, tenant, contact, 0, 200)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(page)
		return
	}
	for _, m := range page.Messages {
		ts := time.UnixMilli(m.CreatedAt).Format("2006-01-02 15:04")
		who := "them"
		if m.Direction == "OUTBOUND" {
			who = "us"
			if m.Author == "AUTOMATION" {
				who = "bot"
			}
		}
		fmt.Printf("[%s] %-4s %s\n", ts, who, m.Body)
	}
}

func cmdLead(ctx context.Context, c *client.Client, tenant, phone, name string, jsonOut bool) {
	contact, err := c.CreateLead(ctx, tenant, phone, name)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(contact)
		return
	}
	fmt.Printf("lead %s registered (stage %s)\n", contact.ContactID, contact.Stage)
}

func cmdStage(ctx context.Context, c *client.Client, tenant, contact, stage string, jsonOut bool) {
	updated, err := c.SetStage(ctx, tenant, contact, stage)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(updated)
		return
	}
	fmt.Printf("%s is now %s\n", updated.ContactID, updated.Stage)
}

func cmdPause(ctx context.Context, c *client.Client, tenant string, paused bool) {
	if err := c.SetPaused(ctx, tenant, paused); err != nil {
		fatal(err)
	}
	if paused {
		fmt.Println("automation paused")
	} else {
		fmt.Println("automation resumed")
	}
}

func cmdAutomation(ctx context.Context, c *client.Client, tenant string, jsonOut bool) {
	paused, err := c.Paused(ctx, tenant)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(map[string]any{"tenant_id": tenant, "paused": paused})
		return
	}
	if paused {
		fmt.Println("automation: paused")
	} else {
		fmt.Println("automation: active")
	}
}
