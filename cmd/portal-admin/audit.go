package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	"github.com/DexterMayheww/nit-portal-api/internal/data"
)

const (
	defaultAuditListLimit = 50
	maxAuditListLimit     = 1000
	auditCommandTimeout   = 2 * time.Minute
)

type auditListOptions struct {
	Actor   string
	Limit   int
	Query   string
	RawJSON bool
}

type auditPurgeOptions struct {
	OlderThan time.Duration
	Yes       bool
}

func parseAuditListFlags(args []string) (auditListOptions, error) {
	fs := flag.NewFlagSet("audit-list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := auditListOptions{Limit: defaultAuditListLimit}
	fs.StringVar(&opts.Actor, "actor", "", "Only show events recorded for this actor (email or user ID)")
	fs.IntVar(&opts.Limit, "limit", defaultAuditListLimit, "Maximum number of events to show")
	fs.BoolVar(&opts.RawJSON, "json", false, "Emit raw JSON instead of a table")
	fs.StringVar(&opts.Query, "query", "", "JMESPath expression applied to the event list (implies --json output)")

	if err := fs.Parse(args); err != nil {
		return auditListOptions{}, err
	}
	if opts.Limit <= 0 || opts.Limit > maxAuditListLimit {
		return auditListOptions{}, fmt.Errorf("--limit must be between 1 and %d", maxAuditListLimit)
	}
	if opts.Query != "" {
		if _, err := jmespath.Compile(opts.Query); err != nil {
			return auditListOptions{}, fmt.Errorf("compile --query expression: %w", err)
		}
	}
	return opts, nil
}

func runAuditList(cmdCtx *commandContext, args []string) error {
	opts, err := parseAuditListFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, auditCommandTimeout)
	defer cancel()

	db, _, err := connectInfraWithOptions(&connectInfraOptions{
		Logger: cmdCtx.Logger,
		Config: &cmdCtx.Config,
		WantDB: true,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeInfra(db, nil); closeErr != nil {
			cmdCtx.Logger.Warn("close infra failed", "error", closeErr)
		}
	}()

	repo := data.NewAuditRepo(db)

	var entries []data.AuditEntry
	if opts.Actor != "" {
		entries, err = repo.ListByActor(ctx, opts.Actor, opts.Limit)
	} else {
		entries, err = repo.List(ctx, opts.Limit)
	}
	if err != nil {
		return fmt.Errorf("list audit events: %w", err)
	}

	if opts.Query != "" {
		return printAuditQuery(entries, opts.Query)
	}
	if opts.RawJSON {
		return printAuditJSON(entries)
	}
	return printAuditTable(entries)
}

// printAuditQuery evaluates a JMESPath expression against the entries and
// prints whatever shape the expression yields.
func printAuditQuery(entries []data.AuditEntry, query string) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshal audit events: %w", err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("decode audit events: %w", err)
	}

	result, err := jmespath.Search(query, doc)
	if err != nil {
		return fmt.Errorf("evaluate --query expression: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func printAuditJSON(entries []data.AuditEntry) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func printAuditTable(entries []data.AuditEntry) error {
	if len(entries) == 0 {
		return writeln(os.Stdout, "No audit events found.")
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "TIME\tACTOR\tEVENT\tPROVIDER\tSUCCESS\tDETAIL"); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := writef(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
			entry.At.UTC().Format(time.RFC3339),
			entry.Actor,
			entry.Event,
			entry.Provider,
			entry.Success,
			entry.Detail,
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func parseAuditPurgeFlags(args []string) (auditPurgeOptions, error) {
	fs := flag.NewFlagSet("audit-purge", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts auditPurgeOptions
	fs.DurationVar(&opts.OlderThan, "older-than", 0, "Delete events older than this duration (e.g. 2160h for 90 days)")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip the confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return auditPurgeOptions{}, err
	}
	if opts.OlderThan <= 0 {
		return auditPurgeOptions{}, errors.New("--older-than is required and must be greater than zero")
	}
	return opts, nil
}

func runAuditPurge(cmdCtx *commandContext, args []string) error {
	opts, err := parseAuditPurgeFlags(args)
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-opts.OlderThan)
	if confirmErr := confirmAction(opts.Yes, fmt.Sprintf("delete audit events recorded before %s", cutoff.UTC().Format(time.RFC3339))); confirmErr != nil {
		return confirmErr
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, auditCommandTimeout)
	defer cancel()

	db, _, err := connectInfraWithOptions(&connectInfraOptions{
		Logger: cmdCtx.Logger,
		Config: &cmdCtx.Config,
		WantDB: true,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeInfra(db, nil); closeErr != nil {
			cmdCtx.Logger.Warn("close infra failed", "error", closeErr)
		}
	}()

	repo := data.NewAuditRepo(db)
	purged, err := repo.Purge(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge audit events: %w", err)
	}

	cmdCtx.Logger.Info("audit purge complete", "rows_deleted", purged, "cutoff", cutoff.UTC().Format(time.RFC3339))
	return nil
}

func confirmAction(skip bool, description string) error {
	if skip {
		return nil
	}

	if err := writef(os.Stdout, "About to %s.\n", description); err != nil {
		return fmt.Errorf("print confirmation message: %w", err)
	}
	if err := write(os.Stdout, "Continue? [y/N]: "); err != nil {
		return fmt.Errorf("print confirmation prompt: %w", err)
	}
	reader := bufio.NewReader(os.Stdin)
	resp, err := reader.ReadString('\n')
	if err != nil {
		if writeErr := writef(os.Stdout, "\nFailed to read confirmation input: %v\n", err); writeErr != nil {
			return fmt.Errorf("aborted by user: report write failed: %w", writeErr)
		}
		return errors.New("aborted by user")
	}
	resp = strings.ToLower(strings.TrimSpace(resp))
	if resp == "y" || resp == "yes" {
		return nil
	}
	return errors.New("aborted by user")
}
