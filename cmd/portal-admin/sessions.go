package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"

	redisadapter "github.com/DexterMayheww/nit-portal-api/internal/adapters/redis"
	domainauth "github.com/DexterMayheww/nit-portal-api/internal/domain/auth"
)

const (
	sessionKeyPattern   = "session:*"
	sessionKeyPrefixLen = len("session:")
	sessionScanCount    = 100
	redisCommandTimeout = time.Minute
)

type listSessionsOptions struct {
	Limit int
}

func parseListSessionsFlags(args []string) (listSessionsOptions, error) {
	fs := flag.NewFlagSet("list-sessions", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := listSessionsOptions{Limit: 100}
	fs.IntVar(&opts.Limit, "limit", 100, "Maximum number of sessions to show")

	if err := fs.Parse(args); err != nil {
		return listSessionsOptions{}, err
	}
	if opts.Limit <= 0 {
		return listSessionsOptions{}, errors.New("--limit must be greater than zero")
	}
	return opts, nil
}

func runListSessions(cmdCtx *commandContext, args []string) error {
	opts, err := parseListSessionsFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, redisCommandTimeout)
	defer cancel()

	redisClient, err := requireRedisClient(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	sessions, err := collectSessions(ctx, redisClient, opts.Limit)
	if err != nil {
		return err
	}
	return printSessionTable(sessions)
}

func collectSessions(ctx context.Context, client redis.UniversalClient, limit int) ([]domainauth.Session, error) {
	store := redisadapter.NewSessionStore(client)

	var (
		sessions []domainauth.Session
		cursor   uint64
	)
	for {
		keys, next, err := client.Scan(ctx, cursor, sessionKeyPattern, sessionScanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scan sessions: %w", err)
		}
		for _, key := range keys {
			if len(sessions) >= limit {
				return sortSessions(sessions), nil
			}
			sess, getErr := store.Get(ctx, key[sessionKeyPrefixLen:])
			if getErr != nil {
				// Key may have expired between scan and fetch.
				if errors.Is(getErr, redisadapter.ErrNotFound) {
					continue
				}
				return nil, fmt.Errorf("load session %q: %w", key, getErr)
			}
			sessions = append(sessions, sess)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return sortSessions(sessions), nil
}

func sortSessions(sessions []domainauth.Session) []domainauth.Session {
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].ExpiresAt.Before(sessions[j].ExpiresAt)
	})
	return sessions
}

func printSessionTable(sessions []domainauth.Session) error {
	if len(sessions) == 0 {
		return writeln(os.Stdout, "No active sessions found.")
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "SESSION\tUSER\tEMAIL\tROLE\tOTP VERIFIED\tEXPIRES"); err != nil {
		return err
	}
	for _, sess := range sessions {
		if err := writef(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
			sess.ID,
			sess.UserID,
			sess.Email,
			sess.Role,
			sess.OTPVerified,
			sess.ExpiresAt.UTC().Format(time.RFC3339),
		); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runRevokeSession(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("revoke-session", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: revoke-session [--yes] <session-id>")
	}
	sessionID := fs.Arg(0)

	if confirmErr := confirmAction(*yes, fmt.Sprintf("revoke session %s", sessionID)); confirmErr != nil {
		return confirmErr
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, redisCommandTimeout)
	defer cancel()

	redisClient, err := requireRedisClient(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	store := redisadapter.NewSessionStore(redisClient)
	if _, getErr := store.Get(ctx, sessionID); getErr != nil {
		if errors.Is(getErr, redisadapter.ErrNotFound) {
			return fmt.Errorf("session %q not found", sessionID)
		}
		return fmt.Errorf("load session: %w", getErr)
	}
	if deleteErr := store.Delete(ctx, sessionID); deleteErr != nil {
		return fmt.Errorf("delete session: %w", deleteErr)
	}

	cmdCtx.Logger.Info("session revoked", "session_id", sessionID)
	return nil
}

func runClearOTP(cmdCtx *commandContext, args []string) error {
	fs := flag.NewFlagSet("clear-otp", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	phone := fs.String("phone", "", "Phone number whose pending challenge should be cleared")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *phone == "" {
		return errors.New("--phone is required")
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, redisCommandTimeout)
	defer cancel()

	redisClient, err := requireRedisClient(cmdCtx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	store := redisadapter.NewChallengeStore(redisClient)
	if deleteErr := store.Delete(ctx, *phone); deleteErr != nil {
		return fmt.Errorf("delete challenge: %w", deleteErr)
	}

	cmdCtx.Logger.Info("otp challenge cleared", "phone", *phone)
	return nil
}

//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func requireRedisClient(cmdCtx *commandContext) (redis.UniversalClient, error) {
	_, redisClient, err := connectInfraWithOptions(&connectInfraOptions{
		Logger:    cmdCtx.Logger,
		Config:    &cmdCtx.Config,
		WantRedis: true,
	})
	if err != nil {
		return nil, err
	}
	if redisClient == nil {
		return nil, errors.New("redis is not configured; set REDIS_URI or sentinel/cluster settings")
	}
	return redisClient, nil
}
