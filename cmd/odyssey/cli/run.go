package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
)

// RunJobs executes `odyssey jobs <command>` and writes a human readable result to out.
func RunJobs(ctx context.Context, redisAddr string, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: odyssey jobs scan|verify|stats|archived")
	}
	c, err := NewJobsCLI(redisAddr)
	if err != nil {
		return err
	}
	defer c.Close()

	switch args[0] {
	case "scan":
		fs := flag.NewFlagSet("scan", flag.ContinueOnError)
		fs.SetOutput(out)
		days := fs.Int("days", 7, "trailing window in days")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		info, err := c.TriggerIntegrityScan(ctx, *days)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "enqueued %s id=%s\n", info.Type, info.ID)
		return err
	case "verify":
		if len(args) < 2 {
			return errors.New("usage: odyssey jobs verify <grn-id>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("jobs cli: invalid grn id %q", args[1])
		}
		info, err := c.TriggerVerify(ctx, id)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "enqueued %s id=%s\n", info.Type, info.ID)
		return err
	case "stats":
		stats, err := c.InspectQueue(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "queue=%s pending=%d active=%d scheduled=%d retry=%d archived=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Archived)
		return err
	case "archived":
		tasks, err := c.ListArchived(ctx, 20)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if _, err := fmt.Fprintf(out, "%s %s %s\n", t.ID, t.Type, t.LastErr); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("jobs cli: unknown command %q", args[0])
	}
}
