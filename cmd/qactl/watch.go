package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wolfman30/realty-voice-platform/internal/app/bootstrap"
	"github.com/wolfman30/realty-voice-platform/internal/extraction"
	"github.com/wolfman30/realty-voice-platform/internal/transport"
)

type watchOptions struct {
	callID        string
	userID        string
	apiURL        string
	apiToken      string
	interval      time.Duration
	untilComplete bool
	shared        bool
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	w := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch --call-id <id>",
		Short: "Follow the extraction state of a live voice call",
		Long: "Discovers the document behind a call id, then polls that document and prints\n" +
			"the extracted fields whenever they change.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, opts, w)
		},
	}
	cmd.Flags().StringVar(&w.callID, "call-id", "", "voice call id to follow")
	cmd.Flags().StringVar(&w.userID, "user-id", "", "restrict discovery to this user")
	cmd.Flags().StringVar(&w.apiURL, "api-url", opts.cfg.APIBaseURL, "main backend base URL")
	cmd.Flags().StringVar(&w.apiToken, "api-token", opts.cfg.APIToken, "bearer token for the main backend")
	cmd.Flags().DurationVar(&w.interval, "interval", opts.cfg.ExtractionPollInterval, "poll interval")
	cmd.Flags().BoolVar(&w.untilComplete, "until-complete", false, "exit once no required fields remain")
	cmd.Flags().BoolVar(&w.shared, "shared", true, "share the call resolution through Redis when REDIS_ADDR is set")
	_ = cmd.MarkFlagRequired("call-id")
	return cmd
}

func runWatch(cmd *cobra.Command, opts *rootOptions, w *watchOptions) error {
	ctx := cmd.Context()
	logger := opts.logger(cmd.ErrOrStderr())

	httpClient, err := transport.NewHTTPClient(transport.Options{Token: w.apiToken})
	if err != nil {
		return err
	}
	resolverOpts := []extraction.ResolverOption{
		extraction.WithQueryCache(extraction.NewQueryCache(opts.cfg.ExtractionCacheTTL)),
	}
	if w.shared {
		if rdb := bootstrap.BuildRedisClient(ctx, opts.cfg, logger, true); rdb != nil {
			defer rdb.Close()
			resolverOpts = append(resolverOpts, extraction.WithResolutionStore(bootstrap.BuildResolutionStore(rdb, opts.cfg)))
		}
	}
	resolver := extraction.NewResolver(extraction.NewClient(w.apiURL, httpClient, logger), logger, resolverOpts...)

	tracker := extraction.NewTracker(ctx, resolver, logger)
	defer tracker.Close()
	tracker.Configure(extraction.Options{
		CallID:       w.callID,
		UserID:       w.userID,
		PollInterval: w.interval,
		Enabled:      true,
	})

	printer := newUpdatePrinter(cmd.OutOrStdout(), opts.json())
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case u, ok := <-tracker.Updates():
			if !ok {
				return nil
			}
			if err := printer.print(u); err != nil {
				return err
			}
			if w.untilComplete && complete(u) {
				return nil
			}
		}
	}
}

func complete(u extraction.Update) bool {
	return u.Err == nil && u.Record != nil && len(u.Record.RequiredFields) == 0
}

// updatePrinter prints an update only when something visible changed, so a
// steady poll does not flood the terminal.
type updatePrinter struct {
	w    io.Writer
	json bool
	last string
}

func newUpdatePrinter(w io.Writer, asJSON bool) *updatePrinter {
	return &updatePrinter{w: w, json: asJSON}
}

type updateView struct {
	CallID     string             `json:"call_id"`
	Phase      string             `json:"phase"`
	DocumentID string             `json:"document_id,omitempty"`
	Required   []string           `json:"required_fields,omitempty"`
	Fields     []extraction.Field `json:"fields"`
	Error      string             `json:"error,omitempty"`
}

func viewOf(u extraction.Update) updateView {
	v := updateView{
		CallID:     u.CallID,
		Phase:      u.Phase.String(),
		DocumentID: u.DocumentID,
		Fields:     u.Fields,
	}
	if v.Fields == nil {
		v.Fields = []extraction.Field{}
	}
	if u.Record != nil {
		v.Required = u.Record.RequiredFields
	}
	if u.Err != nil {
		v.Error = u.Err.Error()
	}
	return v
}

func (p *updatePrinter) print(u extraction.Update) error {
	v := viewOf(u)
	key, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if string(key) == p.last {
		return nil
	}
	p.last = string(key)

	if p.json {
		_, err := fmt.Fprintln(p.w, string(key))
		return err
	}
	ts := u.At.Format("15:04:05")
	switch {
	case v.Error != "":
		_, err = fmt.Fprintf(p.w, "%s  %-11s ! %s\n", ts, v.Phase, v.Error)
	case u.Record == nil:
		_, err = fmt.Fprintf(p.w, "%s  %-11s waiting for call %s\n", ts, v.Phase, v.CallID)
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "%s  %-11s document %s", ts, v.Phase, v.DocumentID)
		if len(v.Required) > 0 {
			fmt.Fprintf(&b, " (missing: %s)", strings.Join(v.Required, ", "))
		} else {
			b.WriteString(" (complete)")
		}
		b.WriteByte('\n')
		for _, f := range v.Fields {
			fmt.Fprintf(&b, "    %-40s %s\n", f.Key, f.Value)
		}
		_, err = io.WriteString(p.w, b.String())
	}
	return err
}
