package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"ytmonitor/aggregate"
	"ytmonitor/server"
	"ytmonitor/storage"
	"ytmonitor/youtube"
)

type serveCommand struct {
	opts   *Options
	Listen string `short:"l" long:"listen" env:"YTMONITOR_LISTEN_ADDR" description:"Listen address (default from settings, :8080)"`
	Token  string `long:"api-token" env:"YTMONITOR_API_TOKEN" description:"Require this token in X-API-Key on /api routes"`
}

func (c *serveCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(c.opts)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.buildPipeline(ctx)
	if err != nil {
		return err
	}

	addr := a.cfg.ListenAddr
	if c.Listen != "" {
		addr = c.Listen
	}
	token := a.cfg.APIToken
	if c.Token != "" {
		token = c.Token
	}

	srv := server.New(server.Deps{
		Store:             a.store,
		Aggregator:        p.aggregator,
		Thumbnails:        p.thumbnails,
		Logger:            a.logger,
		Metrics:           a.metrics,
		Gatherer:          a.registry,
		APIToken:          token,
		DefaultMaxResults: a.cfg.MaxResults,
		Checks:            p.checks,
	})
	return srv.Run(ctx, addr)
}

type listCommand struct {
	opts       *Options
	out        io.Writer
	MaxResults int      `short:"n" long:"max-results" description:"Uploads fetched per channel (1-50)"`
	Keywords   []string `short:"k" long:"keyword" description:"Keyword filter, repeatable; replaces the configured keywords"`
	JSON       bool     `long:"json" description:"Print the result as JSON"`
}

func (c *listCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(c.opts)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.buildPipeline(ctx)
	if err != nil {
		return err
	}

	snap := a.store.Snapshot()
	req := aggregate.Request{
		Channels:   snap.Channels,
		MaxResults: a.cfg.MaxResults,
		Keywords:   snap.Keywords,
	}
	if c.MaxResults != 0 {
		req.MaxResults = youtube.ClampMaxResults(c.MaxResults)
	}
	if len(c.Keywords) > 0 {
		req.Keywords = storage.CleanList(c.Keywords)
	}

	res, err := p.aggregator.Aggregate(ctx, req)
	if err != nil && res == nil {
		return err
	}
	if c.JSON {
		if encErr := writeJSON(c.out, res); encErr != nil {
			return encErr
		}
	} else if writeErr := writeVideos(c.out, res); writeErr != nil {
		return writeErr
	}
	return err
}

// writeVideos prints one upload per line: published, channel, title, watch URL.
// Skipped channels are listed after the table.
func writeVideos(w io.Writer, res *aggregate.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PUBLISHED\tCHANNEL\tTITLE\tURL")
	for _, v := range res.Videos {
		channel := v.ChannelTitle
		if channel == "" {
			channel = v.ChannelID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			v.PublishedAt.Local().Format(time.DateTime),
			oneLine(channel),
			oneLine(v.Title),
			v.WatchURL())
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, f := range res.Failures {
		fmt.Fprintf(w, "skipped %s (%s): %s\n", f.Reference, f.Stage, f.Message)
	}
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type resolveCommand struct {
	opts *Options
	out  io.Writer
	Args struct {
		References []string `positional-arg-name:"reference" required:"1"`
	} `positional-args:"yes"`
}

func (c *resolveCommand) Execute(args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(c.opts)
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.buildPipeline(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, ref := range c.Args.References {
		id, err := p.resolver.Resolve(ctx, ref)
		if err != nil {
			failed++
			fmt.Fprintf(c.out, "%s\terror: %v\n", ref, err)
			continue
		}
		fmt.Fprintf(c.out, "%s\t%s\n", ref, id)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d references failed", failed, len(c.Args.References))
	}
	return nil
}

type configShowCommand struct {
	opts *Options
	out  io.Writer
}

func (c *configShowCommand) Execute(args []string) error {
	a, err := openApp(c.opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return writeJSON(c.out, a.store.Snapshot())
}

type configSetCommand struct {
	opts     *Options
	out      io.Writer
	Channels []string `long:"channel" description:"Channel URL or handle, repeatable; commas and newlines also separate; replaces the stored channels"`
	Keywords []string `long:"keyword" description:"Keyword, repeatable; commas and newlines also separate; replaces the stored keywords"`
}

func (c *configSetCommand) Execute(args []string) error {
	a, err := openApp(c.opts)
	if err != nil {
		return err
	}
	defer a.Close()

	// A list whose flag is absent keeps its stored value; --keyword "" clears it.
	snap := a.store.Snapshot()
	channels, keywords := snap.Channels, snap.Keywords
	if c.Channels != nil {
		channels = splitAll(c.Channels)
	}
	if c.Keywords != nil {
		keywords = splitAll(c.Keywords)
	}
	if err := a.store.SaveSettings(context.Background(), channels, keywords); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "saved %d channels and %d keywords to %s\n", len(channels), len(keywords), a.store.Path())
	return nil
}

// splitAll applies storage.SplitList to every value.
func splitAll(values []string) []string {
	var out []string
	for _, v := range values {
		out = append(out, storage.SplitList(v)...)
	}
	return out
}
