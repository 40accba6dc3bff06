// Command keyoku is a small command-line front end to the Keyoku API.
//
// Usage:
//
//	keyoku [-config file] [-base-url url] <command> [flags] [args]
//
// Commands: remember, search, stats, job, memories, entities, path, export.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/keyoku-dev/keyoku-go/pkg/config"
	"github.com/keyoku-dev/keyoku-go/pkg/errors"
	"github.com/keyoku-dev/keyoku-go/pkg/keyoku"
	"github.com/keyoku-dev/keyoku-go/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type cli struct {
	client *keyoku.Client
	out    io.Writer
}

type command func(ctx context.Context, c *cli, args []string) error

var commands = map[string]command{
	"remember": cmdRemember,
	"search":   cmdSearch,
	"stats":    cmdStats,
	"job":      cmdJob,
	"memories": cmdMemories,
	"entities": cmdEntities,
	"path":     cmdPath,
	"export":   cmdExport,
}

// run executes one command and returns the process exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("keyoku", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to configuration file")
	baseURL := fs.String("base-url", "", "API base URL (overrides baseUrl)")
	verbose := fs.Bool("v", false, "Log requests to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "usage: keyoku [flags] <remember|search|stats|job|memories|entities|path|export> ...")
		return 2
	}

	name := fs.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		return 2
	}

	settings, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if *baseURL != "" {
		settings.BaseURL = strings.TrimRight(*baseURL, "/")
	}

	opts := []keyoku.Option{}
	if *verbose {
		logCfg := logging.FromSettings(settings.Logging)
		logCfg.Level = logging.LogLevelDebug
		factory, err := logging.NewFactoryWithWriter(logCfg, stderr)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		defer factory.Close()
		opts = append(opts, keyoku.WithLogger(factory.GetLogger("cli")))
	}

	client, err := keyoku.NewFromSettings(settings, opts...)
	if err != nil {
		report(stderr, err)
		return 1
	}

	if err := cmd(ctx, &cli{client: client, out: stdout}, fs.Args()[1:]); err != nil {
		report(stderr, err)
		return 1
	}
	return 0
}

// report prints err with its kind when it came from the API
func report(w io.Writer, err error) {
	if e, ok := errors.As(err); ok {
		if e.StatusCode != 0 {
			fmt.Fprintf(w, "error [%s %d]: %s\n", e.Kind, e.StatusCode, e.Message)
			return
		}
		fmt.Fprintf(w, "error [%s]: %s\n", e.Kind, e.Message)
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usage(synopsis string) error {
	return errors.New(errors.KindValidation, "usage: "+synopsis)
}

func cmdRemember(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("remember", flag.ContinueOnError)
	wait := fs.Bool("wait", false, "Wait for the job to finish")
	agent := fs.String("agent", "", "Agent ID")
	session := fs.String("session", "", "Session ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	content := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(content) == "" {
		return usage("keyoku remember [-wait] [-agent id] [-session id] <content>")
	}

	handle, err := c.client.Remember(ctx, content, &keyoku.RememberOptions{AgentID: *agent, SessionID: *session})
	if err != nil {
		return err
	}
	if !*wait {
		return c.print(map[string]any{"job_id": handle.JobID, "status": handle.Status})
	}
	job, err := handle.Wait(ctx)
	if err != nil {
		return err
	}
	return c.print(job)
}

func cmdSearch(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	limit := fs.Int("limit", 0, "Maximum results")
	mode := fs.String("mode", "", "semantic, keyword or hybrid")
	agent := fs.String("agent", "", "Agent ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(query) == "" {
		return usage("keyoku search [-limit n] [-mode m] <query>")
	}

	resp, err := c.client.Search(ctx, query, &keyoku.SearchOptions{
		Limit:   *limit,
		Mode:    keyoku.SearchMode(*mode),
		AgentID: *agent,
	})
	if err != nil {
		return err
	}
	return c.print(resp)
}

func cmdStats(ctx context.Context, c *cli, _ []string) error {
	stats, err := c.client.Stats(ctx)
	if err != nil {
		return err
	}
	return c.print(stats)
}

func cmdJob(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("job", flag.ContinueOnError)
	wait := fs.Bool("wait", false, "Wait for the job to finish")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usage("keyoku job [-wait] <job-id>")
	}

	var (
		job *keyoku.Job
		err error
	)
	if *wait {
		job, err = c.client.Jobs.Wait(ctx, fs.Arg(0))
	} else {
		job, err = c.client.Jobs.Get(ctx, fs.Arg(0))
	}
	if err != nil {
		return err
	}
	return c.print(job)
}

func cmdMemories(ctx context.Context, c *cli, args []string) error {
	if len(args) == 0 {
		return usage("keyoku memories <list|get|delete> ...")
	}

	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("memories list", flag.ContinueOnError)
		limit := fs.Int("limit", 0, "Page size")
		offset := fs.Int("offset", 0, "Page offset")
		agent := fs.String("agent", "", "Agent ID")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		resp, err := c.client.Memories.List(ctx, &keyoku.ListOptions{Limit: *limit, Offset: *offset, AgentID: *agent})
		if err != nil {
			return err
		}
		return c.print(resp)
	case "get":
		if len(args) != 2 {
			return usage("keyoku memories get <memory-id>")
		}
		mem, err := c.client.Memories.Get(ctx, args[1])
		if err != nil {
			return err
		}
		return c.print(mem)
	case "delete":
		if len(args) != 2 {
			return usage("keyoku memories delete <memory-id>")
		}
		if err := c.client.Memories.Delete(ctx, args[1]); err != nil {
			return err
		}
		return c.print(map[string]any{"deleted": args[1]})
	default:
		return usage("keyoku memories <list|get|delete> ...")
	}
}

func cmdEntities(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("entities", flag.ContinueOnError)
	typ := fs.String("type", "", "Entity type")
	limit := fs.Int("limit", 0, "Maximum results")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		entities []keyoku.Entity
		err      error
	)
	if query := strings.Join(fs.Args(), " "); query != "" {
		entities, err = c.client.Entities.Search(ctx, query, &keyoku.EntitySearchOptions{Limit: *limit, Type: *typ})
	} else {
		entities, err = c.client.Entities.List(ctx, &keyoku.EntityListOptions{Limit: *limit, Type: *typ})
	}
	if err != nil {
		return err
	}
	return c.print(entities)
}

func cmdPath(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("path", flag.ContinueOnError)
	depth := fs.Int("max-depth", 0, "Maximum hops")
	types := fs.String("types", "", "Comma-separated relationship types")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return usage("keyoku path [-max-depth n] [-types a,b] <from> <to>")
	}

	opts := &keyoku.FindPathOptions{MaxDepth: *depth}
	if *types != "" {
		opts.RelationshipTypes = strings.Split(*types, ",")
	}
	path, err := c.client.Graph.FindPath(ctx, fs.Arg(0), fs.Arg(1), opts)
	if err != nil {
		return err
	}
	if path == nil {
		return c.print(map[string]any{"path": false})
	}
	return c.print(path)
}

func cmdExport(ctx context.Context, c *cli, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	wait := fs.Bool("wait", false, "Wait for the export to finish")
	out := fs.String("out", "", "Download the finished export to this file (implies -wait)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	handle, err := c.client.Data.Export(ctx)
	if err != nil {
		return err
	}
	if !*wait && *out == "" {
		return c.print(map[string]any{"job_id": handle.JobID, "status": handle.Status})
	}
	if _, err := handle.Wait(ctx); err != nil {
		return err
	}
	if *out == "" {
		return c.print(map[string]any{"job_id": handle.JobID, "status": keyoku.JobStatusCompleted})
	}

	body, err := c.client.Data.Download(ctx, handle.JobID)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}
	return c.print(map[string]any{"job_id": handle.JobID, "file": *out, "bytes": n})
}
