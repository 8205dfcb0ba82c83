// Command trackle-mcp exposes a ticket tracker to agents as an MCP stdio
// server, plus a handful of one-shot commands sharing the same client.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"

	"github.com/trackle-io/trackle-mcp/internal/api"
	"github.com/trackle-io/trackle-mcp/internal/identity"
	"github.com/trackle-io/trackle-mcp/internal/logging"
	"github.com/trackle-io/trackle-mcp/internal/output"
	"github.com/trackle-io/trackle-mcp/internal/tools"
)

var version = "0.1.0-dev"

func resolveVersion() string {
	if version != "0.1.0-dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "(devel)" && info.Main.Version != "" {
		return info.Main.Version
	}
	return version
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "mcp":
		runMCP(os.Args[2:])
	case "call":
		runCall(os.Args[2:])
	case "tools":
		runTools(os.Args[2:])
	case "test-connection":
		runTestConnection(os.Args[2:])
	case "version":
		fmt.Println(resolveVersion())
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

type appRuntime struct {
	Config   appConfig
	Log      zerolog.Logger
	Client   *api.Client
	Registry *tools.Registry
}

func newRuntime(configPath string, pretty bool) (*appRuntime, error) {
	cfg, warnings, err := loadConfig(context.Background(), configPath)
	if err != nil {
		return nil, err
	}

	log := logging.New(logging.Options{Level: cfg.LogLevel, Pretty: pretty})
	for _, warning := range warnings {
		log.Warn().Msg(warning)
	}

	client, err := api.New(cfg.BaseURL, cfg.Username, cfg.Password, cfg.Timeout, log)
	if err != nil {
		return nil, err
	}

	resolver := identity.NewResolver(client, cfg.Username)
	registry := tools.NewRegistry(client, resolver, log)

	return &appRuntime{
		Config:   cfg,
		Log:      log,
		Client:   client,
		Registry: registry,
	}, nil
}

func addConfigFlag(fs *flag.FlagSet) *string {
	return fs.String("config", "", "Config file path (YAML, or TRACKLE_CONFIG)")
}

func runMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := addConfigFlag(fs)
	fs.Parse(args)

	rt, err := newRuntime(*configPath, false)
	if err != nil {
		exitError(err)
	}

	rt.Log.Info().Str("base_url", rt.Client.BaseURL()).Msg("serving MCP on stdio")

	state := &mcpState{Registry: rt.Registry, Client: rt.Client}
	if err := serveMCP(context.Background(), state, os.Stdin, os.Stdout); err != nil {
		exitError(err)
	}
}

func runCall(args []string) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		exitError(fmt.Errorf("usage: trackle-mcp call <tool> [--args JSON]"))
	}
	name := args[0]

	fs := flag.NewFlagSet("call", flag.ExitOnError)
	configPath := addConfigFlag(fs)
	rawArgs := fs.String("args", "", "Tool arguments as a JSON object")
	fs.Parse(args[1:])

	toolArgs := map[string]any{}
	if strings.TrimSpace(*rawArgs) != "" {
		decoder := json.NewDecoder(strings.NewReader(*rawArgs))
		decoder.UseNumber()
		if err := decoder.Decode(&toolArgs); err != nil {
			exitError(fmt.Errorf("parse --args: %w", err))
		}
	}

	rt, err := newRuntime(*configPath, true)
	if err != nil {
		exitError(err)
	}

	payload, err := rt.Registry.Invoke(context.Background(), name, toolArgs)
	if err != nil {
		exitError(err)
	}

	if err := output.PrintJSON(os.Stdout, payload); err != nil {
		exitError(err)
	}
}

func runTools(args []string) {
	fs := flag.NewFlagSet("tools", flag.ExitOnError)
	configPath := addConfigFlag(fs)
	fs.Parse(args)

	rt, err := newRuntime(*configPath, true)
	if err != nil {
		exitError(err)
	}

	table := output.Table{Columns: []string{"TOOL", "DESCRIPTION"}}
	for _, tool := range rt.Registry.Tools() {
		table.Rows = append(table.Rows, []string{tool.Name, tool.Description})
	}
	output.PrintTable(os.Stdout, table)
}

func runTestConnection(args []string) {
	fs := flag.NewFlagSet("test-connection", flag.ExitOnError)
	configPath := addConfigFlag(fs)
	fs.Parse(args)

	rt, err := newRuntime(*configPath, true)
	if err != nil {
		exitError(err)
	}

	payload, err := rt.Registry.Invoke(context.Background(), "test_connection", nil)
	if err != nil {
		exitError(err)
	}

	if err := output.PrintJSON(os.Stdout, payload); err != nil {
		exitError(err)
	}
}

func usage() {
	fmt.Println("trackle-mcp - MCP gateway for the Trackle ticket tracker")
	fmt.Println()
	fmt.Println("Usage: trackle-mcp <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  mcp              Serve MCP over stdio")
	fmt.Println("  call <tool>      Invoke a single tool (--args '{...}')")
	fmt.Println("  tools            List registered tools")
	fmt.Println("  test-connection  Verify connectivity and credentials")
	fmt.Println("  version          Print version")
	fmt.Println()
	fmt.Println("Configuration: TRACKLE_BASE_URL, TRACKLE_USERNAME, TRACKLE_PASSWORD,")
	fmt.Println("TRACKLE_LOG_LEVEL, TRACKLE_TIMEOUT, or a YAML config file (--config).")
}

func exitError(err error) {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		fmt.Fprintln(os.Stderr, apiErr.Error())
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
	}
	os.Exit(1)
}
