package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/example/msgmenu/internal/config"
	"github.com/example/msgmenu/internal/logging"
	"github.com/example/msgmenu/internal/menu"
	"github.com/example/msgmenu/internal/security"
	"github.com/example/msgmenu/internal/service"
)

const usage = `usage: msgmenu [global flags] <command> [flags]

Commands:
  serve             run the indicator (default)
  register          register an application by desktop id
  unregister        forget an application
  actions           list exported actions
  activate          activate an exported action
  menu              print the current menu
  clear             dismiss every source and message
  message-action    trigger a quick action of a message

Global flags:
  --config PATH     configuration file
  --socket ADDR     service endpoint (unix://path or tcp://host:port)
  --token TOKEN     service token
  --debug           verbose logging
`

type globalOptions struct {
	configPath string
	socket     string
	token      string
	debug      bool
	console    bool
}

func main() {
	log.SetFlags(0)
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(args []string) error {
	opts, rest, err := parseGlobalFlags(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Debug {
		logging.EnableDebug()
	}

	if len(rest) == 0 {
		return handleServe(cfg, nil)
	}
	return handleCLI(cfg, rest)
}

// parseGlobalFlags consumes the flags preceding the command and returns the
// command with its own arguments untouched.
func parseGlobalFlags(args []string) (globalOptions, []string, error) {
	var opts globalOptions
	fs := newFlagSet("msgmenu")
	fs.SetInterspersed(false)
	fs.StringVar(&opts.configPath, "config", "", "configuration file")
	fs.StringVar(&opts.socket, "socket", "", "service endpoint")
	fs.StringVar(&opts.token, "token", "", "service token")
	fs.BoolVar(&opts.debug, "debug", false, "verbose logging")
	fs.BoolVar(&opts.console, "console", false, "keep the console window (windows)")
	if err := fs.Parse(args); err != nil {
		return opts, nil, err
	}
	return opts, fs.Args(), nil
}

func loadConfig(opts globalOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if opts.socket != "" {
		cfg.Socket = opts.socket
	}
	if opts.token != "" {
		cfg.Token = opts.token
	}
	if opts.debug {
		cfg.Debug = true
	}
	return cfg, cfg.Validate()
}

func handleCLI(cfg *config.Config, args []string) error {
	command := normalizeCommand(args[0])
	if command == "serve" {
		return handleServe(cfg, args[1:])
	}
	if command == "help" {
		fmt.Print(usage)
		return nil
	}

	client := service.NewClient(cfg.Endpoint(), security.ResolveServiceToken(cfg.Token, config.Secret()))
	ctx := context.Background()
	switch command {
	case "register":
		return handleRegister(ctx, client, args[1:])
	case "unregister":
		return handleUnregister(ctx, client, args[1:])
	case "actions":
		return handleActions(ctx, client)
	case "activate":
		return handleActivate(ctx, client, args[1:])
	case "menu":
		return handleMenu(ctx, client)
	case "clear":
		if err := client.RemoveAll(ctx); err != nil {
			return err
		}
		fmt.Println("Cleared all messages")
		return nil
	case "message-action":
		return handleMessageAction(ctx, client, args[1:])
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func normalizeCommand(arg string) string {
	trimmed := strings.TrimLeft(arg, "-/")
	return strings.ToLower(trimmed)
}

func handleServe(cfg *config.Config, args []string) error {
	fs := newFlagSet("serve")
	variant := fs.String("variant", cfg.Menu.Variant, "menu layout: sectioned or flat")
	noTray := fs.Bool("no-tray", !cfg.Menu.Tray, "do not show a system tray icon")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.Menu.Variant = *variant
	cfg.Menu.Tray = !*noTray
	if err := cfg.Validate(); err != nil {
		return err
	}

	srv, err := service.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("service exited with error: %w", err)
	}
	return nil
}

func handleRegister(ctx context.Context, client *service.Client, args []string) error {
	fs := newFlagSet("register")
	desktopID := fs.String("desktop-id", "", "desktop id of the application")
	endpoint := fs.String("endpoint", "", "application endpoint serving sources and messages")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id := firstNonEmpty(*desktopID, fs.Arg(0))
	if id == "" {
		return errors.New("missing --desktop-id for register")
	}

	reg, err := client.Register(ctx, id, *endpoint)
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s as %s (%s)\n", reg.DesktopID, reg.ID, reg.Name)
	return nil
}

func handleUnregister(ctx context.Context, client *service.Client, args []string) error {
	fs := newFlagSet("unregister")
	desktopID := fs.String("desktop-id", "", "desktop id of the application")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id := firstNonEmpty(*desktopID, fs.Arg(0))
	if id == "" {
		return errors.New("missing --desktop-id for unregister")
	}

	removed, err := client.Unregister(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("application %s not registered", id)
	}
	fmt.Printf("Unregistered %s\n", id)
	return nil
}

func handleActions(ctx context.Context, client *service.Client) error {
	descs, err := client.Actions(ctx)
	if err != nil {
		return err
	}
	if len(descs) == 0 {
		fmt.Println("No actions exported")
		return nil
	}

	fmt.Printf("%-48s %-10s %-8s %s\n", "Name", "Parameter", "Enabled", "State")
	for _, d := range descs {
		state := ""
		if d.State != nil {
			state = truncate(fmt.Sprint(d.State), 40)
		}
		fmt.Printf("%-48s %-10s %-8t %s\n", truncate(d.Name, 48), d.ParameterType, d.Enabled, state)
	}
	return nil
}

func handleActivate(ctx context.Context, client *service.Client, args []string) error {
	fs := newFlagSet("activate")
	name := fs.String("name", "", "exported action name")
	param := fs.String("param", "", "boolean activation parameter; false dismisses")
	dismiss := fs.Bool("dismiss", false, "dismiss instead of activating")
	if err := fs.Parse(args); err != nil {
		return err
	}
	target := menu.ActionName(firstNonEmpty(*name, fs.Arg(0)))
	if target == "" {
		return errors.New("missing --name for activate")
	}

	var parameter *bool
	switch {
	case *dismiss:
		v := false
		parameter = &v
	case *param != "":
		v, err := strconv.ParseBool(*param)
		if err != nil {
			return fmt.Errorf("invalid --param %q: %w", *param, err)
		}
		parameter = &v
	}
	if err := client.Activate(ctx, target, parameter); err != nil {
		return err
	}
	fmt.Printf("Activated %s\n", target)
	return nil
}

func handleMenu(ctx context.Context, client *service.Client) error {
	reply, err := client.Menu(ctx)
	if err != nil {
		return err
	}
	if len(reply.Sections) == 0 {
		fmt.Println("No new messages")
		return nil
	}
	fmt.Print(menu.RenderText(reply.Sections, time.Now()))
	return nil
}

func handleMessageAction(ctx context.Context, client *service.Client, args []string) error {
	fs := newFlagSet("message-action")
	desktopID := fs.String("desktop-id", "", "desktop id of the application")
	messageID := fs.String("message", "", "message id")
	actionID := fs.String("action", "", "quick action id")
	paramList := fs.String("params", "", "comma-separated action parameters")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *desktopID == "" || *messageID == "" || *actionID == "" {
		return errors.New("message-action requires --desktop-id, --message and --action")
	}

	var params []any
	for _, p := range parseList(*paramList) {
		params = append(params, p)
	}
	if err := client.MessageAction(ctx, *desktopID, *messageID, *actionID, params); err != nil {
		return err
	}
	fmt.Printf("Triggered %s on %s\n", *actionID, *messageID)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trimmed := strings.TrimSpace(p)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(os.Stdout)
	return fs
}
