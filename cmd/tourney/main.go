// tourney - game-server tournament herald
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/klauspost/compress/gzhttp"
	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/ernie/tourney-tracker/internal/api"
	"github.com/ernie/tourney-tracker/internal/auth"
	"github.com/ernie/tourney-tracker/internal/bus"
	"github.com/ernie/tourney-tracker/internal/config"
	"github.com/ernie/tourney-tracker/internal/domain"
	"github.com/ernie/tourney-tracker/internal/feed"
	"github.com/ernie/tourney-tracker/internal/notify"
	"github.com/ernie/tourney-tracker/internal/storage"
	"github.com/ernie/tourney-tracker/internal/tracker"
)

var version = "dev"

const defaultConfigPath = "/etc/tourney/config.yml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "active":
		cmdActive(os.Args[2:])
	case "recent":
		cmdRecent(os.Args[2:])
	case "user":
		cmdUser(os.Args[2:])
	case "version":
		fmt.Printf("tourney %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: tourney <command> [options] [args]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                        Start the tournament herald")
	fmt.Println("  active                       Show active tournaments")
	fmt.Println("  recent [--limit N]           Show recent tournament history (default: 20)")
	fmt.Println("  user add [--admin] <username>")
	fmt.Println("                               Add an API user (prompts for password)")
	fmt.Println("  user remove <username>       Remove an API user")
	fmt.Println("  user list                    List all API users")
	fmt.Println("  version                      Show version")
	fmt.Println("  help                         Show this help")
	fmt.Println()
	fmt.Println("Global Options:")
	fmt.Println("  --config <path>    Path to configuration file (default /etc/tourney/config.yml)")
	fmt.Println("  --url <url>        Base URL of the tourney server (default: derived from config)")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  tourney serve --config /etc/tourney/config.yml")
	fmt.Println("  tourney active")
	fmt.Println("  tourney recent --limit 50")
	fmt.Println("  tourney user add --admin myuser")
}

// cmdServe starts the tracker, feed client, and HTTP API
func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	cfgPath := *configPath
	if cfgPath == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			cfgPath = defaultConfigPath
		} else {
			log.Fatalf("No config file found at %s. Use --config to specify a config file.", defaultConfigPath)
		}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Tourney %s starting...", version)
	log.Printf("Watching %d rooms on %s", len(cfg.Feed.Rooms), cfg.Feed.URL)

	// Initialize storage
	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()
	log.Printf("Database initialized at %s", cfg.Database.Path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create the tracker with the chat sink and history store
	notifier := notify.NewChatClient(cfg.Chat)
	trk := tracker.New(cfg.Tracker, cfg.Feed.ServerBaseURL, notifier, store)
	trk.Start(ctx)
	log.Printf("Tracker started, sweeping every %v (max age %v)", cfg.Tracker.SweepInterval, cfg.Tracker.MaxAge)

	// Optional NATS mirror
	var publisher *bus.Publisher
	if cfg.Bus.Enabled {
		publisher, err = bus.New(cfg.Bus)
		if err != nil {
			log.Fatalf("Failed to start event bus: %v", err)
		}
		defer publisher.Close()
	}

	// Connect the feed
	feedClient := feed.NewClient(cfg.Feed)
	if err := feedClient.Start(); err != nil {
		log.Fatalf("Failed to start feed client: %v", err)
	}

	// Frames are handled one at a time, each to completion, so the
	// tracker never interleaves lines from different frames
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-feedClient.Errors:
				log.Printf("Feed error: %v", err)
			case frame := <-feedClient.Frames:
				trk.HandleFrame(ctx, frame)
			}
		}
	}()

	// Create auth service
	authService := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)
	if cfg.Auth.JWTSecret == "" {
		log.Printf("Warning: No JWT secret configured. Auth tokens will use an empty secret.")
	}

	// Create HTTP router
	router := api.NewRouter(store, trk, authService, cfg.Feed.Rooms)
	router.StartWebSocketHub()

	// Fan lifecycle events out to the websocket hub and the bus
	go func() {
		for event := range trk.Events() {
			router.Broadcast(event)
			if publisher != nil {
				if err := publisher.Publish(event); err != nil {
					log.Printf("Error publishing event to bus: %v", err)
				}
			}
		}
	}()

	// Start HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      gzhttp.GzipHandler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case sig := <-sigCh:
		log.Printf("Received signal %v, shutting down...", sig)
	case err := <-serverErr:
		log.Fatalf("HTTP server error: %v", err)
	}

	// Sequential shutdown
	log.Println("Shutting down HTTP server...")
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Println("Stopping feed client...")
	feedClient.Stop()

	log.Println("Stopping tracker...")
	trk.Stop()

	cancel()
	log.Println("Shutdown complete")
}

// CLI helper variables
var (
	baseURL = "http://localhost:8080"
	dbPath  string
)

// loadCLIConfigFromFlags loads config using pre-parsed flag values
func loadCLIConfigFromFlags(configPath, url string) *config.Config {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config from %s: %v\n", configPath, err)
		dbPath = "/var/lib/tourney/tourney.db"
		if url != "" {
			baseURL = url
		}
		return nil
	}

	dbPath = cfg.Database.Path
	if url != "" {
		baseURL = url
	} else {
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Server.ListenAddr, cfg.Server.HTTPPort)
	}
	return cfg
}

// getJSON fetches a JSON payload from the running server
func getJSON(path string, out interface{}) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + path)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("requesting %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// cmdActive shows the live tournaments
func cmdActive(args []string) {
	fs := flag.NewFlagSet("active", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the tourney server")
	fs.Parse(args)

	loadCLIConfigFromFlags(*configPath, *url)

	var response struct {
		Tournaments []domain.Tournament `json:"tournaments"`
	}
	if err := getJSON("/api/tournaments/active", &response); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(response.Tournaments) == 0 {
		fmt.Println("No active tournaments")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROOM\tFORMAT\tNAME\tAGE")
	fmt.Fprintln(w, "----\t------\t----\t---")
	for _, t := range response.Tournaments {
		age := time.Since(t.StartedAt).Round(time.Second)
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", t.Room, t.Format, t.DisplayName(), age)
	}
	w.Flush()
}

// cmdRecent shows recent tournament history
func cmdRecent(args []string) {
	fs := flag.NewFlagSet("recent", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the tourney server")
	limit := fs.Int("limit", 20, "number of recent tournaments to show")
	fs.Parse(args)

	loadCLIConfigFromFlags(*configPath, *url)

	var records []domain.TournamentRecord
	if err := getJSON(fmt.Sprintf("/api/tournaments/recent?limit=%d", *limit), &records); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if len(records) == 0 {
		fmt.Println("No tournament history")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tROOM\tNAME\tOPENED\tREASON\tWINNER")
	fmt.Fprintln(w, "--\t----\t----\t------\t------\t------")
	for _, rec := range records {
		reason := "open"
		if rec.EndReason != nil {
			reason = *rec.EndReason
		}
		winner := "-"
		if rec.Winner != nil {
			winner = *rec.Winner
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			rec.ID, rec.Room, rec.Name, rec.OpenedAt.Local().Format("2006-01-02 15:04"), reason, winner)
	}
	w.Flush()
}

// cmdUser handles user subcommands
func cmdUser(args []string) {
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "Error: user subcommand required: add, remove, list\n")
		os.Exit(1)
	}

	subCmd := args[0]
	fs := flag.NewFlagSet("user", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "path to configuration file")
	url := fs.String("url", "", "base URL of the tourney server")
	fs.Parse(args[1:])
	remaining := fs.Args()

	loadCLIConfigFromFlags(*configPath, *url)

	store, err := storage.New(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	switch subCmd {
	case "add":
		err = cmdUserAdd(ctx, store, remaining)
	case "remove":
		err = cmdUserRemove(ctx, store, remaining)
	case "list":
		err = cmdUserList(ctx, store)
	default:
		err = fmt.Errorf("unknown user subcommand: %s", subCmd)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func cmdUserAdd(ctx context.Context, store *storage.Store, args []string) error {
	fs := flag.NewFlagSet("user add", flag.ExitOnError)
	isAdmin := fs.Bool("admin", false, "create as admin user")
	fs.Parse(args)

	remaining := fs.Args()
	if len(remaining) < 1 {
		return fmt.Errorf("usage: tourney user add [--admin] <username>")
	}
	username := remaining[0]

	if _, err := store.GetUserByUsername(ctx, username); err == nil {
		return fmt.Errorf("user '%s' already exists", username)
	}

	fmt.Print("Enter password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	fmt.Print("Confirm password: ")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	if string(password) != string(confirm) {
		return fmt.Errorf("passwords do not match")
	}

	hash, err := auth.HashPassword(string(password))
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := store.CreateUser(ctx, username, hash, *isAdmin); err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	roleStr := "user"
	if *isAdmin {
		roleStr = "admin"
	}
	fmt.Printf("User '%s' created successfully (role: %s)\n", username, roleStr)
	return nil
}

func cmdUserRemove(ctx context.Context, store *storage.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: tourney user remove <username>")
	}
	username := args[0]

	if err := store.DeleteUser(ctx, username); err != nil {
		return fmt.Errorf("failed to remove user: %w", err)
	}

	fmt.Printf("User '%s' removed\n", username)
	return nil
}

func cmdUserList(ctx context.Context, store *storage.Store) error {
	users, err := store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users configured")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tROLE\tLAST_LOGIN")
	fmt.Fprintln(w, "--------\t----\t----------")
	for _, user := range users {
		role := "user"
		if user.IsAdmin {
			role = "admin"
		}
		lastLogin := "never"
		if user.LastLogin != nil {
			lastLogin = user.LastLogin.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", user.Username, role, lastLogin)
	}
	return w.Flush()
}
