package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/famish99/pianodctl/internal/bridge"
	"github.com/famish99/pianodctl/internal/config"
	"github.com/famish99/pianodctl/internal/mpd"
	"github.com/famish99/pianodctl/internal/pianod"
)

var (
	configPath = flag.StringP("config", "c", getDefaultConfigPath(), "Path to configuration file")
	host       = flag.StringP("host", "H", "", "pianod host (default from config: localhost)")
	port       = flag.IntP("port", "p", 0, "pianod port (default from config: 4445)")
	user       = flag.StringP("user", "u", "", "Login user")
	password   = flag.String("password", "", "Login password")
	noLogin    = flag.Bool("no-login", false, "Don't log in after connecting")
	timeout    = flag.Duration("timeout", 0, "Request timeout (default from config: 10s)")
	daemonMode = flag.BoolP("daemon", "d", false, "Keep the session open and serve the HTTP bridge")
	listenAddr = flag.String("listen", "", "HTTP bridge listen address (default from config: localhost:4446)")
	mpdAddr    = flag.String("mpd-addr", "", "MPD front-end listen address (default from config: localhost:6600)")
	noMPD      = flag.Bool("no-mpd", false, "Don't serve the MPD front-end in daemon mode")
	stopNow    = flag.Bool("now", false, "With stop: stop immediately instead of after the current song")
	verbose    = flag.BoolP("verbose", "v", false, "Log every protocol line")
	saveConfig = flag.Bool("save-config", false, "Write the effective configuration to --config and exit")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid settings: %v", err)
	}

	if *saveConfig {
		if err := config.SaveConfig(*configPath, cfg); err != nil {
			log.Fatalf("Failed to save config: %v", err)
		}
		fmt.Printf("Saved configuration to %s\n", *configPath)
		return
	}

	args := flag.Args()
	if !*daemonMode && len(args) == 0 {
		usage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := bridge.NewHub()
	opts := pianod.Options{
		DialTimeout:    time.Duration(cfg.Daemon.DialTimeout),
		RequestTimeout: time.Duration(cfg.Daemon.RequestTimeout),
		Username:       cfg.Daemon.Username,
		Password:       cfg.Daemon.Password,
		Verbose:        cfg.Log.Protocol,
		Observers:      []pianod.Observer{hub, pianod.ObserverFunc(logNotification)},
	}

	// Connect to pianod
	session, err := pianod.Connect(ctx, cfg.Daemon.Host, cfg.Daemon.Port, opts)
	if err != nil {
		log.Fatalf("Failed to connect to pianod: %v", err)
	}
	defer session.Close()

	// Daemon mode: run HTTP bridge
	if *daemonMode {
		if err := runDaemon(ctx, cfg, session, hub); err != nil {
			log.Fatalf("Daemon stopped: %v", err)
		}
		return
	}

	// Direct mode: run one command and exit
	if err := runCommand(ctx, os.Stdout, session, args, *stopNow); err != nil {
		log.Fatalf("%v", err)
	}
}

func applyFlags(cfg *config.Config) {
	cfg.SetHost(*host, *port)
	if *user != "" {
		cfg.Daemon.Username = *user
	}
	if *password != "" {
		cfg.Daemon.Password = *password
	}
	if *noLogin {
		cfg.Daemon.Username = ""
	}
	if *timeout != 0 {
		cfg.Daemon.RequestTimeout = config.Duration(*timeout)
	}
	if *listenAddr != "" {
		cfg.Bridge.Listen = *listenAddr
	}
	if *mpdAddr != "" {
		cfg.MPD.Listen = *mpdAddr
	}
	if *noMPD {
		cfg.MPD.Listen = ""
	}
	if *verbose {
		cfg.Log.Protocol = true
	}
}

// runDaemon serves the HTTP bridge and the MPD front-end until interrupted
// or the pianod connection drops
func runDaemon(ctx context.Context, cfg *config.Config, session *pianod.Session, hub *bridge.Hub) error {
	requestTimeout := time.Duration(cfg.Daemon.RequestTimeout)
	gin.SetMode(gin.ReleaseMode)
	api := bridge.NewAPI(session, hub)
	srv := &http.Server{
		Addr:    cfg.Bridge.Listen,
		Handler: bridge.SetupRouter(api, requestTimeout),
	}

	// Start MPD front-end
	if cfg.MPD.Listen != "" {
		mpdServer := mpd.NewServer(cfg.MPD.Listen, session, requestTimeout)
		if err := mpdServer.Start(); err != nil {
			return err
		}
		defer mpdServer.Stop()
		session.Observe(mpdServer)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("HTTP bridge listening on %s", cfg.Bridge.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP bridge failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-session.Done():
			return fmt.Errorf("pianod connection lost: %w", session.Err())
		case <-ctx.Done():
			return nil
		}
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Printf("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// runCommand executes a single command and prints its outcome to out.
// stopNow makes stop immediate.
func runCommand(ctx context.Context, out io.Writer, session *pianod.Session, args []string, stopNow bool) error {
	name := strings.ToLower(args[0])
	rest := args[1:]

	switch name {
	case "status", "now":
		res, err := session.Status(ctx)
		if err != nil {
			return fmt.Errorf("status failed: %w", err)
		}
		if res.Failed {
			return refused("status", res.Data)
		}
		printSong(out, session.SongInfo())
		return nil

	case "stations":
		res, err := session.ListStations(ctx)
		if err != nil {
			return fmt.Errorf("stations failed: %w", err)
		}
		if res.Failed {
			return fmt.Errorf("pianod refused to list stations")
		}
		for i, s := range res.Data {
			fmt.Fprintf(out, "%d. %s\n", i+1, s)
		}
		return nil

	case "station":
		if len(rest) == 0 {
			return fmt.Errorf("usage: station <name>")
		}
		stationName := strings.Join(rest, " ")
		res, err := session.SelectStation(ctx, stationName)
		if err != nil {
			return fmt.Errorf("select station failed: %w", err)
		}
		if res.Failed {
			return fmt.Errorf("station %q not found or not selectable", stationName)
		}
		fmt.Fprintf(out, "Now playing station: %s\n", session.CurrentStation())
		return nil

	case "login":
		if len(rest) != 2 {
			return fmt.Errorf("usage: login <user> <password>")
		}
		return ack(out, "login", func() (pianod.Result[pianod.Reply], error) {
			return session.Authenticate(ctx, rest[0], rest[1])
		})

	case "skip", "next":
		return ack(out, "skip", func() (pianod.Result[pianod.Reply], error) { return session.Skip(ctx) })
	case "pause":
		return ack(out, "pause", func() (pianod.Result[pianod.Reply], error) { return session.Pause(ctx) })
	case "play", "resume":
		return ack(out, "play", func() (pianod.Result[pianod.Reply], error) { return session.Play(ctx) })
	case "stop":
		return ack(out, "stop", func() (pianod.Result[pianod.Reply], error) { return session.Stop(ctx, stopNow) })

	default:
		return fmt.Errorf("unknown command: %s", name)
	}
}

func ack(out io.Writer, name string, fn func() (pianod.Result[pianod.Reply], error)) error {
	res, err := fn()
	if err != nil {
		return fmt.Errorf("%s failed: %w", name, err)
	}
	if res.Failed {
		return refused(name, res.Data)
	}
	fmt.Fprintln(out, "OK")
	return nil
}

func refused(name string, reply pianod.Reply) error {
	return fmt.Errorf("pianod refused %s: %s %s", name, reply.Terminator.Code, reply.Terminator.Message)
}

func printSong(out io.Writer, song pianod.SongInfo) {
	fmt.Fprintf(out, "State:     %s\n", song.State)
	fmt.Fprintf(out, "Artist:    %s\n", song.Artist)
	fmt.Fprintf(out, "Title:     %s\n", song.Title)
	fmt.Fprintf(out, "Album:     %s\n", song.Album)
	fmt.Fprintf(out, "Station:   %s\n", song.Station)
	if song.Rating != "" {
		fmt.Fprintf(out, "Rating:    %s\n", song.Rating)
	}
	fmt.Fprintf(out, "Length:    %s\n", pianod.Clock(song.Total))
	fmt.Fprintf(out, "Remaining: %s\n", pianod.Clock(song.Remaining))
}

func logNotification(n pianod.Notification) {
	switch n.Kind {
	case pianod.EventSongStart:
		log.Printf("Song started: %s - %s (%s)", n.Song.Artist, n.Song.Title, pianod.Clock(n.Song.Total))
	case pianod.EventSongComplete:
		log.Printf("Song complete: %s - %s", n.Song.Artist, n.Song.Title)
	case pianod.EventPlaybackChanged:
		log.Printf("Playback %s", n.State)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] <command> [args]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "       %s --daemon\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nCommands:\n")
	fmt.Fprintf(os.Stderr, "  status               Show the current song\n")
	fmt.Fprintf(os.Stderr, "  stations             List stations\n")
	fmt.Fprintf(os.Stderr, "  station <name>       Switch station\n")
	fmt.Fprintf(os.Stderr, "  skip | pause | play  Control playback\n")
	fmt.Fprintf(os.Stderr, "  stop [--now]         Stop after this song, or right away\n")
	fmt.Fprintf(os.Stderr, "  login <user> <pass>  Log in\n")
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s --host music.local status\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s station \"Jazz Radio\"\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s --daemon --listen :4446\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  curl -X POST localhost:4446/skip\n")
	fmt.Fprintf(os.Stderr, "  mpc -p 6600 next\n")
}

func getDefaultConfigPath() string {
	// Check common locations
	locations := []string{
		"./pianodctl.yaml",
		filepath.Join(os.Getenv("HOME"), ".config", "pianodctl", "config.yaml"),
		"/etc/pianodctl/config.yaml",
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	// Default to first location if none exist
	return locations[0]
}
