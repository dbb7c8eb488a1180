package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/tincho-client/tincho/lobby"
	"github.com/gosuda/tincho-client/tincho/protocol"
	"github.com/gosuda/tincho-client/tincho/session"
	"github.com/gosuda/tincho-client/tincho/table"
)

var rootCmd = &cobra.Command{
	Use:   "tincho",
	Short: "Terminal client for tincho card game rooms",
	RunE:  runPlay,
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Join a room, resume the last session or pick a room from the list",
	RunE:  runPlay,
}

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List open rooms",
	RunE:  runRooms,
}

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a room and print its id",
	RunE:  runNew,
}

var addBotCmd = &cobra.Command{
	Use:   "add-bot",
	Short: "Seat a bot in a room",
	RunE:  runAddBot,
}

var forgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Drop the saved session so the next start does not resume it",
	RunE:  runForget,
}

var (
	flagServer   string
	flagTLS      bool
	flagStateDir string
	flagLogFile  string
	flagLogLevel string
	flagPort     int
	flagSuits    string
	flagSpeed    int
	flagSound    bool

	flagRoom       string
	flagPlayer     string
	flagPassword   string
	flagNewRoom    bool
	flagMaxPlayers int
	flagExtended   bool
	flagChaos      bool
	flagDifficulty string
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagServer, "server", envOr("TINCHO_SERVER", "localhost:5555"), "game server host:port (env TINCHO_SERVER)")
	flags.BoolVar(&flagTLS, "tls", os.Getenv("TINCHO_TLS") == "1", "use wss/https")
	flags.StringVar(&flagStateDir, "state-dir", envOr("TINCHO_STATE_DIR", defaultStateDir()), "directory for the saved session and logs")
	flags.StringVar(&flagLogFile, "log-file", "", "log file (default tincho.log in the state dir)")
	flags.StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.IntVar(&flagPort, "port", -1, "optional local inspect HTTP port (negative to disable)")
	flags.StringVar(&flagSuits, "suits", string(protocol.SuitsStandard), "suit glyphs: standard or spanish")
	flags.IntVar(&flagSpeed, "speed", 1, "animation speed multiplier (1 or 2)")
	flags.BoolVar(&flagSound, "sound", false, "chime when your turn starts")

	for _, cmd := range []*cobra.Command{rootCmd, playCmd} {
		f := cmd.Flags()
		f.StringVar(&flagRoom, "room", "", "room id to join")
		f.StringVar(&flagPlayer, "player", envOr("USER", ""), "player name")
		f.StringVar(&flagPassword, "password", "", "room password")
		f.BoolVar(&flagNewRoom, "new", false, "create a room first and join it")
		f.IntVar(&flagMaxPlayers, "max-players", 4, "room size when creating a room")
		f.BoolVar(&flagExtended, "extended", false, "extended deck when creating a room")
		f.BoolVar(&flagChaos, "chaos", false, "chaos deck when creating a room")
	}
	nf := newCmd.Flags()
	nf.StringVar(&flagPassword, "password", "", "room password")
	nf.IntVar(&flagMaxPlayers, "max-players", 4, "maximum number of players (2-10)")
	nf.BoolVar(&flagExtended, "extended", false, "extended deck")
	nf.BoolVar(&flagChaos, "chaos", false, "chaos deck")

	bf := addBotCmd.Flags()
	bf.StringVar(&flagRoom, "room", "", "room id")
	bf.StringVar(&flagDifficulty, "difficulty", "medium", "easy, medium or hard")

	rootCmd.AddCommand(playCmd, roomsCmd, newCmd, addBotCmd, forgetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("execute tincho command")
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "tincho")
	}
	return ".tincho"
}

// setupLogging points the global logger at w, or at the log file when w is
// nil, since the terminal belongs to the renderer while playing.
func setupLogging(w io.Writer) (io.Closer, error) {
	level, err := zerolog.ParseLevel(flagLogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	if w != nil {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
		return io.NopCloser(nil), nil
	}
	path := flagLogFile
	if path == "" {
		if err := os.MkdirAll(flagStateDir, 0o755); err != nil {
			return nil, fmt.Errorf("state dir: %w", err)
		}
		path = filepath.Join(flagStateDir, "tincho.log")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return f, nil
}

func tableConfig() (table.Config, error) {
	cfg := table.DefaultConfig()
	suits := protocol.SuitKind(flagSuits)
	if !protocol.ValidSuitKind(suits) {
		return cfg, fmt.Errorf("unknown suits %q", flagSuits)
	}
	if flagSpeed != 1 && flagSpeed != 2 {
		return cfg, fmt.Errorf("speed must be 1 or 2, got %d", flagSpeed)
	}
	cfg.Suits = suits
	cfg.Speed = flagSpeed
	return cfg, nil
}

func roomConfig() lobby.RoomConfig {
	return lobby.RoomConfig{
		Password:   flagPassword,
		MaxPlayers: flagMaxPlayers,
		Deck:       lobby.DeckOptions{Extended: flagExtended, Chaos: flagChaos},
	}
}

func runRooms(cmd *cobra.Command, args []string) error {
	if _, err := setupLogging(os.Stderr); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	rooms, err := lobby.New(flagServer, flagTLS).ListRooms(ctx)
	if err != nil {
		return err
	}
	if len(rooms) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no open rooms")
		return nil
	}
	for _, r := range rooms {
		fmt.Fprintln(cmd.OutOrStdout(), roomLine(r))
	}
	return nil
}

func roomLine(r lobby.RoomInfo) string {
	return r.ID + "  " + strconv.Itoa(r.Players) + " players"
}

func runNew(cmd *cobra.Command, args []string) error {
	if _, err := setupLogging(os.Stderr); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	id, err := lobby.New(flagServer, flagTLS).NewRoom(ctx, roomConfig())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func runAddBot(cmd *cobra.Command, args []string) error {
	if _, err := setupLogging(os.Stderr); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()
	return lobby.New(flagServer, flagTLS).AddBot(ctx, flagRoom, flagDifficulty)
}

func runForget(cmd *cobra.Command, args []string) error {
	if _, err := setupLogging(os.Stderr); err != nil {
		return err
	}
	store, err := session.OpenPebbleStore(flagStateDir)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := session.NewManager(store, nil).Leave(); err != nil {
		return err
	}
	log.Info().Str("dir", flagStateDir).Msg("[session] saved session removed")
	return nil
}
