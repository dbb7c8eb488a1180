package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/gosuda/tincho-client/tincho/audio"
	"github.com/gosuda/tincho-client/tincho/lobby"
	"github.com/gosuda/tincho-client/tincho/render"
	"github.com/gosuda/tincho-client/tincho/session"
	"github.com/gosuda/tincho-client/tincho/table"
	"github.com/gosuda/tincho-client/tincho/term"
)

const connectWait = 20 * time.Second

// view is the part of the terminal renderer the app drives directly.
type view interface {
	render.Renderer
	SetRooms(lines []string)
}

// app ties one terminal to a sequence of connections. A fresh table is
// built for every connection and dropped when it ends.
type app struct {
	ctx      context.Context
	view     view
	lobby    *lobby.Client
	mgr      *session.Manager
	chime    *audio.Chimer
	cfg      table.Config
	player   string
	password string
	room     lobby.RoomConfig

	mu      sync.Mutex
	tb      *table.Table
	conn    *conn
	cancel  context.CancelFunc
	rooms   []lobby.RoomInfo
	dialing bool
}

func (a *app) Snapshot() (table.State, bool) {
	a.mu.Lock()
	tb := a.tb
	a.mu.Unlock()
	if tb == nil {
		return table.State{}, false
	}
	return tb.Snapshot(), true
}

func (a *app) Identity() (session.Identity, bool) {
	return a.mgr.Current()
}

func (a *app) Confirm() bool {
	a.mu.Lock()
	tb := a.tb
	a.mu.Unlock()
	return tb != nil && tb.Confirm()
}

// game returns the live table, or an untyped nil so term sees no game.
func (a *app) game() term.Gestures {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.tb == nil {
		return nil
	}
	return a.tb
}

// connect runs dial off the input goroutine. Only one attempt runs at a time.
func (a *app) connect(what string, dial func(ctx context.Context) (session.Conn, error)) {
	a.mu.Lock()
	if a.dialing {
		a.mu.Unlock()
		return
	}
	a.dialing = true
	a.mu.Unlock()

	go func() {
		defer func() {
			a.mu.Lock()
			a.dialing = false
			a.mu.Unlock()
		}()
		a.banner(what + "...")
		ctx, cancel := context.WithTimeout(a.ctx, connectWait)
		defer cancel()
		sc, err := dial(ctx)
		if err != nil {
			a.fail(what, err)
			return
		}
		if err := a.attach(sc); err != nil {
			a.fail(what, err)
		}
	}()
}

func (a *app) attach(sc session.Conn) error {
	c, ok := sc.(*conn)
	if !ok {
		_ = sc.Close()
		return fmt.Errorf("unexpected connection type %T", sc)
	}
	id, _ := a.mgr.Current()

	cctx, cancel := context.WithCancel(a.ctx)
	tb := table.New(a.cfg, id.PlayerID, a.view, c)
	if a.chime != nil {
		tb.OnLocalTurn(a.chime.Turn)
	}
	tb.Play(cctx)

	a.mu.Lock()
	a.detachLocked()
	a.tb, a.conn, a.cancel = tb, c, cancel
	a.mu.Unlock()

	a.view.Hide(render.Global(render.KindBanner))
	a.view.Hide(render.Global(render.KindRoomList))
	a.view.Hide(render.Global(render.KindScoreGrid))
	a.view.Show(render.Global(render.KindSurface))
	c.Run(tb.HandleEnvelope)
	log.Info().Str("table", tb.ID()).Str("room", id.RoomID).Msg("[lobby] joined")

	go a.watch(c, tb)
	return nil
}

func (a *app) detachLocked() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.conn != nil {
		_ = a.conn.Close()
	}
	a.tb, a.conn, a.cancel = nil, nil, nil
}

// watch waits for the connection to end and falls back to the room list.
func (a *app) watch(c *conn, tb *table.Table) {
	select {
	case <-a.ctx.Done():
		return
	case <-c.Done():
	}
	a.mu.Lock()
	if a.conn != c {
		a.mu.Unlock()
		return
	}
	a.detachLocked()
	a.mu.Unlock()

	a.mgr.Lost()
	msg := "connection closed"
	if err := c.Err(); err != nil {
		msg = "connection lost: " + err.Error()
	}
	tb.Banner(msg + " (r: reconnect)")
	a.refreshRooms()
}

func (a *app) banner(msg string) {
	a.view.Reveal(render.Global(render.KindBanner), render.Sanitize(msg))
	a.view.Show(render.Global(render.KindBanner))
}

func (a *app) fail(what string, err error) {
	if a.ctx.Err() != nil {
		return
	}
	switch {
	case errors.Is(err, session.ErrNoIdentity):
		a.view.Hide(render.Global(render.KindBanner))
	case errors.Is(err, session.ErrRejected):
		log.Warn().Err(err).Msg("[lobby] " + what)
		a.banner("session expired, pick a room")
	default:
		log.Warn().Err(err).Msg("[lobby] " + what)
		a.banner(what + " failed: " + err.Error())
	}
	a.refreshRooms()
}

func (a *app) refreshRooms() {
	ctx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
	defer cancel()
	rooms, err := a.lobby.ListRooms(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("[lobby] list rooms")
	}
	lines := make([]string, len(rooms))
	for i, r := range rooms {
		lines[i] = fmt.Sprintf("%s (%d players)", r.ID, r.Players)
	}
	a.mu.Lock()
	a.rooms = rooms
	a.mu.Unlock()
	a.view.SetRooms(lines)
	a.view.Show(render.Global(render.KindRoomList))
}

func (a *app) joinRequest(room string) session.JoinRequest {
	return session.JoinRequest{Room: room, Player: a.player, Password: a.password}
}

func (a *app) join(room string) {
	a.connect("joining "+room, func(ctx context.Context) (session.Conn, error) {
		return a.mgr.Join(ctx, a.joinRequest(room))
	})
}

func (a *app) joinIndex(i int) {
	a.mu.Lock()
	if i < 0 || i >= len(a.rooms) {
		a.mu.Unlock()
		return
	}
	room := a.rooms[i].ID
	a.mu.Unlock()
	a.join(room)
}

func (a *app) newRoom() {
	a.connect("creating room", func(ctx context.Context) (session.Conn, error) {
		id, err := a.lobby.NewRoom(ctx, a.room)
		if err != nil {
			return nil, err
		}
		log.Info().Str("room", id).Msg("[lobby] room created")
		return a.mgr.Join(ctx, a.joinRequest(id))
	})
}

func (a *app) resume() {
	a.connect("reconnecting", a.mgr.Resume)
}

// begin picks the first connection from the flags: create, join, or resume.
func (a *app) begin(create bool, room string) {
	switch {
	case create:
		a.newRoom()
	case room != "":
		a.join(room)
	default:
		a.resume()
	}
}

func (a *app) close() {
	a.mu.Lock()
	a.detachLocked()
	a.mu.Unlock()
}

func runPlay(cmd *cobra.Command, args []string) error {
	logs, err := setupLogging(nil)
	if err != nil {
		return err
	}
	defer logs.Close()

	cfg, err := tableConfig()
	if err != nil {
		return err
	}
	player := flagPlayer
	if player == "" {
		player = "player"
	}
	rc := roomConfig()
	if flagNewRoom {
		if err := rc.Validate(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := session.OpenPebbleStore(flagStateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	scr, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	if err := scr.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer scr.Fini()
	scr.EnableMouse()

	v := term.New(scr)
	a := &app{
		ctx:      ctx,
		view:     v,
		lobby:    lobby.New(flagServer, flagTLS),
		mgr:      session.NewManager(store, newDialer(flagServer, flagTLS)),
		cfg:      cfg,
		player:   player,
		password: flagPassword,
		room:     rc,
	}
	defer a.close()

	if flagSound {
		chime := audio.NewChimer()
		if err := chime.Initialize(); err != nil {
			log.Warn().Err(err).Msg("[audio] speaker unavailable, continuing without sound")
		} else {
			a.chime = chime
			defer chime.Cleanup()
		}
	}

	var httpSrv *http.Server
	if flagPort >= 0 {
		httpSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", flagPort),
			Handler:           NewInspectHandler(a),
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		go func() {
			log.Info().Msgf("[inspect] serving on http://localhost:%d/state", flagPort)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("[inspect] http server error")
			}
		}()
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("[term] shutting down")
		if httpSrv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("[inspect] http server shutdown error")
			}
		}
		// wake PollEvent so the input loop sees ctx
		_ = scr.PostEvent(tcell.NewEventInterrupt(nil))
	}()

	go v.Run(ctx)
	a.begin(flagNewRoom, flagRoom)
	v.Input(ctx, &term.Handlers{
		Game:      a.game,
		JoinRoom:  a.joinIndex,
		NewRoom:   a.newRoom,
		Reconnect: a.resume,
		Quit:      stop,
	})
	return nil
}
