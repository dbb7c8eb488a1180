package table

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/gosuda/tincho-client/tincho/protocol"
	"github.com/gosuda/tincho-client/tincho/queue"
)

// binder decodes an envelope and returns the scene that plays it.
type binder func(t *Table, env protocol.Envelope) (queue.Task, error)

func bind[T any](scene func(t *Table, ctx context.Context, data T) error) binder {
	return func(t *Table, env protocol.Envelope) (queue.Task, error) {
		var data T
		if err := env.Decode(&data); err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			return scene(t, ctx, data)
		}, nil
	}
}

var scenes = map[protocol.UpdateType]binder{
	protocol.UpdateGameConfig:          bind((*Table).onGameConfig),
	protocol.UpdatePlayersChanged:      bind((*Table).onPlayersChanged),
	protocol.UpdateGameStart:           bind((*Table).onGameStart),
	protocol.UpdatePlayerFirstPeeked:   bind((*Table).onPlayerPeeked),
	protocol.UpdateTurn:                bind((*Table).onTurn),
	protocol.UpdateDraw:                bind((*Table).onDraw),
	protocol.UpdateDiscard:             bind((*Table).onDiscard),
	protocol.UpdateFailedDoubleDiscard: bind((*Table).onFailedDoubleDiscard),
	protocol.UpdatePeekCard:            bind((*Table).onPeek),
	protocol.UpdateSwapCards:           bind((*Table).onSwap),
	protocol.UpdateCut:                 bind((*Table).onCut),
	protocol.UpdateError:               bind((*Table).onError),
	protocol.UpdateStartNextRound:      bind((*Table).onStartNextRound),
	protocol.UpdateEndGame:             bind((*Table).onEndGame),
	protocol.UpdateRejoin:              bind((*Table).onRejoin),
}

// HandleEnvelope parses one inbound frame and queues exactly one scene for
// it. It never blocks on rendering. Unknown or malformed frames are logged
// and dropped; the returned error is informational.
func (t *Table) HandleEnvelope(raw []byte) error {
	env, err := protocol.ParseEnvelope(raw)
	if err != nil {
		log.Error().Err(err).Str("conn", t.id).Msg("[table] dropping frame")
		return err
	}
	b, ok := scenes[protocol.UpdateType(env.Type)]
	if !ok {
		log.Error().Str("type", env.Type).Str("conn", t.id).Msg("[table] unknown update")
		return fmt.Errorf("%w: %s", ErrUnknownUpdate, env.Type)
	}
	task, err := b(t, env)
	if err != nil {
		log.Error().Err(err).Str("type", env.Type).Str("conn", t.id).Msg("[table] malformed update")
		return err
	}
	log.Debug().Str("type", env.Type).Str("conn", t.id).Msg("[table] queued")
	t.q.Enqueue(task)
	return nil
}
