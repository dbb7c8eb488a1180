package protocol

// UpdateType names an inbound server notification.
type UpdateType string

const (
	UpdateGameConfig          UpdateType = "game_config"
	UpdatePlayersChanged      UpdateType = "players_changed"
	UpdateGameStart           UpdateType = "game_start"
	UpdatePlayerFirstPeeked   UpdateType = "player_peeked"
	UpdateTurn                UpdateType = "turn"
	UpdateDraw                UpdateType = "draw"
	UpdatePeekCard            UpdateType = "effect_peek"
	UpdateSwapCards           UpdateType = "effect_swap"
	UpdateDiscard             UpdateType = "discard"
	UpdateFailedDoubleDiscard UpdateType = "failed_double_discard"
	UpdateCut                 UpdateType = "cut"
	UpdateError               UpdateType = "error"
	UpdateStartNextRound      UpdateType = "start_next_round"
	UpdateEndGame             UpdateType = "end_game"
	UpdateRejoin              UpdateType = "rejoin_state"
)

// Player is the roster entry as the server marshals it.
type Player struct {
	ID               string `json:"id"`
	Points           int    `json:"points"`
	PendingFirstPeek bool   `json:"pending_first_peek"`
	CardsInHand      int    `json:"cards_in_hand"`
}

type Round struct {
	Cutter    string            `json:"cutter"`
	WithCount bool              `json:"withCount"`
	Declared  int               `json:"declared"`
	Scores    map[string]int    `json:"scores"`
	Hands     map[string][]Card `json:"hands"`
}

type GameConfigData struct {
	CardsInDeck int `json:"cardsInDeck"`
}

type PlayersChangedData struct {
	Players []Player `json:"players"`
}

// StartRoundData is shared by game_start and start_next_round.
type StartRoundData struct {
	Players    []Player `json:"players"`
	TopDiscard Card     `json:"topDiscard"`
}

type PlayerFirstPeekedData struct {
	Player string `json:"player"`
	Cards  []Card `json:"cards"`
}

type TurnData struct {
	Player string `json:"player"`
}

type DrawUpdateData struct {
	Player string     `json:"player"`
	Source DrawSource `json:"source"`
	Card   Card       `json:"card"`
	Effect Effect     `json:"effect"`
}

type PeekCardData struct {
	CardPosition int    `json:"cardPosition"`
	Card         Card   `json:"card"`
	Player       string `json:"player"`
}

type SwapCardsUpdateData struct {
	CardsPositions []int    `json:"cardsPositions"`
	Players        []string `json:"players"`
}

type DiscardUpdateData struct {
	Player         string `json:"player"`
	CardsPositions []int  `json:"cardsPositions"`
	Cards          []Card `json:"cards"`
	CycledPiles    bool   `json:"cycledPiles"`
}

type FailedDoubleDiscardData struct {
	Player         string `json:"player"`
	CardsPositions []int  `json:"cardsPositions"`
	Cards          []Card `json:"cards"`
	TopOfDiscard   Card   `json:"topOfDiscard"`
	CycledPiles    bool   `json:"cycledPiles"`
}

type CutUpdateData struct {
	WithCount bool     `json:"withCount"`
	Declared  int      `json:"declared"`
	Player    string   `json:"player"`
	Players   []Player `json:"players"`
	Hands     [][]Card `json:"hands"`
}

type ErrorData struct {
	Message string `json:"message"`
}

type EndGameData struct {
	Rounds []Round `json:"rounds"`
}

type RejoinData struct {
	Players          []Player    `json:"players"`
	CurrentTurn      string      `json:"currentTurn"`
	CardInHand       bool        `json:"cardInHand"`
	CardInHandValue  *Card       `json:"cardInHandValue"`
	CardInHandSource *DrawSource `json:"cardInHandSource"`
	LastDiscarded    *Card       `json:"lastDiscarded"`
	CardsInDeck      int         `json:"cardsInDeck"`
	CardsInDrawPile  int         `json:"cardsInDrawPile"`
}
