package events

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType labels what happened.
type EventType string

const (
	EventTxExecuted EventType = "tx_executed"

	// Game
	EventGameCreated          EventType = "game_created"
	EventPlayerJoined         EventType = "player_joined"
	EventStageCompleted       EventType = "stage_completed"
	EventPlayerEliminated     EventType = "player_eliminated"
	EventStageAdvanced        EventType = "stage_advanced"
	EventPlayerRefunded       EventType = "player_refunded"
	EventGameEnded            EventType = "game_ended"
	EventBackendSignerUpdated EventType = "backend_signer_updated"

	// Staking
	EventStakeDeposited     EventType = "stake_deposited"
	EventStakeRefunded      EventType = "stake_refunded"
	EventRewardsDistributed EventType = "rewards_distributed"
	EventForfeituresSwept   EventType = "forfeitures_swept"
	EventStakingPaused      EventType = "staking_paused"
	EventStakingUnpaused    EventType = "staking_unpaused"

	// Token
	EventTokenTransfer   EventType = "token_transfer"
	EventTokenApproval   EventType = "token_approval"
	EventTokenMint       EventType = "token_mint"
	EventMintingPaused   EventType = "minting_paused"
	EventMintingUnpaused EventType = "minting_unpaused"

	// NFT and names
	EventNFTMinted      EventType = "nft_minted"
	EventNameRegistered EventType = "name_registered"
)

// Event carries a typed payload emitted after a state change.
type Event struct {
	ID     string         `json:"id"`
	Type   EventType      `json:"type"`
	TxID   string         `json:"tx_id"`
	Height uint64         `json:"height"`
	Time   int64          `json:"time"`
	Data   map[string]any `json:"data"`
}

// New builds an event with a fresh id. TxID, Height and Time are stamped by
// the executor when the event is published.
func New(typ EventType, data map[string]any) Event {
	return Event{ID: uuid.NewString(), Type: typ, Data: data}
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	all      []Handler
	logger   *zap.Logger
}

// NewEmitter creates an Emitter with no subscribers. A nil logger is replaced
// by a no-op logger.
func NewEmitter(logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{
		handlers: make(map[EventType][]Handler),
		logger:   logger.Named("events"),
	}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// SubscribeAll registers h for every event type.
func (e *Emitter) SubscribeAll(h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.all = append(e.all, h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously.
// Each handler is guarded by panic recovery so a misbehaving subscriber
// cannot crash the node or halt execution.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	handlers := make([]Handler, 0, len(e.handlers[ev.Type])+len(e.all))
	handlers = append(handlers, e.handlers[ev.Type]...)
	handlers = append(handlers, e.all...)
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("handler panicked",
						zap.String("type", string(ev.Type)),
						zap.String("tx", ev.TxID),
						zap.Any("panic", r))
				}
			}()
			h(ev)
		}()
	}
}
