package engine

import "helmsman/internal/types"

// Action a tick resolves to.
type Action string

const (
	ActionNone   Action = "none"
	ActionEnter  Action = "enter"
	ActionLadder Action = "ladder"
	ActionExit   Action = "exit"
)

// Exit tags the engine produces on top of the signal evaluator's.
const (
	TagStopLoss  = "stop_loss"
	TagRebalance = "rebalance"
)

// Decision is the outcome of evaluating one instrument tick. StopLevel
// is the refreshed protective offset for an open position regardless of
// Action; ReservationID is set on admitted enter/ladder decisions and
// must be tracked by the caller until the position closes.
type Decision struct {
	Instrument    string
	Action        Action
	Side          types.Side
	Stake         float64
	StopLevel     float64
	Tag           string
	LadderLevel   int // -1 unless Action is ladder
	ReservationID string
	Reason        string
}

func none(instrument, reason string) Decision {
	return Decision{Instrument: instrument, Action: ActionNone, LadderLevel: -1, Reason: reason}
}
