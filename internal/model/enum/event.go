package enum

// EventKind is the kind of an inbound ledger event.
type EventKind uint8

const (
	_event_kind_beg EventKind = iota
	EventKindFill
	EventKindSettlement
	EventKindCancel
	EventKindReject
	_event_kind_end
)

// EventKindCount sizes per-kind counter arrays.
const EventKindCount = int(_event_kind_end)

var eventKindNames = names{"", "FILL", "SETTLEMENT", "CANCEL", "REJECT"}

func (k EventKind) IsAvailable() bool {
	return k > _event_kind_beg && k < _event_kind_end
}

func (k EventKind) String() string { return eventKindNames.text(uint8(k)) }

// ParseEventKind accepts the wire spelling in any case.
func ParseEventKind(s string) (EventKind, bool) {
	i, ok := eventKindNames.parse(s)
	return EventKind(i), ok
}
