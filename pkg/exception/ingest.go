package exception

import "errors"

var (
	ErrIngestUnknownKind = errors.New("ingest: unknown event kind")
	ErrIngestDecode      = errors.New("ingest: decode envelope")
	ErrIngestQueueFull   = errors.New("ingest: queue full")
	ErrIngestQueueClosed = errors.New("ingest: queue closed")
	ErrIngestNilHandler  = errors.New("ingest: nil handler")
)
