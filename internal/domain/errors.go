package domain

import "errors"

var (
	// ErrInvalidDice is returned when a roll has a die outside [1,6].
	ErrInvalidDice = errors.New("invalid dice")

	// ErrUnknownStream is returned when a stream name is not configured.
	ErrUnknownStream = errors.New("unknown stream")

	// ErrJournalDisabled is returned by read paths when no journal is configured.
	ErrJournalDisabled = errors.New("journal disabled")
)
