package domain

import (
	"fmt"
	"time"
)

// TimeBlock is a fixed interval within the operating day with a
// maximum number of concurrent appointments. The block catalog is
// static configuration and never mutated at runtime.
type TimeBlock struct {
	ID       string
	StartMin int // minutes from midnight
	EndMin   int
	Capacity int
}

// StartOn anchors the block start on the given calendar day.
func (b TimeBlock) StartOn(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), b.StartMin/60, b.StartMin%60, 0, 0, day.Location())
}

// EndOn anchors the block end on the given calendar day.
func (b TimeBlock) EndOn(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), b.EndMin/60, b.EndMin%60, 0, 0, day.Location())
}

// Label renders the block as "HH:MM-HH:MM".
func (b TimeBlock) Label() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", b.StartMin/60, b.StartMin%60, b.EndMin/60, b.EndMin%60)
}
