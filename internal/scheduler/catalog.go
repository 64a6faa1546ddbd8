package scheduler

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spec-kit/condo-scheduler/internal/domain"
)

// Catalog holds the static time-block configuration for the operating day,
// sorted chronologically. It is built once at boot and never mutated.
type Catalog struct {
	blocks []domain.TimeBlock
}

// NewCatalog validates and sorts the given blocks.
func NewCatalog(blocks []domain.TimeBlock) (*Catalog, error) {
	sorted := make([]domain.TimeBlock, len(blocks))
	copy(sorted, blocks)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].StartMin < sorted[j].StartMin
	})
	for _, b := range sorted {
		if b.ID == "" {
			return nil, fmt.Errorf("block without id")
		}
		if b.EndMin <= b.StartMin {
			return nil, fmt.Errorf("block %s: end before start", b.ID)
		}
		if b.Capacity <= 0 {
			return nil, fmt.Errorf("block %s: capacity must be positive", b.ID)
		}
	}
	return &Catalog{blocks: sorted}, nil
}

// DefaultCatalog returns the standard four-block operating day.
func DefaultCatalog() *Catalog {
	catalog, _ := NewCatalog([]domain.TimeBlock{
		{ID: "B1", StartMin: 9 * 60, EndMin: 10*60 + 30, Capacity: 2},
		{ID: "B2", StartMin: 11 * 60, EndMin: 12*60 + 30, Capacity: 2},
		{ID: "B3", StartMin: 14 * 60, EndMin: 15*60 + 30, Capacity: 2},
		{ID: "B4", StartMin: 16 * 60, EndMin: 17*60 + 30, Capacity: 2},
	})
	return catalog
}

type blockSpec struct {
	ID       string `json:"id"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Capacity int    `json:"capacity"`
}

// ParseCatalog builds a catalog from the SCHEDULER_BLOCKS_JSON override.
func ParseCatalog(raw string) (*Catalog, error) {
	var specs []blockSpec
	if err := json.Unmarshal([]byte(raw), &specs); err != nil {
		return nil, fmt.Errorf("parse block catalog: %w", err)
	}
	blocks := make([]domain.TimeBlock, 0, len(specs))
	for _, spec := range specs {
		start, err := parseClock(spec.Start)
		if err != nil {
			return nil, fmt.Errorf("block %s: %w", spec.ID, err)
		}
		end, err := parseClock(spec.End)
		if err != nil {
			return nil, fmt.Errorf("block %s: %w", spec.ID, err)
		}
		blocks = append(blocks, domain.TimeBlock{
			ID:       spec.ID,
			StartMin: start,
			EndMin:   end,
			Capacity: spec.Capacity,
		})
	}
	return NewCatalog(blocks)
}

// Blocks returns the blocks in chronological order.
func (c *Catalog) Blocks() []domain.TimeBlock {
	if c == nil {
		return nil
	}
	return c.blocks
}

// Empty reports whether no blocks are configured.
func (c *Catalog) Empty() bool {
	return c == nil || len(c.blocks) == 0
}

func parseClock(value string) (int, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", value)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("clock value %q out of range", value)
	}
	return hour*60 + minute, nil
}
