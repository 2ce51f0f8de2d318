// Package numerator defines human-readable reference numbers for stock documents
// such as cycle counts and supplier deliveries.
package numerator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period controls when a sequence starts over.
type Period string

const (
	PeriodYear  Period = "year"
	PeriodMonth Period = "month"
	PeriodNever Period = "never"
)

const (
	PrefixCount    = "CNT"
	PrefixPurchase = "PO"
	PrefixReturn   = "RET"
)

// Config describes one numbering sequence.
type Config struct {
	Prefix      string
	PadWidth    int
	ResetPeriod Period
}

// DefaultConfig numbers per year: PREFIX-YYYY-00001.
func DefaultConfig(prefix string) Config {
	return Config{Prefix: prefix, PadWidth: 5, ResetPeriod: PeriodYear}
}

// Generator allocates the next number of a sequence. Numbers drawn inside a
// transaction are returned to the sequence when it rolls back.
type Generator interface {
	Next(ctx context.Context, cfg Config, at time.Time) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, cfg Config, at time.Time) (string, error)

func (f GeneratorFunc) Next(ctx context.Context, cfg Config, at time.Time) (string, error) {
	return f(ctx, cfg, at)
}

// Key is the sequence row a number is drawn from.
func Key(cfg Config, at time.Time) string {
	switch cfg.ResetPeriod {
	case PeriodMonth:
		return fmt.Sprintf("%s_%s", cfg.Prefix, at.Format("2006_01"))
	case PeriodNever:
		return cfg.Prefix
	default:
		return fmt.Sprintf("%s_%s", cfg.Prefix, at.Format("2006"))
	}
}

// Format renders n. Yearly and monthly sequences carry the year.
func Format(cfg Config, at time.Time, n int64) string {
	pad := cfg.PadWidth
	if pad <= 0 {
		pad = 5
	}
	if cfg.ResetPeriod == PeriodNever {
		return fmt.Sprintf("%s-%0*d", cfg.Prefix, pad, n)
	}
	return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, at.Format("2006"), pad, n)
}

// ParseNumber extracts the numeric part of a formatted number, or -1.
func ParseNumber(formatted string) int64 {
	i := strings.LastIndexByte(formatted, '-')
	if i < 0 {
		return -1
	}
	n, err := strconv.ParseInt(formatted[i+1:], 10, 64)
	if err != nil || n < 0 {
		return -1
	}
	return n
}
