// Package stats tracks running counters for one ingestion loop. Each loop
// owns its own RunningStats; there is a single writer per instance, so no
// locking is needed.
package stats

import (
	"sort"
	"time"

	"marketcollector/pkg/marketdata"

	"go.uber.org/zap"
)

// LastPrice is the most recent observation for one symbol.
type LastPrice struct {
	Bid    float64
	Ask    float64
	Last   float64
	Mid    float64
	HasMid bool
	Time   time.Time
}

// RunningStats aggregates counters for a single loop. It observes the
// pipeline and never affects control flow. Reset only by process restart.
type RunningStats struct {
	startTime time.Time

	collections    int
	successful     int
	failed         int
	duplicates     int
	schemaFailures int

	messageCount int
	messageTypes map[string]int

	lastPrices map[string]LastPrice
}

func New() *RunningStats {
	return &RunningStats{
		startTime:    time.Now(),
		messageTypes: make(map[string]int),
		lastPrices:   make(map[string]LastPrice),
	}
}

func (s *RunningStats) RecordCollection()    { s.collections++ }
func (s *RunningStats) RecordSuccess()       { s.successful++ }
func (s *RunningStats) RecordFailure()       { s.failed++ }
func (s *RunningStats) RecordDuplicate()     { s.duplicates++ }
func (s *RunningStats) RecordSchemaFailure() { s.schemaFailures++ }

// RecordMessage counts one inbound frame under its type discriminant.
func (s *RunningStats) RecordMessage(kind string) {
	s.messageCount++
	s.messageTypes[kind]++
}

// ObserveQuote updates the last-price entry for the quote's symbol.
func (s *RunningStats) ObserveQuote(q marketdata.Quote) {
	lp := s.lastPrices[q.Symbol]
	lp.Bid = q.BidPrice
	lp.Ask = q.AskPrice
	lp.Mid, lp.HasMid = q.Mid()
	lp.Time = q.TimeExchange
	s.lastPrices[q.Symbol] = lp
}

// ObserveTrade updates the last traded price for the trade's symbol.
func (s *RunningStats) ObserveTrade(t marketdata.Trade) {
	lp := s.lastPrices[t.Symbol]
	lp.Last = t.Price
	lp.Time = t.TimeExchange
	s.lastPrices[t.Symbol] = lp
}

// Summary is a point-in-time copy of the counters with derived rates.
type Summary struct {
	Runtime        time.Duration
	Collections    int
	Successful     int
	Failed         int
	Duplicates     int
	SchemaFailures int
	MessageCount   int
	MessageTypes   map[string]int
	LastPrices     map[string]LastPrice
	SuccessRate    float64 // percent of successful saves over all attempts
	MessageRate    float64 // messages per second since start
}

func (s *RunningStats) Summary() Summary {
	runtime := time.Since(s.startTime)

	types := make(map[string]int, len(s.messageTypes))
	for k, v := range s.messageTypes {
		types[k] = v
	}
	prices := make(map[string]LastPrice, len(s.lastPrices))
	for k, v := range s.lastPrices {
		prices[k] = v
	}

	var successRate float64
	if attempts := s.successful + s.failed; attempts > 0 {
		successRate = float64(s.successful) / float64(attempts) * 100
	}
	var messageRate float64
	if secs := runtime.Seconds(); secs > 0 {
		messageRate = float64(s.messageCount) / secs
	}

	return Summary{
		Runtime:        runtime,
		Collections:    s.collections,
		Successful:     s.successful,
		Failed:         s.failed,
		Duplicates:     s.duplicates,
		SchemaFailures: s.schemaFailures,
		MessageCount:   s.messageCount,
		MessageTypes:   types,
		LastPrices:     prices,
		SuccessRate:    successRate,
		MessageRate:    messageRate,
	}
}

// LogSummary emits the summary as a set of structured log lines.
func (s *RunningStats) LogSummary(logger *zap.Logger) {
	sum := s.Summary()

	logger.Info("statistics",
		zap.Duration("runtime", sum.Runtime),
		zap.Int("collections", sum.Collections),
		zap.Int("successful", sum.Successful),
		zap.Int("failed", sum.Failed),
		zap.Int("duplicates", sum.Duplicates),
		zap.Int("schema_failures", sum.SchemaFailures),
		zap.Float64("success_rate_pct", sum.SuccessRate),
	)

	if sum.MessageCount > 0 {
		kinds := make([]string, 0, len(sum.MessageTypes))
		for k := range sum.MessageTypes {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		fields := []zap.Field{
			zap.Int("total", sum.MessageCount),
			zap.Float64("rate_per_sec", sum.MessageRate),
		}
		for _, k := range kinds {
			fields = append(fields, zap.Int(k, sum.MessageTypes[k]))
		}
		logger.Info("message breakdown", fields...)
	}

	for symbol, lp := range sum.LastPrices {
		fields := []zap.Field{
			zap.String("symbol", symbol),
			zap.Float64("bid", lp.Bid),
			zap.Float64("ask", lp.Ask),
		}
		if lp.HasMid {
			fields = append(fields, zap.Float64("mid", lp.Mid))
		}
		if lp.Last > 0 {
			fields = append(fields, zap.Float64("last", lp.Last))
		}
		logger.Info("last price", fields...)
	}
}
