package main

import (
	"sort"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/block-0x/signet/pkg/log"
)

var _ watermill.LoggerAdapter = (*watermillLogger)(nil)

// watermillLogger routes Watermill logs into a log.Logger.
type watermillLogger struct {
	lg log.Logger
}

func newWatermillLogger(lg log.Logger) watermill.LoggerAdapter {
	return &watermillLogger{lg: lg.WithName("watermill").AddCallerSkip(1)}
}

func (w *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	w.lg.Error(msg, append(toKV(fields), "error", err)...)
}

func (w *watermillLogger) Info(msg string, fields watermill.LogFields) {
	w.lg.Info(msg, toKV(fields)...)
}

func (w *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	w.lg.Debug(msg, toKV(fields)...)
}

// Trace is mapped to Debug.
func (w *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	w.lg.Debug(msg, toKV(fields)...)
}

func (w *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	lg := w.lg
	for _, k := range sortedKeys(fields) {
		lg = lg.WithKV(k, fields[k])
	}
	return &watermillLogger{lg: lg}
}

func toKV(fields watermill.LogFields) []any {
	kv := make([]any, 0, len(fields)*2)
	for _, k := range sortedKeys(fields) {
		kv = append(kv, k, fields[k])
	}
	return kv
}

func sortedKeys(fields watermill.LogFields) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
