package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/topic-corpus/internal/progress"
)

// LogSink reports topic milestones through zap. Page successes are logged at
// debug level so that long crawls stay readable at info.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("build_id", evt.BuildID),
			zap.String("topic", evt.Topic),
			zap.String("stage", string(evt.Stage)),
			zap.Int("collected", evt.Collected),
			zap.Int("quota", evt.Quota),
		}
		if evt.Page != "" {
			fields = append(fields, zap.String("page", evt.Page))
		}
		if evt.Kind != "" {
			fields = append(fields, zap.String("kind", evt.Kind))
		}
		if evt.Dur > 0 {
			fields = append(fields, zap.Duration("dur", evt.Dur))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		switch evt.Stage {
		case progress.StagePageDone, progress.StagePageFailed:
			s.logger.Debug("crawl progress", fields...)
		case progress.StageTopicError:
			s.logger.Warn("crawl progress", fields...)
		default:
			s.logger.Info("crawl progress", fields...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
