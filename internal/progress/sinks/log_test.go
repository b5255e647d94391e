package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/topic-corpus/internal/progress"
)

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.DebugLevel)
	sink := NewLogSink(zap.New(core))
	now := time.Unix(0, 0)

	err := sink.Consume(context.Background(), []progress.Event{
		{Topic: "Food", TS: now, Stage: progress.StageTopicStart, Quota: 5},
		{Topic: "Food", TS: now, Stage: progress.StagePageDone, Page: "Bread", Collected: 1},
		{Topic: "Food", TS: now, Stage: progress.StageTopicError, Note: "boom"},
	})
	require.NoError(t, err)

	entries := logs.All()
	require.Len(t, entries, 3)
	require.Equal(t, zap.InfoLevel, entries[0].Level)
	require.Equal(t, zap.DebugLevel, entries[1].Level)
	require.Equal(t, zap.WarnLevel, entries[2].Level)
	require.Equal(t, "Bread", entries[1].ContextMap()["page"])
}
