package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageTopicStart Stage = "TOPIC_START"
	StagePageDone   Stage = "PAGE_DONE"
	StagePageFailed Stage = "PAGE_FAILED"
	StageTopicDone  Stage = "TOPIC_DONE"
	StageTopicError Stage = "TOPIC_ERROR"
)

// Event captures a single step of a topic crawl.
type Event struct {
	// BuildID identifies the corpus build the topic belongs to.
	BuildID string
	// Topic is the crawl topic; always required.
	Topic string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Page is the article name for page events.
	Page string
	// Collected is the number of documents gathered so far for the topic.
	Collected int
	// Quota is the topic's target document count.
	Quota int
	// Kind is the fetch failure kind for StagePageFailed.
	Kind string
	// Dur captures fetch latency for page events and wall time for topic completions.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.Topic == "" {
		return errors.New("topic is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageTopicStart, StageTopicDone, StageTopicError:
	case StagePageDone:
		if e.Page == "" {
			return errors.New("page done requires page")
		}
	case StagePageFailed:
		if e.Page == "" {
			return errors.New("page failed requires page")
		}
		if e.Kind == "" {
			return errors.New("page failed requires kind")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
