// Package chat routes user messages between small talk and corpus lookups.
//
// Intent classification and dialogue generation live outside this module and
// are reached through the Classifier and Responder interfaces.
package chat

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Label is the intent assigned to a message.
type Label string

// Labels returned by a Classifier.
const (
	LabelChitChat Label = "chit-chat"
	LabelQuery    Label = "query"
)

// Replies that do not come from a collaborator.
const (
	Goodbye  = "Goodbye!"
	Fallback = "I'm here to answer questions about the corpus. What would you like to know?"
)

// Classifier labels a message.
type Classifier interface {
	Classify(ctx context.Context, text string) (Label, error)
}

// Responder produces a conversational reply.
type Responder interface {
	Respond(ctx context.Context, text string) (string, error)
}

// Answerer looks a question up in the corpus.
type Answerer interface {
	Answer(ctx context.Context, text string, topics []string) (string, error)
}

// Router dispatches each message to the right collaborator.
type Router struct {
	classifier Classifier
	responder  Responder
	answerer   Answerer
	logger     *zap.Logger
}

// NewRouter builds a Router. A nil classifier sends every message to the
// answerer; a nil responder answers small talk with Fallback.
func NewRouter(answerer Answerer, classifier Classifier, responder Responder, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		classifier: classifier,
		responder:  responder,
		answerer:   answerer,
		logger:     logger.Named("chat"),
	}
}

// IsExit reports whether message ends the conversation.
func IsExit(message string) bool {
	return strings.EqualFold(strings.TrimSpace(message), "exit")
}

// Reply returns the response to message. The error is non-nil only when the
// answerer failed; the returned string is still safe to show.
func (r *Router) Reply(ctx context.Context, message string, topics []string) (string, error) {
	if IsExit(message) {
		return Goodbye, nil
	}

	label := LabelQuery
	if r.classifier != nil {
		got, err := r.classifier.Classify(ctx, message)
		if err != nil {
			r.logger.Warn("classification failed, treating as query", zap.Error(err))
		} else {
			label = got
		}
	}

	if label == LabelChitChat {
		if r.responder == nil {
			return Fallback, nil
		}
		reply, err := r.responder.Respond(ctx, message)
		if err != nil || strings.TrimSpace(reply) == "" {
			r.logger.Warn("responder failed", zap.Error(err))
			return Fallback, nil
		}
		return reply, nil
	}

	return r.answerer.Answer(ctx, message, topics)
}
