// Package present holds the user-facing side of a giveaway: the messages
// shown to participants and a console adapter that renders events as text.
//
// A chat-platform adapter implements the same method set as Console. The
// engine calls Present, Refresh, Finish and Announce; the recovery loop calls
// Resolve to learn whether a stored presentation handle still exists.
package present

import (
	"errors"
	"strings"
)

// ErrGone is returned by Resolve when the presentation handle no longer
// exists (deleted channel or message). Such events are unrecoverable.
var ErrGone = errors.New("presentation handle gone")

// User-facing texts.
const (
	EnteredText        = "You've been entered into the giveaway!"
	AlreadyEnteredText = "You're already in the giveaway!"
	WithdrawnText      = "You've left the giveaway."
	NotEnteredText     = "You're not in the giveaway."
	NoEntrantsText     = "No one entered the giveaway."
	NotFoundText       = "Giveaway not found."
	NoEventsText       = "No giveaways found."
)

// Mention renders a participant reference.
func Mention(participantID string) string {
	return "<@" + participantID + ">"
}

// WinnersText is the announcement for a draw with at least one winner.
func WinnersText(winners []string) string {
	if len(winners) == 0 {
		return NoEntrantsText
	}
	mentions := make([]string, len(winners))
	for i, w := range winners {
		mentions[i] = Mention(w)
	}
	return "Congratulations " + strings.Join(mentions, ", ") + "! You won the giveaway!"
}

// EntryText is the reply to an entry attempt.
func EntryText(created bool) string {
	if created {
		return EnteredText
	}
	return AlreadyEnteredText
}
