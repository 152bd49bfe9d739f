// Package classify decides whether a message needs memory retrieval at
// all. The classifier is a heuristic pattern matcher tuned for one property:
// it must never skip retrieval for a message that references prior
// conversation content. Retrieving unnecessarily only costs latency;
// skipping wrongly loses context.
//
// Classification runs on the request hot path, so it does no I/O, takes no
// locks, and avoids allocating: all matching is case-insensitive comparison
// against fixed tables.
package classify

// Decision is the classifier's verdict for one message.
type Decision struct {
	SkipRetrieval bool
	Reason        string
}

// Reasons reported in Decision.Reason.
const (
	ReasonCallerFlag    = "caller_no_context"
	ReasonEmptyMessage  = "empty_message"
	ReasonGreeting      = "greeting"
	ReasonNeedsContext  = "needs_context"
	ReasonPriorReference = "prior_reference"
)

// greetings are messages that never need stored context when they make up
// the entire message: greetings, farewells, and bare acknowledgements.
var greetings = []string{
	"hi", "hello", "hey", "yo", "hiya", "howdy",
	"good morning", "good afternoon", "good evening", "good night",
	"bye", "goodbye", "see you", "later", "take care",
	"thanks", "thank you", "thanks a lot", "thx", "ty",
	"ok", "okay", "k", "sure", "got it", "sounds good", "great",
	"yes", "no", "yep", "nope", "cool", "nice", "perfect",
	"you're welcome", "no problem",
}

// priorReferences mark messages that lean on earlier conversation or stored
// memory. Any hit forces retrieval, before the greeting table is consulted,
// so "thanks, and about what we discussed" still retrieves.
var priorReferences = []string{
	"we discussed", "we talked", "you said", "you told", "you mentioned",
	"i said", "i told", "i mentioned", "as before", "like before",
	"last time", "earlier", "previously", "again", "continue", "remember",
	"remind", "recall", "follow up", "following up", "back to",
	"my ", "our ", // possessives almost always reference stored facts
}

// maxSkippableLen bounds how long a message can be and still be skipped.
// Long messages carry substance even when they open with a greeting.
const maxSkippableLen = 64

// Classify decides whether retrieval can be skipped for message. noContext
// is the caller's explicit "no context needed" flag, which is always
// honored.
func Classify(message string, noContext bool) Decision {
	if noContext {
		return Decision{SkipRetrieval: true, Reason: ReasonCallerFlag}
	}

	start, end := trimBounds(message)
	if start >= end {
		return Decision{SkipRetrieval: true, Reason: ReasonEmptyMessage}
	}

	if end-start > maxSkippableLen {
		return Decision{Reason: ReasonNeedsContext}
	}

	for _, ref := range priorReferences {
		if foldContains(message, start, end, ref) {
			return Decision{Reason: ReasonPriorReference}
		}
	}

	// Questions ask for something; err toward retrieving.
	if indexByte(message, start, end, '?') >= 0 {
		return Decision{Reason: ReasonNeedsContext}
	}

	// Strip closing punctuation so "hello!" and "thanks." match.
	for end > start {
		switch message[end-1] {
		case '!', '.', ',', ';':
			end--
			continue
		}
		break
	}

	for _, g := range greetings {
		if foldEqual(message, start, end, g) {
			return Decision{SkipRetrieval: true, Reason: ReasonGreeting}
		}
	}

	return Decision{Reason: ReasonNeedsContext}
}

// trimBounds returns the [start, end) slice bounds of message with ASCII
// whitespace trimmed, without allocating.
func trimBounds(s string) (int, int) {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return start, end
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

// foldEqual reports whether s[start:end] equals pat under ASCII case
// folding.
func foldEqual(s string, start, end int, pat string) bool {
	if end-start != len(pat) {
		return false
	}
	for i := 0; i < len(pat); i++ {
		if lower(s[start+i]) != pat[i] {
			return false
		}
	}
	return true
}

// foldContains reports whether s[start:end] contains pat under ASCII case
// folding.
func foldContains(s string, start, end int, pat string) bool {
	n := len(pat)
	if n == 0 || end-start < n {
		return false
	}
	for i := start; i+n <= end; i++ {
		j := 0
		for j < n && lower(s[i+j]) == pat[j] {
			j++
		}
		if j == n {
			return true
		}
	}
	return false
}

func indexByte(s string, start, end int, c byte) int {
	for i := start; i < end; i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}
