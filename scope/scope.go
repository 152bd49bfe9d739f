// Package scope derives per-backend isolation keys from a request's
// authorization claims. Resolution is pure: no I/O, no clock, no logging.
package scope

import (
	"fmt"
	"strings"
	"time"

	"github.com/mnemohq/mnemo-go-sdk/core"
)

// Separator joins the user id and application id in a graph key. It is part
// of the wire contract: downstream systems parse graph keys back with it.
const Separator = "::"

// Granted scopes as carried in the caller's JWT scope claim.
const (
	AllMemories = "all_memories"
	AppSpecific = "app_specific"
	TimeBounded = "time_bounded"
)

// DefaultWindow is the recency bound applied under time-bounded scope.
const DefaultWindow = 30 * 24 * time.Hour

// Resolve maps (userID, appID, granted scope) to the isolation keys for
// both backends.
//
// Unknown or missing scopes fail open to all_memories and set Degraded on
// the returned key; over-restriction silently breaks retrieval while
// over-permission is auditable. Malformed identity is the opposite case: it
// is a hard failure (core.ErrInvalidScopeInput), never defaulted.
//
// Key shapes:
//
//	all_memories:  semantic=""            graph=userID
//	app_specific:  semantic=appID         graph=userID::appID
//	time_bounded:  semantic=""            graph=userID     (+ recency window)
//
// The semantic backend partitions by user at a layer above this engine, so
// its key only ever narrows by application. An empty semantic key means no
// isolation: full-account search.
func Resolve(userID, appID, granted string) (core.IsolationKey, error) {
	if err := validateID("user_id", userID); err != nil {
		return core.IsolationKey{}, err
	}
	if appID != "" {
		if err := validateID("application_id", appID); err != nil {
			return core.IsolationKey{}, err
		}
	}

	switch granted {
	case AppSpecific:
		if appID == "" {
			return core.IsolationKey{}, fmt.Errorf("%w: app_specific scope requires application_id", core.ErrInvalidScopeInput)
		}
		return core.IsolationKey{
			SemanticKey: appID,
			GraphKey:    userID + Separator + appID,
		}, nil

	case TimeBounded:
		return core.IsolationKey{
			GraphKey: userID,
			Window:   DefaultWindow,
		}, nil

	case AllMemories:
		return core.IsolationKey{GraphKey: userID}, nil

	default:
		// Missing or unrecognized scope: fail open to full access. The
		// caller logs the degradation; Resolve stays pure.
		return core.IsolationKey{GraphKey: userID, Degraded: true}, nil
	}
}

// ParseGraphKey splits a graph key back into its user and application
// parts. The application part is empty for account-wide keys.
func ParseGraphKey(key string) (userID, appID string) {
	parts := strings.SplitN(key, Separator, 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return key, ""
}

func validateID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s is empty", core.ErrInvalidScopeInput, field)
	}
	if strings.Contains(id, Separator) {
		return fmt.Errorf("%w: %s contains reserved separator %q", core.ErrInvalidScopeInput, field, Separator)
	}
	return nil
}
