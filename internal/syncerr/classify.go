package syncerr

import (
	"errors"
	"strings"
)

// classificationRule maps a keyword family onto a kind. Rules are evaluated
// in order and the first match wins; a message containing keywords from two
// families classifies as the earlier family.
type classificationRule struct {
	kind     Kind
	keywords []string
}

// Rule order is part of the contract. Do not reorder without revisiting the
// callers that depend on the network-before-permission precedence.
var classificationRules = []classificationRule{
	{KindNetworkError, []string{"fetch", "network", "offline"}},
	{KindStorageQuotaExceeded, []string{"quota", "storage", "disk"}},
	{KindPermissionDenied, []string{"permission", "denied", "forbidden"}},
	{KindWorkerError, []string{"worker", "message-passing"}},
	{KindConnectionFailed, []string{"connection", "timeout"}},
	{KindQueryFailed, []string{"sql", "syntax"}},
}

// Classify maps an arbitrary failure onto the closed taxonomy. An already
// classified error passes through unchanged; anything unmatched becomes
// KindUnknown.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range classificationRules {
		for _, kw := range rule.keywords {
			if strings.Contains(msg, kw) {
				return Wrap(rule.kind, err.Error(), err)
			}
		}
	}

	return Wrap(KindUnknown, err.Error(), err)
}
