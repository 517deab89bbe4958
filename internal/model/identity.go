package model

import (
	"campus-gateway/pkg/apierror"
)

// Identity is the authenticated caller of a single request. It is produced by
// token verification or by a successful credential check and is never persisted.
type Identity struct {
	Subject string `json:"userId"`
	Role    Role   `json:"role"`
}

type DecisionReason string

const (
	ReasonNone             DecisionReason = ""
	ReasonNoIdentity       DecisionReason = "NO_IDENTITY"
	ReasonRoleNotPermitted DecisionReason = "ROLE_NOT_PERMITTED"
)

// AuthorizationDecision is the per-request result of checking an identity
// against a route's allow-list.
type AuthorizationDecision struct {
	Allowed  bool
	Reason   DecisionReason
	Required RoleSet
	Current  Role
}

// Err converts a rejected decision into its outward failure. It returns nil
// when the decision allows the request.
func (d AuthorizationDecision) Err() *apierror.APIError {
	switch {
	case d.Allowed:
		return nil
	case d.Reason == ReasonNoIdentity:
		return apierror.NoIdentity()
	default:
		return apierror.RoleNotPermitted().
			With("required", d.Required.Strings()).
			With("current", string(d.Current))
	}
}
