package gateway

import (
	"campus-gateway/internal/config"
	"campus-gateway/internal/model"
)

const (
	TargetAuth      = "auth"
	TargetBrief     = "brief"
	TargetApprenant = "apprenant"
	TargetFormateur = "formateur"
)

func DefaultTargets(cfg *config.Config) []Target {
	return []Target{
		{Name: TargetAuth, URL: cfg.AuthServiceURL, UnavailableMessage: "Auth service unavailable"},
		{Name: TargetBrief, URL: cfg.BriefServiceURL, UnavailableMessage: "Brief service unavailable"},
		{Name: TargetApprenant, URL: cfg.ApprenantServiceURL, UnavailableMessage: "Apprenant service unavailable"},
		{Name: TargetFormateur, URL: cfg.FormateurServiceURL, UnavailableMessage: "Formateur service unavailable"},
	}
}

// DefaultRules is the campus deployment's table. Every backend serves the same
// path it is addressed by, so all rewrites are the identity.
func DefaultRules() []RouteRule {
	return []RouteRule{
		{Name: "auth", PathPrefix: "/api/auth", Target: TargetAuth},
		{Name: "briefs", PathPrefix: "/api/briefs", RequiresAuth: true, Target: TargetBrief},
		{
			Name:         "apprenants",
			PathPrefix:   "/api/apprenants",
			RequiresAuth: true,
			AllowedRoles: model.NewRoleSet(model.RoleAdmin, model.RoleFormateur),
			Target:       TargetApprenant,
		},
		{
			Name:         "formateurs",
			PathPrefix:   "/api/formateurs",
			RequiresAuth: true,
			AllowedRoles: model.NewRoleSet(model.RoleAdmin),
			Target:       TargetFormateur,
		},
	}
}

// TargetNames lists the names of targets.
func TargetNames(targets []Target) []string {
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.Name
	}
	return names
}
