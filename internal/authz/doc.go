// Rolestage - Realtime Scenario Event Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/rolestage

// Package authz decides what a scenario role may do, using Casbin.
//
// The subject of every decision is a membership role (owner, gm, player), not
// a user: the membership store answers "which role does this user hold in
// this scenario" and the enforcer answers "may that role do this".
//
// # RBAC Model
//
//	[request_definition]
//	r = sub, obj, act
//
//	[policy_definition]
//	p = sub, obj, act
//
//	[role_definition]
//	g = _, _
//
//	[policy_effect]
//	e = some(where (p.eft == allow))
//
//	[matchers]
//	m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
//
// The embedded policy makes owner inherit gm and gm inherit player, and lets
// player subscribe to the realtime object. A deployment can point
// EnforcerConfig.PolicyPath at its own CSV to change that without a rebuild.
//
// # Usage Example
//
//	enforcer, err := authz.NewEnforcer(authz.EnforcerConfig{})
//	if err != nil {
//	    return err
//	}
//	defer enforcer.Close()
//
//	ok, err := enforcer.CanSubscribe("gm")
package authz
