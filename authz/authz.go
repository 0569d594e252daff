/*
Package authz provides role-based capability checks for governance
actions.

PURPOSE:
  Answers "may this actor perform this action on this resource kind"
  independently of how roles are stored. Manager/approver identity
  checks stay in the state machine (they are data relationships, not
  roles); this package covers the role-gated admin surface:
  close/reopen cycle, lock/reopen/lock-all plans, revoke approval,
  publish, and export.

IMPLEMENTATION:
  A casbin RBAC enforcer with an in-memory model. The policy table maps
  roles to (action, resource) pairs; grouping policies bind actor IDs
  to roles. Session issuance and user provisioning are external - this
  package only consumes actor IDs the transport layer already
  authenticated.

USAGE:
  enf, _ := authz.New()
  enf.Grant("user-42", authz.RoleAdmin)
  ok, _ := enf.Can("user-42", "close_cycle", "cycle")

SEE ALSO:
  - cycle/plan.go: Consumes this via the cycle.Permission interface
*/
package authz

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Roles recognized by the default policy table.
const (
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

const rbacModel = `
[request_definition]
r = sub, act, obj

[policy_definition]
p = sub, act, obj

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.act == p.act && r.obj == p.obj
`

// adminPolicies is the capability table for the admin roles. Both admin
// and superadmin hold every governance capability.
var adminPolicies = [][2]string{
	{"close_cycle", "cycle"},
	{"reopen_cycle", "cycle"},
	{"lock_all_plans", "cycle"},
	{"publish", "cycle"},
	{"export", "cycle"},
	{"validate", "cycle"},
	{"lock_plan", "plan"},
	{"reopen_plan", "plan"},
	{"revoke_approval", "plan"},
}

// Enforcer wraps a casbin enforcer behind the capability-check shape the
// domain packages expect.
type Enforcer struct {
	e *casbin.Enforcer
}

// New builds an enforcer with the default role->capability table and no
// role bindings. Bind actors with Grant.
func New() (*Enforcer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to build enforcer: %w", err)
	}
	for _, role := range []string{RoleAdmin, RoleSuperadmin} {
		for _, p := range adminPolicies {
			if _, err := e.AddPolicy(role, p[0], p[1]); err != nil {
				return nil, fmt.Errorf("failed to add policy: %w", err)
			}
		}
	}
	return &Enforcer{e: e}, nil
}

// Grant binds an actor to a role.
func (a *Enforcer) Grant(actorID, role string) error {
	_, err := a.e.AddGroupingPolicy(actorID, role)
	return err
}

// Can reports whether the actor may perform action on the resource kind.
// Implements cycle.Permission.
func (a *Enforcer) Can(actorID, action, resource string) (bool, error) {
	return a.e.Enforce(actorID, action, resource)
}
