// Package access decides which staff roles may perform which order
// operations. Policies are static and compiled in; venues that need custom
// role schemes swap the model or policies here.
package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

// Resources and actions guarded across the API.
const (
	ResourceOrders   = "orders"
	ResourcePayments = "payments"

	ActionView   = "view"
	ActionCreate = "create"
	ActionSplit  = "split"
	ActionMerge  = "merge"
	ActionSettle = "settle"
	ActionRefund = "refund"
)

// Roles carried in the auth token.
const (
	RoleManager = "manager"
	RoleServer  = "server"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// Servers run the floor: build orders and take payment. Splitting and
// merging rewrite order history and removing a recorded payment touches
// settled money, so those stay with managers.
var policies = [][]string{
	{RoleServer, ResourceOrders, ActionView},
	{RoleServer, ResourceOrders, ActionCreate},
	{RoleServer, ResourcePayments, ActionSettle},
	{RoleManager, ResourceOrders, ActionSplit},
	{RoleManager, ResourceOrders, ActionMerge},
	{RoleManager, ResourcePayments, ActionRefund},
}

// Manager inherits everything a server can do.
var groupings = [][]string{
	{RoleManager, RoleServer},
}

// Guard answers role based access questions.
type Guard interface {
	Allow(ctx context.Context, role, resource, action string) (bool, error)
}

type guard struct {
	enforcer casbin.IEnforcer
}

// NewGuard builds a guard with the compiled-in policy set.
func NewGuard() (Guard, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("parse access model: %w", err)
	}

	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}

	for _, p := range policies {
		if _, err := enforcer.AddPolicy(p[0], p[1], p[2]); err != nil {
			return nil, fmt.Errorf("add policy %v: %w", p, err)
		}
	}
	for _, g := range groupings {
		if _, err := enforcer.AddGroupingPolicy(g[0], g[1]); err != nil {
			return nil, fmt.Errorf("add grouping %v: %w", g, err)
		}
	}

	return &guard{enforcer: enforcer}, nil
}

func (g *guard) Allow(_ context.Context, role, resource, action string) (bool, error) {
	return g.enforcer.Enforce(strings.ToLower(role), strings.ToLower(resource), strings.ToLower(action))
}
