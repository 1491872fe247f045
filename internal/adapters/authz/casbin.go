package authz

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"github.com/ogurasousui/workforce-scheduling/internal/core/access"
)

const roleModel = `
[request_definition]
r = sub, obj

[policy_definition]
p = sub, obj

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj
`

// Enforcer は casbin のポリシーでロールと能力の対応を判定する access.Authorizer の実装です。
type Enforcer struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
}

// NewEnforcer はロール定義から Enforcer を生成します。roles が空の場合は access.DefaultRoles を使います。
func NewEnforcer(roles map[string][]string) (*Enforcer, error) {
	m, err := model.NewModelFromString(roleModel)
	if err != nil {
		return nil, fmt.Errorf("authz: failed to parse model: %w", err)
	}
	enf, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("authz: failed to initialize enforcer: %w", err)
	}

	if len(roles) == 0 {
		roles = defaultPolicies()
	}

	names := make([]string, 0, len(roles))
	for role := range roles {
		names = append(names, role)
	}
	sort.Strings(names)

	for _, role := range names {
		for _, capability := range roles[role] {
			if _, err := enf.AddPolicy(strings.TrimSpace(role), strings.TrimSpace(capability)); err != nil {
				return nil, fmt.Errorf("authz: failed to add policy %s/%s: %w", role, capability, err)
			}
		}
	}

	return &Enforcer{enforcer: enf}, nil
}

// Can は actor のいずれかのロールに capability が許可されていれば true を返します。
func (e *Enforcer) Can(_ context.Context, actor access.Actor, capability access.Capability) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, role := range actor.Roles {
		ok, err := e.enforcer.Enforce(role, string(capability))
		if err != nil {
			return false, fmt.Errorf("authz: enforce failed: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Grant は実行時に role へ capability を追加します。
func (e *Enforcer) Grant(role string, capability access.Capability) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.enforcer.AddPolicy(role, string(capability)); err != nil {
		return fmt.Errorf("authz: failed to add policy %s/%s: %w", role, capability, err)
	}
	return nil
}

func defaultPolicies() map[string][]string {
	defaults := access.DefaultRoles()
	out := make(map[string][]string, len(defaults))
	for role, caps := range defaults {
		list := make([]string, 0, len(caps))
		for _, c := range caps {
			list = append(list, string(c))
		}
		out[role] = list
	}
	return out
}
