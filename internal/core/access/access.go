package access

import (
	"context"
	"errors"
	"strings"
)

var ErrMissingActor = errors.New("access: actor is required")

// Capability はアクターに許可される操作の単位です。
type Capability string

const (
	CapManageRequests Capability = "requests.manage"
	CapManageSchedule Capability = "schedule.manage"
	CapBypassLock     Capability = "schedule.bypass_lock"
	CapOverrideLock   Capability = "schedule.override"
)

// Actor は操作を行う主体です。
type Actor struct {
	ID       string
	TenantID string
	Roles    []string
}

// Validate は ID とテナントが設定されているかを確認します。
func (a Actor) Validate() error {
	if strings.TrimSpace(a.ID) == "" || strings.TrimSpace(a.TenantID) == "" {
		return ErrMissingActor
	}
	return nil
}

// Authorizer はアクターが能力を持つかを判定します。
type Authorizer interface {
	Can(ctx context.Context, actor Actor, capability Capability) (bool, error)
}

// StaticAuthorizer はロールから能力への固定マッピングで判定します。
type StaticAuthorizer map[string][]Capability

// Can は actor のいずれかのロールが capability を持てば true を返します。
func (s StaticAuthorizer) Can(_ context.Context, actor Actor, capability Capability) (bool, error) {
	for _, role := range actor.Roles {
		for _, c := range s[role] {
			if c == capability {
				return true, nil
			}
		}
	}
	return false, nil
}

// DefaultRoles は設定が無い場合のロール定義です。
func DefaultRoles() StaticAuthorizer {
	return StaticAuthorizer{
		"employee": nil,
		"manager":  {CapManageRequests, CapManageSchedule},
		"admin":    {CapManageRequests, CapManageSchedule, CapBypassLock, CapOverrideLock},
	}
}
