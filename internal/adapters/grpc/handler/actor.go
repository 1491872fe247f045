package handler

import (
	"context"
	"strings"

	"github.com/ogurasousui/workforce-scheduling/internal/core/access"
	"google.golang.org/grpc/metadata"
)

// メタデータのキーです。
// 値はそのまま信頼するため、前段の認証ゲートウェイがクライアントの送った値を破棄して付け直す必要があります。
const (
	MetadataTenantID   = "x-tenant-id"
	MetadataActorID    = "x-actor-id"
	MetadataActorRoles = "x-actor-roles"
)

// actorFromContext は受信メタデータからアクターを組み立てます。
// このサーバー自身は認証を行わず、ロールの検証はゲートウェイに委ねます。
func actorFromContext(ctx context.Context) (access.Actor, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return access.Actor{}, access.ErrMissingActor
	}

	actor := access.Actor{
		ID:       firstValue(md, MetadataActorID),
		TenantID: firstValue(md, MetadataTenantID),
	}
	for _, raw := range md.Get(MetadataActorRoles) {
		for _, role := range strings.Split(raw, ",") {
			if role = strings.TrimSpace(role); role != "" {
				actor.Roles = append(actor.Roles, role)
			}
		}
	}

	if err := actor.Validate(); err != nil {
		return access.Actor{}, err
	}
	return actor, nil
}

func firstValue(md metadata.MD, key string) string {
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
