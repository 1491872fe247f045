package handler

import (
	"context"
	"math"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func actorContext(roles string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(
		MetadataTenantID, "tenant-1",
		MetadataActorID, "emp-1",
		MetadataActorRoles, roles,
	))
}

func mustStruct(t *testing.T, values map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(values)
	if err != nil {
		t.Fatalf("structpb.NewStruct: %v", err)
	}
	return s
}

func requireCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	if got := status.Code(err); got != want {
		t.Fatalf("expected %s, got %s (%v)", want, got, err)
	}
}

func TestActorFromContext(t *testing.T) {
	t.Parallel()

	actor, err := actorFromContext(actorContext("employee, manager,"))
	if err != nil {
		t.Fatalf("actorFromContext returned error: %v", err)
	}
	if actor.ID != "emp-1" || actor.TenantID != "tenant-1" {
		t.Fatalf("unexpected actor %+v", actor)
	}
	if len(actor.Roles) != 2 || actor.Roles[0] != "employee" || actor.Roles[1] != "manager" {
		t.Fatalf("unexpected roles %v", actor.Roles)
	}
}

func TestActorFromContext_Missing(t *testing.T) {
	t.Parallel()

	if _, err := actorFromContext(context.Background()); err == nil {
		t.Fatalf("expected error without metadata")
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(MetadataActorID, "emp-1"))
	if _, err := actorFromContext(ctx); err == nil {
		t.Fatalf("expected error without tenant")
	}
}

func TestFields_TypeErrors(t *testing.T) {
	t.Parallel()

	f := fieldsOf(mustStruct(t, map[string]any{
		"name":      42.0,
		"page_size": 1.5,
		"starts_at": "yesterday",
		"from":      "2024/01/01",
		"payload":   "x",
		"note":      nil,
	}))

	if _, err := f.str("name"); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for non-string, got %v", err)
	}
	if _, err := f.integer("page_size"); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for fractional number, got %v", err)
	}
	if _, err := f.timestamp("starts_at"); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for bad timestamp, got %v", err)
	}
	if _, err := f.date("from"); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for bad date, got %v", err)
	}
	if _, err := f.object("payload"); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for non-object, got %v", err)
	}
	if note, err := f.optionalStr("note"); err != nil || note != nil {
		t.Fatalf("null must read as absent, got %v %v", note, err)
	}
	if _, err := f.timestamp("ends_at"); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for missing timestamp, got %v", err)
	}
}

func TestFields_IntegerRange(t *testing.T) {
	t.Parallel()

	f := fieldsOf(mustStruct(t, map[string]any{
		"huge":     1e300,
		"negative": -1e19,
		"max":      float64(math.MaxInt32),
	}))

	if _, err := f.integer("huge"); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for huge number, got %v", err)
	}
	if _, err := f.integer("negative"); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for large negative number, got %v", err)
	}
	n, err := f.integer("max")
	if err != nil || n != math.MaxInt32 {
		t.Fatalf("expected %d, got %d %v", math.MaxInt32, n, err)
	}
}
