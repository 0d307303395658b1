package nodes

import (
	"context"
	"errors"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jeffmoIA/netdesk/internal/device"
	"github.com/jeffmoIA/netdesk/internal/domain"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.NetNode{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewService(db)
}

func TestCreateAndFind(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	node, err := svc.Create(ctx, CreateInput{
		Kind: "IPRAN", Alias: "AGG-NORTE", Name: "Agregador Norte", Ipaddr: "10.20.0.1",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if node.Kind != domain.NodeKindIpran {
		t.Errorf("kind = %q, want normalized lowercase", node.Kind)
	}

	found, err := svc.FindByAlias(ctx, "AGG-NORTE")
	if err != nil || found == nil {
		t.Fatalf("FindByAlias: %v, %v", found, err)
	}
	if found.ID != node.ID {
		t.Errorf("found id %d, want %d", found.ID, node.ID)
	}

	missing, err := svc.FindByAlias(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("FindByAlias(nope) = %v, %v; want nil, nil", missing, err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    CreateInput
		field string
	}{
		{"bad kind", CreateInput{Kind: "mpls", Alias: "x", Ipaddr: "10.0.0.1"}, "kind"},
		{"blank alias", CreateInput{Kind: "gpon", Alias: "  ", Ipaddr: "10.0.0.1"}, "alias"},
		{"blank ip", CreateInput{Kind: "gpon", Alias: "x", Ipaddr: ""}, "ipaddr"},
		{"bad ip", CreateInput{Kind: "gpon", Alias: "x", Ipaddr: "300.1.1.1"}, "ipaddr"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.in)
			var verr *device.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if verr.Field != tc.field {
				t.Errorf("field = %q, want %q", verr.Field, tc.field)
			}
		})
	}
}

func TestCreateDuplicates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateInput{Kind: "gpon", Alias: "OLT-1", Ipaddr: "10.30.0.1"}); err != nil {
		t.Fatal(err)
	}

	_, err := svc.Create(ctx, CreateInput{Kind: "ipran", Alias: "OLT-1", Ipaddr: "10.30.0.2"})
	var derr *device.DuplicateError
	if !errors.As(err, &derr) || derr.Field != "alias" {
		t.Errorf("duplicate alias err = %v", err)
	}

	_, err = svc.Create(ctx, CreateInput{Kind: "ipran", Alias: "OLT-2", Ipaddr: "10.30.0.1"})
	if !errors.As(err, &derr) || derr.Field != "ipaddr" {
		t.Errorf("duplicate ip err = %v", err)
	}
}

func TestUpdateSelfExclusion(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	node, err := svc.Create(ctx, CreateInput{Kind: "gpon", Alias: "OLT-1", Ipaddr: "10.30.0.1"})
	if err != nil {
		t.Fatal(err)
	}

	// Re-saving its own alias and IP is not a conflict.
	alias, ip := "OLT-1", "10.30.0.1"
	if _, err := svc.Update(ctx, node.ID, UpdateInput{Alias: &alias, Ipaddr: &ip}); err != nil {
		t.Errorf("self update: %v", err)
	}

	name := "OLT Centro"
	updated, err := svc.Update(ctx, node.ID, UpdateInput{Name: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "OLT Centro" {
		t.Errorf("name = %q", updated.Name)
	}
}

func TestListByKindAndSearch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	seed := []CreateInput{
		{Kind: "ipran", Alias: "AGG-1", Name: "Agregador Uno", Ipaddr: "10.20.0.1"},
		{Kind: "ipran", Alias: "AGG-2", Name: "Agregador Dos", Ipaddr: "10.20.0.2"},
		{Kind: "gpon", Alias: "OLT-1", Name: "OLT Centro", Ipaddr: "10.30.0.1"},
	}
	for _, in := range seed {
		if _, err := svc.Create(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	ipran, err := svc.ListByKind(ctx, "ipran")
	if err != nil || len(ipran) != 2 {
		t.Errorf("ListByKind(ipran) = %d nodes, %v; want 2", len(ipran), err)
	}
	all, err := svc.ListByKind(ctx, "")
	if err != nil || len(all) != 3 {
		t.Errorf("ListByKind('') = %d nodes, %v; want 3", len(all), err)
	}

	hits, err := svc.Search(ctx, "agregador")
	if err != nil || len(hits) != 2 {
		t.Errorf("Search(agregador) = %d, %v; want 2", len(hits), err)
	}
	hits, err = svc.Search(ctx, "10.30")
	if err != nil || len(hits) != 1 {
		t.Errorf("Search(10.30) = %d, %v; want 1", len(hits), err)
	}
}

func TestRemove(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	node, err := svc.Create(ctx, CreateInput{Kind: "gpon", Alias: "OLT-1", Ipaddr: "10.30.0.1"})
	if err != nil {
		t.Fatal(err)
	}

	if ok, err := svc.Remove(ctx, node.ID); err != nil || !ok {
		t.Errorf("Remove = %v, %v; want true", ok, err)
	}
	if ok, err := svc.Remove(ctx, node.ID); err != nil || ok {
		t.Errorf("second Remove = %v, %v; want false", ok, err)
	}

	_, err = svc.GetByID(ctx, node.ID)
	var nferr *device.NotFoundError
	if !errors.As(err, &nferr) {
		t.Errorf("GetByID after remove = %v, want NotFoundError", err)
	}
}
