package device

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jeffmoIA/netdesk/internal/domain"
	"github.com/jeffmoIA/netdesk/internal/secrets"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.NetDevice{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewService(db, secrets.NewBox("test-secret"))
}

func TestValidIPv4(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"192.168.1.1", true},
		{"10.0.0.5", true},
		{"999.1.1.1", false},
		{"192.168.1", false},
		{"abc.def.ghi.jkl", false},
		{"256.256.256.256", false},
		{"", false},
		{"::1", false},
	}
	for _, tt := range tests {
		if got := ValidIPv4(tt.ip); got != tt.want {
			t.Errorf("ValidIPv4(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestRegisterValidation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"blank name", RegisterInput{Name: "  ", Ipaddr: "10.0.0.1"}},
		{"blank ip", RegisterInput{Name: "MTK-01", Ipaddr: ""}},
		{"bad ip", RegisterInput{Name: "MTK-01", Ipaddr: "999.1.1.1"}},
	}
	for _, tt := range tests {
		_, err := s.Register(ctx, tt.in)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s: got %v, want ValidationError", tt.name, err)
		}
	}
}

func TestRegisterAndFind(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	dev, err := s.Register(ctx, RegisterInput{
		Name:     "MTK-01",
		Ipaddr:   "10.0.0.5",
		Username: "admin",
		Password: "secret",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if dev.Status != domain.DeviceStatusActive {
		t.Errorf("status = %q, want active", dev.Status)
	}
	if dev.Reachable {
		t.Error("new device marked reachable before any probe")
	}
	if dev.Password == "secret" {
		t.Error("password stored in cleartext")
	}

	found, err := s.FindByName(ctx, "MTK-01")
	if err != nil {
		t.Fatalf("FindByName: %v", err)
	}
	if found == nil || found.ID != dev.ID {
		t.Fatalf("FindByName returned %+v", found)
	}

	user, pass, err := s.Credentials(found)
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	if user != "admin" || pass != "secret" {
		t.Errorf("Credentials = %q/%q", user, pass)
	}
}

func TestRegisterDuplicates(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if _, err := s.Register(ctx, RegisterInput{Name: "MTK-01", Ipaddr: "10.0.0.5"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var derr *DuplicateError
	_, err := s.Register(ctx, RegisterInput{Name: "MTK-01", Ipaddr: "10.0.0.6"})
	if !errors.As(err, &derr) || derr.Field != "name" {
		t.Errorf("duplicate name: got %v", err)
	}

	_, err = s.Register(ctx, RegisterInput{Name: "MTK-02", Ipaddr: "10.0.0.5"})
	if !errors.As(err, &derr) || derr.Field != "ipaddr" {
		t.Errorf("duplicate ip: got %v", err)
	}
}

func TestUpdateExcludesSelfFromDuplicateCheck(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	dev, err := s.Register(ctx, RegisterInput{Name: "MTK-01", Ipaddr: "10.0.0.5"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Re-saving its own name and IP must not trip the uniqueness check.
	name, ip := "MTK-01", "10.0.0.5"
	if _, err := s.Update(ctx, dev.ID, UpdateInput{Name: &name, Ipaddr: &ip}); err != nil {
		t.Errorf("Update with own values: %v", err)
	}

	bad := "bogus"
	if _, err := s.Update(ctx, dev.ID, UpdateInput{Status: &bad}); err == nil {
		t.Error("Update accepted invalid status")
	}

	maint := "MAINTENANCE"
	updated, err := s.Update(ctx, dev.ID, UpdateInput{Status: &maint})
	if err != nil {
		t.Fatalf("Update status: %v", err)
	}
	if updated.Status != domain.DeviceStatusMaintenance {
		t.Errorf("status = %q, want maintenance", updated.Status)
	}
}

func TestUpdateNotFound(t *testing.T) {
	s := newTestService(t)
	_, err := s.Update(context.Background(), 424242, UpdateInput{})
	var nferr *NotFoundError
	if !errors.As(err, &nferr) {
		t.Errorf("got %v, want NotFoundError", err)
	}
}

func TestRemove(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	dev, _ := s.Register(ctx, RegisterInput{Name: "MTK-01", Ipaddr: "10.0.0.5"})

	existed, err := s.Remove(ctx, dev.ID)
	if err != nil || !existed {
		t.Errorf("Remove = %v, %v; want true, nil", existed, err)
	}
	existed, err = s.Remove(ctx, dev.ID)
	if err != nil || existed {
		t.Errorf("second Remove = %v, %v; want false, nil", existed, err)
	}
}

func TestSearch(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	seed := []RegisterInput{
		{Name: "MTK-CARACAS-01", Ipaddr: "10.1.0.1", Location: "Caracas", CustomerName: "Acme"},
		{Name: "MTK-VALENCIA-01", Ipaddr: "10.2.0.1", Location: "Valencia", Model: "RB750Gr3"},
		{Name: "MTK-MARACAY-01", Ipaddr: "10.3.0.1", Notes: "pending window with acme staff"},
	}
	for _, in := range seed {
		if _, err := s.Register(ctx, in); err != nil {
			t.Fatalf("seed %s: %v", in.Name, err)
		}
	}

	tests := []struct {
		text string
		want int
	}{
		{"ACME", 2},   // customer name + notes, case-insensitive
		{"rb750", 1},  // model
		{"10.2.0", 1}, // ip fragment
		{"mtk-", 3},   // name prefix
		{"zzz", 0},
	}
	for _, tt := range tests {
		got, err := s.Search(ctx, tt.text)
		if err != nil {
			t.Fatalf("Search(%q): %v", tt.text, err)
		}
		if len(got) != tt.want {
			t.Errorf("Search(%q) = %d results, want %d", tt.text, len(got), tt.want)
		}
	}
}

func TestStatistics(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		in := RegisterInput{Name: fmt.Sprintf("MTK-%02d", i), Ipaddr: fmt.Sprintf("10.0.0.%d", i+1)}
		if i%2 == 0 {
			in.Password = "secret"
			in.Model = "hEX"
		}
		dev, err := s.Register(ctx, in)
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		if i == 0 {
			if err := s.SetReachability(ctx, dev.ID, true, "reply"); err != nil {
				t.Fatalf("SetReachability: %v", err)
			}
		}
	}

	stats, err := s.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if stats.Total != 4 {
		t.Errorf("Total = %d, want 4", stats.Total)
	}
	if stats.WithCredentials != 2 || stats.WithoutCredentials != 2 {
		t.Errorf("credentials split = %d/%d, want 2/2", stats.WithCredentials, stats.WithoutCredentials)
	}
	if stats.ByModel["hEX"] != 2 {
		t.Errorf("ByModel[hEX] = %d, want 2", stats.ByModel["hEX"])
	}
	if stats.Reachability.Reachable != 1 || stats.Reachability.Unreachable != 3 {
		t.Errorf("reachability = %+v", stats.Reachability)
	}
	if stats.Reachability.ReachablePercent != 25 {
		t.Errorf("ReachablePercent = %v, want 25", stats.Reachability.ReachablePercent)
	}
}

func TestSetReachabilityStatusTransitions(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	dev, _ := s.Register(ctx, RegisterInput{Name: "MTK-01", Ipaddr: "10.0.0.5"})

	// active + unreachable -> error
	if err := s.SetReachability(ctx, dev.ID, false, "timeout"); err != nil {
		t.Fatalf("SetReachability: %v", err)
	}
	got, _ := s.GetByID(ctx, dev.ID)
	if got.Status != domain.DeviceStatusError || got.Reachable {
		t.Errorf("after failed probe: status=%q reachable=%v", got.Status, got.Reachable)
	}

	// error + reachable -> active again
	if err := s.SetReachability(ctx, dev.ID, true, "reply"); err != nil {
		t.Fatalf("SetReachability: %v", err)
	}
	got, _ = s.GetByID(ctx, dev.ID)
	if got.Status != domain.DeviceStatusActive || !got.Reachable {
		t.Errorf("after recovery: status=%q reachable=%v", got.Status, got.Reachable)
	}
}
