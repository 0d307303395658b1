package reports

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jeffmoIA/netdesk/internal/device"
	"github.com/jeffmoIA/netdesk/internal/domain"
	"github.com/jeffmoIA/netdesk/internal/nodes"
	"github.com/jeffmoIA/netdesk/internal/secrets"
)

func newTestService(t *testing.T) (*Service, *device.Service, *nodes.Service) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.NetDevice{}, &domain.NetNode{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	devs := device.NewService(db, secrets.NewBox("test-secret"))
	nds := nodes.NewService(db)
	return NewService(devs, nds), devs, nds
}

func TestWriteInventory(t *testing.T) {
	svc, devs, nds := newTestService(t)
	ctx := context.Background()

	if _, err := devs.Register(ctx, device.RegisterInput{
		Name: "MTK-01", Ipaddr: "10.0.0.1", Password: "secreto",
		Model: "RB750Gr3", CustomerName: "ACME",
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := nds.Create(ctx, nodes.CreateInput{
		Kind: "ipran", Alias: "AGG-1", Name: "Agregador", Ipaddr: "10.20.0.1",
	}); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := svc.WriteInventory(ctx, &buf); err != nil {
		t.Fatalf("WriteInventory: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Devices")
	if err != nil {
		t.Fatalf("GetRows(Devices): %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Devices sheet has %d rows, want header + 1", len(rows))
	}
	if rows[1][0] != "MTK-01" || rows[1][1] != "10.0.0.1" {
		t.Errorf("device row = %v", rows[1])
	}

	// No column may carry the stored credentials.
	for _, row := range rows {
		for _, cell := range row {
			if strings.Contains(cell, "secreto") {
				t.Fatalf("credential leaked into workbook: %v", row)
			}
		}
	}

	nodeRows, err := f.GetRows("Nodes")
	if err != nil {
		t.Fatalf("GetRows(Nodes): %v", err)
	}
	if len(nodeRows) != 2 || nodeRows[1][0] != "AGG-1" {
		t.Errorf("node rows = %v", nodeRows)
	}
}
