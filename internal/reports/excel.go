// Package reports produces operator-facing workbook exports of the
// inventory. Credentials never leave the database: exports carry the
// registry metadata only.
package reports

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/jeffmoIA/netdesk/internal/device"
	"github.com/jeffmoIA/netdesk/internal/domain"
	"github.com/jeffmoIA/netdesk/internal/nodes"
)

type Service struct {
	devices *device.Service
	nodes   *nodes.Service
}

func NewService(devices *device.Service, nodes *nodes.Service) *Service {
	return &Service{devices: devices, nodes: nodes}
}

var deviceHeader = []string{
	"Name", "IP Address", "Model", "Firmware", "Status", "Reachable",
	"Location", "Customer ID", "Customer", "Last Probe", "Notes",
}

var nodeHeader = []string{"Alias", "Kind", "Name", "IP Address", "Remark"}

// WriteInventory renders the full inventory workbook to w: one sheet of
// devices, one of transport nodes.
func (s *Service) WriteInventory(ctx context.Context, w io.Writer) error {
	devs, err := s.devices.Search(ctx, "")
	if err != nil {
		return err
	}
	allNodes, err := s.nodes.ListByKind(ctx, "")
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()

	const devSheet = "Devices"
	f.SetSheetName("Sheet1", devSheet)
	if err := writeRow(f, devSheet, 1, deviceHeader); err != nil {
		return err
	}
	for i, d := range devs {
		row := []interface{}{
			d.Name, d.Ipaddr, d.Model, d.Firmware, d.Status,
			yesNo(d.Reachable), d.Location, d.CustomerId, d.CustomerName,
			probeTime(d), d.Notes,
		}
		if err := writeValues(f, devSheet, i+2, row); err != nil {
			return err
		}
	}
	f.SetColWidth(devSheet, "A", "B", 18)
	f.SetColWidth(devSheet, "I", "K", 24)

	const nodeSheet = "Nodes"
	if _, err := f.NewSheet(nodeSheet); err != nil {
		return err
	}
	if err := writeRow(f, nodeSheet, 1, nodeHeader); err != nil {
		return err
	}
	for i, n := range allNodes {
		row := []interface{}{n.Alias, n.Kind, n.Name, n.Ipaddr, n.Remark}
		if err := writeValues(f, nodeSheet, i+2, row); err != nil {
			return err
		}
	}
	f.SetColWidth(nodeSheet, "A", "D", 18)

	_, err = f.WriteTo(w)
	return err
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return writeValues(f, sheet, row, cells)
}

func writeValues(f *excelize.File, sheet string, row int, values []interface{}) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func probeTime(d domain.NetDevice) string {
	if d.LastProbeAt.IsZero() {
		return ""
	}
	return d.LastProbeAt.Format(time.RFC3339)
}

// InventoryFilename names a dated workbook download.
func InventoryFilename() string {
	return fmt.Sprintf("inventory-%s.xlsx", time.Now().Format("20060102"))
}
