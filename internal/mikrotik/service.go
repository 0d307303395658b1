// Package mikrotik integrates the registry with live RouterOS devices:
// reachability probes, API sessions, traffic-shaping queues and
// configuration exports.
package mikrotik

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gosnmp/gosnmp"
	"go.uber.org/zap"

	"github.com/jeffmoIA/netdesk/internal/device"
	"github.com/jeffmoIA/netdesk/internal/domain"
)

// Result is the outcome of a network-facing operation. Failures are
// values, never panics across goroutine boundaries.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func failure(format string, args ...interface{}) Result {
	return Result{OK: false, Message: fmt.Sprintf(format, args...)}
}

func success(format string, args ...interface{}) Result {
	return Result{OK: true, Message: fmt.Sprintf(format, args...)}
}

// QueueRule is one traffic-shaping rule read from a live device. It is
// transient: fetched fresh on every inspection, never persisted.
type QueueRule struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Target    string `json:"target"`
	RateLimit string `json:"rate_limit"` // "<uploadKbps>k/<downloadKbps>k"
}

// Config tunes the network timeouts and probe concurrency.
type Config struct {
	ApiPort         int
	ConnectTimeout  time.Duration
	ProbeTimeout    time.Duration
	MaxProbeWorkers int
}

// Service drives all device-side operations. One API session per
// operation, opened and closed within that operation's scope.
type Service struct {
	devices   *device.Service
	connector Connector
	prober    Prober
	cfg       Config
}

func NewService(devices *device.Service, connector Connector, prober Prober, cfg Config) *Service {
	if cfg.ApiPort <= 0 {
		cfg.ApiPort = 8728
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 3 * time.Second
	}
	if cfg.MaxProbeWorkers <= 0 {
		cfg.MaxProbeWorkers = 25
	}
	return &Service{devices: devices, connector: connector, prober: prober, cfg: cfg}
}

// Connect opens an authenticated session against a registered device.
// All failure modes come back as a Result; the session is non-nil only
// when Result.OK is true and the caller must close it.
func (s *Service) Connect(ctx context.Context, deviceID int64) (Result, Session) {
	dev, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		var nferr *device.NotFoundError
		if errors.As(err, &nferr) {
			return failure("device not found"), nil
		}
		return failure("registry error: %v", err), nil
	}

	if !dev.HasCredentials() {
		return failure("credentials not configured"), nil
	}

	username, password, err := s.devices.Credentials(dev)
	if err != nil {
		return failure("credential error: %v", err), nil
	}

	sess, err := s.connector.Connect(ctx, APIAddr(dev.Ipaddr, s.cfg.ApiPort), username, password)
	if err != nil {
		zap.L().Warn("device connect failed",
			zap.String("name", dev.Name),
			zap.String("ip", dev.Ipaddr),
			zap.Error(err))
		return failure("%v", err), nil
	}

	return success("connected to %s", dev.Name), sess
}

// ListQueues reads the simple queues configured on a device.
func (s *Service) ListQueues(ctx context.Context, deviceID int64) (Result, []QueueRule) {
	res, sess := s.Connect(ctx, deviceID)
	if !res.OK {
		return res, nil
	}
	defer sess.Close()

	reply, err := sess.Run(
		"/queue/simple/print",
		"=.proplist=.id,name,target,max-limit",
	)
	if err != nil {
		return failure("failed to read queues: %v", err), nil
	}

	rules := make([]QueueRule, 0, len(reply.Re))
	for _, re := range reply.Re {
		rules = append(rules, QueueRule{
			ID:        re.Map[".id"],
			Name:      re.Map["name"],
			Target:    re.Map["target"],
			RateLimit: re.Map["max-limit"],
		})
	}

	return success("%d queues read", len(rules)), rules
}

// SetQueueRate updates a named simple queue's max-limit. uploadMbps <= 0
// mirrors downloadMbps. Re-applying the same rate is idempotent: the
// device ends in the same max-limit either way.
func (s *Service) SetQueueRate(ctx context.Context, deviceID int64, queueName string, downloadMbps, uploadMbps float64) Result {
	if downloadMbps <= 0 {
		return failure("download rate must be positive")
	}
	if uploadMbps <= 0 {
		uploadMbps = downloadMbps
	}
	limit := FormatRateLimit(downloadMbps, uploadMbps)

	res, sess := s.Connect(ctx, deviceID)
	if !res.OK {
		return res
	}
	defer sess.Close()

	reply, err := sess.Run(
		"/queue/simple/print",
		"=.proplist=.id,name",
	)
	if err != nil {
		return failure("failed to read queues: %v", err)
	}

	queueID := ""
	for _, re := range reply.Re {
		if re.Map["name"] == queueName {
			queueID = re.Map[".id"]
			break
		}
	}
	if queueID == "" {
		return failure("queue %q not found", queueName)
	}

	if _, err := sess.Run(
		"/queue/simple/set",
		"=.id="+queueID,
		"=max-limit="+limit,
	); err != nil {
		return failure("failed to update queue %q: %v", queueName, err)
	}

	zap.L().Info("queue rate updated",
		zap.Int64("device_id", deviceID),
		zap.String("queue", queueName),
		zap.String("max_limit", limit))
	return success("queue %q updated to %g Mbps (%s)", queueName, downloadMbps, limit)
}

// FetchFullExport retrieves the device's complete configuration dump
// and persists it on the registry record as the backup copy.
func (s *Service) FetchFullExport(ctx context.Context, deviceID int64) (Result, string) {
	res, sess := s.Connect(ctx, deviceID)
	if !res.OK {
		return res, ""
	}
	defer sess.Close()

	reply, err := sess.Run("/export")
	if err != nil {
		return failure("failed to fetch export: %v", err), ""
	}

	var lines []string
	for _, re := range reply.Re {
		if line, ok := re.Map["line"]; ok {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 && reply.Done != nil {
		if ret := reply.Done.Map["ret"]; ret != "" {
			lines = append(lines, ret)
		}
	}

	if len(lines) == 0 {
		return failure("no export available"), ""
	}
	export := strings.Join(lines, "\n")

	if err := s.devices.SaveExport(ctx, deviceID, export); err != nil {
		zap.L().Error("failed to persist configuration export",
			zap.Int64("device_id", deviceID), zap.Error(err))
		return failure("export fetched but could not be saved: %v", err), export
	}

	return success("export fetched (%d lines)", len(lines)), export
}

// ProbeAPI connects and reads /system/resource to refresh model and
// firmware on the registry record.
func (s *Service) ProbeAPI(ctx context.Context, deviceID int64) Result {
	res, sess := s.Connect(ctx, deviceID)
	if !res.OK {
		return res
	}
	defer sess.Close()

	reply, err := sess.Run("/system/resource/print")
	if err != nil {
		return failure("failed to read system resource: %v", err)
	}
	if len(reply.Re) == 0 {
		return failure("empty system resource reply")
	}

	info := reply.Re[0].Map
	model := info["board-name"]
	firmware := info["version"]
	if model != "" {
		if err := s.devices.SetModel(ctx, deviceID, model); err != nil {
			zap.L().Warn("failed to update device model", zap.Int64("device_id", deviceID), zap.Error(err))
		}
	}

	return success("identity ok: %s %s", model, firmware)
}

// VerifyConnectivity probes one device and records the outcome,
// transitioning status per the registry rules.
func (s *Service) VerifyConnectivity(ctx context.Context, deviceID int64) (bool, error) {
	dev, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return false, err
	}

	reachable := s.prober.Probe(ctx, dev.Ipaddr, s.cfg.ProbeTimeout)
	msg := "echo reply received"
	if !reachable {
		msg = "no reply before timeout"
	}

	if err := s.devices.SetReachability(ctx, deviceID, reachable, msg); err != nil {
		return reachable, err
	}
	return reachable, nil
}

// ProbeDetail is one device's outcome inside a bulk probe report.
type ProbeDetail struct {
	ID        int64  `json:"id,string"`
	Name      string `json:"name"`
	Ip        string `json:"ip"`
	Reachable bool   `json:"reachable"`
	Failed    bool   `json:"failed,omitempty"` // true when the probe itself blew up
	Error     string `json:"error,omitempty"`
}

// BulkProbeReport summarizes a fleet-wide reachability sweep.
type BulkProbeReport struct {
	TotalChecked int           `json:"total_checked"`
	Reachable    int           `json:"reachable"`
	Unreachable  int           `json:"unreachable"`
	Details      []ProbeDetail `json:"details"`
}

// BulkProbe sweeps every active device with a bounded number of workers.
// One device failing — even a panicking prober — never aborts the batch.
func (s *Service) BulkProbe(ctx context.Context) (*BulkProbeReport, error) {
	devs, err := s.devices.FindByStatus(ctx, domain.DeviceStatusActive)
	if err != nil {
		return nil, err
	}

	report := &BulkProbeReport{
		TotalChecked: len(devs),
		Details:      make([]ProbeDetail, len(devs)),
	}

	sem := make(chan struct{}, s.cfg.MaxProbeWorkers)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i, dev := range devs {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, d domain.NetDevice) {
			defer wg.Done()
			defer func() { <-sem }()

			detail := ProbeDetail{ID: d.ID, Name: d.Name, Ip: d.Ipaddr}

			func() {
				defer func() {
					if r := recover(); r != nil {
						detail.Failed = true
						detail.Error = fmt.Sprintf("probe panic: %v", r)
						zap.L().Error("bulk probe worker recovered",
							zap.String("ip", d.Ipaddr),
							zap.Any("panic", r))
					}
				}()
				detail.Reachable = s.prober.Probe(ctx, d.Ipaddr, s.cfg.ProbeTimeout)
			}()

			if !detail.Failed {
				msg := "echo reply received"
				if !detail.Reachable {
					msg = "no reply before timeout"
				}
				if err := s.devices.SetReachability(ctx, d.ID, detail.Reachable, msg); err != nil {
					// Log and continue: one record's update failure must
					// not abort the sweep.
					zap.L().Error("failed to persist probe result",
						zap.String("ip", d.Ipaddr), zap.Error(err))
					detail.Error = err.Error()
				}
			}

			mu.Lock()
			report.Details[idx] = detail
			if detail.Reachable {
				report.Reachable++
			} else {
				report.Unreachable++
			}
			mu.Unlock()
		}(i, dev)
	}
	wg.Wait()

	zap.L().Info("bulk probe finished",
		zap.Int("total", report.TotalChecked),
		zap.Int("reachable", report.Reachable),
		zap.Int("unreachable", report.Unreachable))
	return report, nil
}

// SnmpProbeModel reads sysDescr.0 over SNMP and stores the first line as
// the device model. Devices without a community string are skipped.
func (s *Service) SnmpProbeModel(ctx context.Context, deviceID int64) Result {
	dev, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return failure("registry error: %v", err)
	}
	if dev.SnmpCommunity == "" {
		return failure("snmp community not configured")
	}

	port := uint16(dev.SnmpPort)
	if port == 0 {
		port = 161
	}
	params := &gosnmp.GoSNMP{
		Target:    dev.Ipaddr,
		Port:      port,
		Community: dev.SnmpCommunity,
		Version:   gosnmp.Version2c,
		Timeout:   2 * time.Second,
		Retries:   1,
	}

	if err := params.Connect(); err != nil {
		return failure("snmp connect failed: %v", err)
	}
	defer params.Conn.Close()

	result, err := params.Get([]string{".1.3.6.1.2.1.1.1.0"}) // sysDescr.0
	if err != nil || result == nil || len(result.Variables) == 0 {
		if err != nil {
			return failure("snmp get failed: %v", err)
		}
		return failure("empty snmp result")
	}

	var descr string
	v := result.Variables[0]
	switch v.Type {
	case gosnmp.OctetString:
		if b, ok := v.Value.([]byte); ok {
			descr = string(b)
		}
	default:
		descr = fmt.Sprintf("%v", v.Value)
	}
	if idx := strings.IndexAny(descr, "\r\n"); idx >= 0 {
		descr = descr[:idx]
	}
	if descr == "" {
		return failure("empty sysDescr")
	}
	if len(descr) > 200 {
		descr = descr[:200]
	}

	if err := s.devices.SetModel(ctx, deviceID, descr); err != nil {
		return failure("model update failed: %v", err)
	}
	return success("model: %s", descr)
}
