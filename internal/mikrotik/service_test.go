package mikrotik

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-routeros/routeros/v3"
	"github.com/go-routeros/routeros/v3/proto"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jeffmoIA/netdesk/internal/device"
	"github.com/jeffmoIA/netdesk/internal/domain"
	"github.com/jeffmoIA/netdesk/internal/secrets"
)

// fakeSession scripts replies per command path and counts Close calls.
type fakeSession struct {
	replies    map[string]*routeros.Reply
	runErr     map[string]error
	closeCount int
	commands   []string
}

func (f *fakeSession) Run(args ...string) (*routeros.Reply, error) {
	path := args[0]
	f.commands = append(f.commands, strings.Join(args, " "))
	if err, ok := f.runErr[path]; ok {
		return nil, err
	}
	if r, ok := f.replies[path]; ok {
		return r, nil
	}
	return &routeros.Reply{}, nil
}

func (f *fakeSession) Close() error {
	f.closeCount++
	return nil
}

type fakeConnector struct {
	session *fakeSession
	err     error
}

func (f *fakeConnector) Connect(ctx context.Context, addr, username, password string) (Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

type fakeProber struct {
	reachable map[string]bool
	panicOn   string
}

func (f *fakeProber) Probe(ctx context.Context, ip string, timeout time.Duration) bool {
	if ip == f.panicOn {
		panic("prober exploded")
	}
	return f.reachable[ip]
}

func sentences(maps ...map[string]string) []*proto.Sentence {
	out := make([]*proto.Sentence, 0, len(maps))
	for _, m := range maps {
		out = append(out, &proto.Sentence{Word: "!re", Map: m})
	}
	return out
}

func newTestEnv(t *testing.T, conn Connector, prober Prober) (*Service, *device.Service) {
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
	devices := device.NewService(db, secrets.NewBox("test-secret"))
	if prober == nil {
		prober = &fakeProber{}
	}
	return NewService(devices, conn, prober, Config{}), devices
}

func registerDevice(t *testing.T, devices *device.Service, name, ip, password string) *domain.NetDevice {
	t.Helper()
	dev, err := devices.Register(context.Background(), device.RegisterInput{
		Name: name, Ipaddr: ip, Username: "admin", Password: password,
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return dev
}

func TestConnectWithoutCredentials(t *testing.T) {
	svc, devices := newTestEnv(t, &fakeConnector{}, nil)
	dev := registerDevice(t, devices, "MTK-01", "10.0.0.5", "")

	res, sess := svc.Connect(context.Background(), dev.ID)
	if res.OK || sess != nil {
		t.Fatalf("Connect = %+v, session %v; want failure, nil", res, sess)
	}
	if res.Message != "credentials not configured" {
		t.Errorf("message = %q", res.Message)
	}
}

func TestConnectDeviceNotFound(t *testing.T) {
	svc, _ := newTestEnv(t, &fakeConnector{}, nil)
	res, sess := svc.Connect(context.Background(), 99999)
	if res.OK || sess != nil {
		t.Fatalf("Connect = %+v, want failure", res)
	}
	if res.Message != "device not found" {
		t.Errorf("message = %q", res.Message)
	}
}

func TestConnectFailurePropagatedAsResult(t *testing.T) {
	conn := &fakeConnector{err: fmt.Errorf("%w: dial tcp: timeout", ErrUnreachable)}
	svc, devices := newTestEnv(t, conn, nil)
	dev := registerDevice(t, devices, "MTK-01", "10.0.0.5", "secret")

	res, sess := svc.Connect(context.Background(), dev.ID)
	if res.OK || sess != nil {
		t.Fatalf("Connect = %+v, want failure", res)
	}
	if !strings.Contains(res.Message, "could not reach device") {
		t.Errorf("message = %q, want unreachable cause", res.Message)
	}
}

func TestListQueues(t *testing.T) {
	fs := &fakeSession{replies: map[string]*routeros.Reply{
		"/queue/simple/print": {Re: sentences(
			map[string]string{".id": "*1", "name": "q1", "target": "10.9.0.2/32", "max-limit": "2048k/2048k"},
			map[string]string{".id": "*2", "name": "q2", "target": "10.9.0.3/32", "max-limit": "5120k/10240k"},
		)},
	}}
	svc, devices := newTestEnv(t, &fakeConnector{session: fs}, nil)
	dev := registerDevice(t, devices, "MTK-01", "10.0.0.5", "secret")

	res, rules := svc.ListQueues(context.Background(), dev.ID)
	if !res.OK {
		t.Fatalf("ListQueues failed: %s", res.Message)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if rules[1].Name != "q2" || rules[1].RateLimit != "5120k/10240k" {
		t.Errorf("rule[1] = %+v", rules[1])
	}
	if fs.closeCount != 1 {
		t.Errorf("session closed %d times, want exactly 1", fs.closeCount)
	}
}

func TestListQueuesCloseOnReadFailure(t *testing.T) {
	fs := &fakeSession{runErr: map[string]error{
		"/queue/simple/print": errors.New("interrupted"),
	}}
	svc, devices := newTestEnv(t, &fakeConnector{session: fs}, nil)
	dev := registerDevice(t, devices, "MTK-01", "10.0.0.5", "secret")

	res, rules := svc.ListQueues(context.Background(), dev.ID)
	if res.OK || rules != nil {
		t.Fatalf("ListQueues = %+v, want failure", res)
	}
	if fs.closeCount != 1 {
		t.Errorf("session closed %d times, want exactly 1", fs.closeCount)
	}
}

func TestSetQueueRate(t *testing.T) {
	fs := &fakeSession{replies: map[string]*routeros.Reply{
		"/queue/simple/print": {Re: sentences(
			map[string]string{".id": "*A", "name": "customer-a"},
		)},
	}}
	svc, devices := newTestEnv(t, &fakeConnector{session: fs}, nil)
	dev := registerDevice(t, devices, "MTK-01", "10.0.0.5", "secret")

	res := svc.SetQueueRate(context.Background(), dev.ID, "customer-a", 10, 5)
	if !res.OK {
		t.Fatalf("SetQueueRate failed: %s", res.Message)
	}

	want := "/queue/simple/set =.id=*A =max-limit=5120k/10240k"
	found := false
	for _, cmd := range fs.commands {
		if cmd == want {
			found = true
		}
	}
	if !found {
		t.Errorf("set command not issued; commands = %v", fs.commands)
	}
	if fs.closeCount != 1 {
		t.Errorf("session closed %d times, want exactly 1", fs.closeCount)
	}
}

func TestSetQueueRateMirrorsUpload(t *testing.T) {
	fs := &fakeSession{replies: map[string]*routeros.Reply{
		"/queue/simple/print": {Re: sentences(map[string]string{".id": "*A", "name": "q"})},
	}}
	svc, devices := newTestEnv(t, &fakeConnector{session: fs}, nil)
	dev := registerDevice(t, devices, "MTK-01", "10.0.0.5", "secret")

	if res := svc.SetQueueRate(context.Background(), dev.ID, "q", 10, 0); !res.OK {
		t.Fatalf("SetQueueRate failed: %s", res.Message)
	}
	want := "/queue/simple/set =.id=*A =max-limit=10240k/10240k"
	if fs.commands[len(fs.commands)-1] != want {
		t.Errorf("last command = %q, want %q", fs.commands[len(fs.commands)-1], want)
	}
}

func TestSetQueueRateIdempotent(t *testing.T) {
	fs := &fakeSession{replies: map[string]*routeros.Reply{
		"/queue/simple/print": {Re: sentences(map[string]string{".id": "*A", "name": "q1"})},
	}}
	svc, devices := newTestEnv(t, &fakeConnector{session: fs}, nil)
	dev := registerDevice(t, devices, "MTK-01", "10.0.0.5", "secret")

	first := svc.SetQueueRate(context.Background(), dev.ID, "q1", 10, 10)
	second := svc.SetQueueRate(context.Background(), dev.ID, "q1", 10, 10)
	if !first.OK || !second.OK {
		t.Fatalf("results: %+v / %+v", first, second)
	}

	// Both invocations must push the identical max-limit.
	var sets []string
	for _, cmd := range fs.commands {
		if strings.HasPrefix(cmd, "/queue/simple/set") {
			sets = append(sets, cmd)
		}
	}
	if len(sets) != 2 || sets[0] != sets[1] {
		t.Errorf("set commands = %v", sets)
	}
	if fs.closeCount != 2 {
		t.Errorf("session closed %d times across two calls, want 2", fs.closeCount)
	}
}

func TestSetQueueRateUnknownQueue(t *testing.T) {
	fs := &fakeSession{replies: map[string]*routeros.Reply{
		"/queue/simple/print": {Re: sentences(map[string]string{".id": "*A", "name": "other"})},
	}}
	svc, devices := newTestEnv(t, &fakeConnector{session: fs}, nil)
	dev := registerDevice(t, devices, "MTK-01", "10.0.0.5", "secret")

	res := svc.SetQueueRate(context.Background(), dev.ID, "missing", 10, 10)
	if res.OK {
		t.Fatal("SetQueueRate succeeded for unknown queue")
	}
	if !strings.Contains(res.Message, "not found") {
		t.Errorf("message = %q", res.Message)
	}
	if fs.closeCount != 1 {
		t.Errorf("session closed %d times, want exactly 1", fs.closeCount)
	}
}

func TestFetchFullExport(t *testing.T) {
	fs := &fakeSession{replies: map[string]*routeros.Reply{
		"/export": {Re: sentences(
			map[string]string{"line": "/interface bridge"},
			map[string]string{"line": "add name=bridge1"},
		)},
	}}
	svc, devices := newTestEnv(t, &fakeConnector{session: fs}, nil)
	dev := registerDevice(t, devices, "MTK-01", "10.0.0.5", "secret")

	res, export := svc.FetchFullExport(context.Background(), dev.ID)
	if !res.OK {
		t.Fatalf("FetchFullExport failed: %s", res.Message)
	}
	if export != "/interface bridge\nadd name=bridge1" {
		t.Errorf("export = %q", export)
	}
	if fs.closeCount != 1 {
		t.Errorf("session closed %d times, want exactly 1", fs.closeCount)
	}

	// The blob must be persisted as the backup copy.
	stored, err := devices.GetByID(context.Background(), dev.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.LastExport != export {
		t.Errorf("LastExport = %q", stored.LastExport)
	}
}

func TestFetchFullExportEmpty(t *testing.T) {
	fs := &fakeSession{replies: map[string]*routeros.Reply{"/export": {}}}
	svc, devices := newTestEnv(t, &fakeConnector{session: fs}, nil)
	dev := registerDevice(t, devices, "MTK-01", "10.0.0.5", "secret")

	res, export := svc.FetchFullExport(context.Background(), dev.ID)
	if res.OK || export != "" {
		t.Fatalf("FetchFullExport = %+v, %q; want sentinel failure", res, export)
	}
	if res.Message != "no export available" {
		t.Errorf("message = %q", res.Message)
	}
	if fs.closeCount != 1 {
		t.Errorf("session closed %d times, want exactly 1", fs.closeCount)
	}
}

func TestBulkProbePartialFailure(t *testing.T) {
	prober := &fakeProber{
		reachable: map[string]bool{"10.0.0.1": true, "10.0.0.3": false},
		panicOn:   "10.0.0.2",
	}
	svc, devices := newTestEnv(t, &fakeConnector{}, prober)

	registerDevice(t, devices, "MTK-01", "10.0.0.1", "")
	registerDevice(t, devices, "MTK-02", "10.0.0.2", "")
	registerDevice(t, devices, "MTK-03", "10.0.0.3", "")

	report, err := svc.BulkProbe(context.Background())
	if err != nil {
		t.Fatalf("BulkProbe: %v", err)
	}
	if report.TotalChecked != 3 {
		t.Fatalf("TotalChecked = %d, want 3", report.TotalChecked)
	}

	byIP := map[string]ProbeDetail{}
	for _, d := range report.Details {
		byIP[d.Ip] = d
	}
	if !byIP["10.0.0.1"].Reachable {
		t.Error("device 1 not marked reachable")
	}
	if !byIP["10.0.0.2"].Failed || byIP["10.0.0.2"].Error == "" {
		t.Errorf("device 2 missing failure indicator: %+v", byIP["10.0.0.2"])
	}
	if byIP["10.0.0.3"].Reachable || byIP["10.0.0.3"].Failed {
		t.Errorf("device 3 = %+v, want clean unreachable", byIP["10.0.0.3"])
	}

	// Unreachable active device transitioned to error state.
	dev3, _ := devices.FindByIp(context.Background(), "10.0.0.3")
	if dev3.Status != domain.DeviceStatusError {
		t.Errorf("device 3 status = %q, want error", dev3.Status)
	}
}

func TestConnectorTimeoutBounded(t *testing.T) {
	if testing.Short() {
		t.Skip("network timing test")
	}
	// 192.0.2.0/24 is TEST-NET-1, guaranteed unroutable.
	conn := NewAPIConnector(2 * time.Second)
	start := time.Now()
	_, err := conn.Connect(context.Background(), "192.0.2.1:8728", "admin", "x")
	elapsed := time.Since(start)

	if err == nil {
		t.Fatal("Connect to unroutable address succeeded")
	}
	if elapsed > 4*time.Second {
		t.Errorf("Connect took %s, want bounded by ~2s timeout", elapsed)
	}
}
