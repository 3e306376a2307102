// internal/controller/controller_test.go
package controller

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tamzrod/servo-bridge/internal/config"
	"github.com/tamzrod/servo-bridge/internal/health"
	"github.com/tamzrod/servo-bridge/internal/homing"
)

// ---- fakes ----

type writeOp struct {
	addr  uint16
	value uint16
}

type dualOp struct {
	addr  uint16
	value int32
}

type fakeDrive struct {
	regs       map[uint16]uint16
	failReads  bool
	failWrites bool

	writes []writeOp
	duals  []dualOp
}

func newFakeDrive() *fakeDrive {
	return &fakeDrive{regs: map[uint16]uint16{}}
}

func (f *fakeDrive) ReadRegisters(addr, qty uint16) ([]uint16, error) {
	if f.failReads {
		return nil, errors.New("fake: read failed")
	}
	out := make([]uint16, qty)
	for i := range out {
		out[i] = f.regs[addr+uint16(i)]
	}
	return out, nil
}

func (f *fakeDrive) WriteRegister(addr, value uint16) error {
	if f.failWrites {
		return errors.New("fake: write failed")
	}
	f.writes = append(f.writes, writeOp{addr, value})
	return nil
}

func (f *fakeDrive) WriteDualRegister(addr uint16, value int32) error {
	if f.failWrites {
		return errors.New("fake: write failed")
	}
	f.duals = append(f.duals, dualOp{addr, value})
	return nil
}

func (f *fakeDrive) Close() error { return nil }

func (f *fakeDrive) countWrites(addr, value uint16) int {
	n := 0
	for _, w := range f.writes {
		if w.addr == addr && w.value == value {
			n++
		}
	}
	return n
}

type fakeStore struct {
	limit    int32
	hasLimit bool
	saved    []int32
	saveErr  error
}

func (f *fakeStore) SaveLimit(v int32) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, v)
	f.limit, f.hasLimit = v, true
	return nil
}

func (f *fakeStore) LoadLimit() (int32, bool, error) {
	return f.limit, f.hasLimit, nil
}

type fakeBroadcaster struct {
	payloads []string
}

func (f *fakeBroadcaster) Broadcast(p []byte) {
	f.payloads = append(f.payloads, string(p))
}

func (f *fakeBroadcaster) contains(sub string) bool {
	for _, p := range f.payloads {
		if strings.Contains(p, sub) {
			return true
		}
	}
	return false
}

// ---- harness ----

type harness struct {
	ctl   *Controller
	drv   *fakeDrive
	store *fakeStore
	bcast *fakeBroadcaster
	regs  config.RegisterMap
	now   time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := config.Config{Serial: config.SerialConfig{Device: "fake"}}
	config.Normalize(&cfg)

	h := &harness{
		drv:   newFakeDrive(),
		store: &fakeStore{},
		bcast: &fakeBroadcaster{},
		regs:  cfg.Registers,
		now:   time.Unix(1000, 0),
	}
	h.ctl = New(cfg, h.drv, h.store, h.bcast)
	return h
}

func (h *harness) tick() {
	h.now = h.now.Add(10 * time.Millisecond)
	h.ctl.Tick(h.now)
}

// tickLater advances past the probe interval before ticking.
func (h *harness) tickLater() {
	h.now = h.now.Add(3 * time.Second)
	h.ctl.Tick(h.now)
}

// up brings the link up: the first tick probes, applies the drive
// configuration and reads telemetry.
func (h *harness) up(t *testing.T) {
	t.Helper()
	h.drv.regs[h.regs.ServoStatus] = uint16(StatusReady)
	h.tickLater()
	if h.ctl.LinkState() != health.LinkOk {
		t.Fatalf("link did not come up, state=%v", h.ctl.LinkState())
	}
	h.drv.writes = nil
	h.drv.duals = nil
}

// ---- tests ----

func TestStartup_AppliesDriveConfig(t *testing.T) {
	h := newHarness(t)
	h.drv.regs[h.regs.ServoStatus] = uint16(StatusReady)
	h.tickLater()

	if n := h.drv.countWrites(h.regs.ServoOn, 0); n != 1 {
		t.Fatalf("expected one disable during startup config, got %d", n)
	}
	if n := h.drv.countWrites(h.regs.ControlMode, 2); n != 1 {
		t.Fatalf("expected torque mode write, got %d", n)
	}
	// No calibration yet: limits stay off.
	if n := h.drv.countWrites(h.regs.SoftLimitEnable, 0); n != 1 {
		t.Fatalf("expected soft limit disable, got %d", n)
	}
	if len(h.drv.duals) != 0 {
		t.Fatalf("no limit should be written without calibration")
	}
}

func TestEnable_IssuedOncePerAttempt(t *testing.T) {
	h := newHarness(t)
	h.up(t)

	h.ctl.Submit(Command{Kind: CmdEnable})
	h.tick()

	if n := h.drv.countWrites(h.regs.ServoOn, 1); n != 1 {
		t.Fatalf("expected exactly one enable write, got %d", n)
	}

	// Drive still Ready (not yet Running): the latch must suppress
	// duplicate enables.
	h.tick()
	h.tick()
	if n := h.drv.countWrites(h.regs.ServoOn, 1); n != 1 {
		t.Fatalf("duplicate enable writes: %d", n)
	}

	// Drive reaches Running: observed flips, torque writes begin.
	h.ctl.Submit(Command{Kind: CmdSetTorque, Value: 500})
	h.drv.regs[h.regs.ServoStatus] = uint16(StatusRunning)
	h.tick()

	if !h.ctl.observed {
		t.Fatalf("observed must follow DriveStatus==Running")
	}
	if n := h.drv.countWrites(h.regs.TargetTorque, 500); n != 1 {
		t.Fatalf("expected torque write after Running, got %d", n)
	}
}

func TestTorque_Clamped(t *testing.T) {
	h := newHarness(t)
	h.up(t)
	h.drv.regs[h.regs.ServoStatus] = uint16(StatusRunning)
	h.ctl.desired = true

	h.ctl.Submit(Command{Kind: CmdSetTorque, Value: 5000})
	h.tick()
	if n := h.drv.countWrites(h.regs.TargetTorque, 1000); n != 1 {
		t.Fatalf("expected torque clamped to 1000, writes=%v", h.drv.writes)
	}

	h.ctl.Submit(Command{Kind: CmdSetTorque, Value: -50})
	h.tick()
	if n := h.drv.countWrites(h.regs.TargetTorque, 0); n == 0 {
		t.Fatalf("expected negative torque clamped to 0, writes=%v", h.drv.writes)
	}
}

func TestDisable_ZeroesTorque(t *testing.T) {
	h := newHarness(t)
	h.up(t)
	h.drv.regs[h.regs.ServoStatus] = uint16(StatusRunning)
	h.ctl.Submit(Command{Kind: CmdEnable})
	h.ctl.Submit(Command{Kind: CmdSetTorque, Value: 300})
	h.tick()

	h.ctl.Submit(Command{Kind: CmdDisable})
	h.tick()

	if n := h.drv.countWrites(h.regs.ServoOn, 0); n == 0 {
		t.Fatalf("expected disable write")
	}
	if h.ctl.torque != 0 {
		t.Fatalf("torque must be zeroed on disable, got %d", h.ctl.torque)
	}
}

func TestLatch_ReconciledWhenDriveReachesStateAlone(t *testing.T) {
	h := newHarness(t)
	h.up(t)

	// Drive is Running without us having issued anything this attempt.
	h.drv.regs[h.regs.ServoStatus] = uint16(StatusRunning)
	h.ctl.desired = true
	h.tick()

	if !h.ctl.latch {
		t.Fatalf("latch must reconcile to set when desired==observed==true")
	}
	if n := h.drv.countWrites(h.regs.ServoOn, 1); n != 0 {
		t.Fatalf("no enable write expected, got %d", n)
	}
}

func TestTelemetryFailures_ThresholdForcesSafeState(t *testing.T) {
	h := newHarness(t)
	h.up(t)
	h.drv.regs[h.regs.ServoStatus] = uint16(StatusRunning)
	h.ctl.Submit(Command{Kind: CmdEnable})
	h.ctl.Submit(Command{Kind: CmdSetTorque, Value: 200})
	h.tick()

	h.drv.failReads = true

	// Four failures: link degraded but still usable, actuation not yet
	// suspended.
	for i := 0; i < 4; i++ {
		h.tick()
	}
	if h.ctl.LinkState() != health.LinkDegraded {
		t.Fatalf("expected degraded after 4 failures, got %v", h.ctl.LinkState())
	}
	if !h.ctl.desired {
		t.Fatalf("desired must survive below the threshold")
	}

	// Fifth failure crosses the threshold.
	h.tick()
	if h.ctl.LinkState() != health.LinkFailed {
		t.Fatalf("expected failed after 5 failures, got %v", h.ctl.LinkState())
	}

	// The safe posture is enforced on the next health pass.
	h.tick()
	if h.ctl.desired || h.ctl.observed {
		t.Fatalf("desired/observed must be forced false on link failure")
	}
	if h.ctl.torque != 0 {
		t.Fatalf("torque must be forced to 0, got %d", h.ctl.torque)
	}
	if h.ctl.status != StatusNotReady {
		t.Fatalf("status must be forced NotReady, got %v", h.ctl.status)
	}
}

func TestWriteFailure_FailsSafeImmediately(t *testing.T) {
	h := newHarness(t)
	h.up(t)
	h.drv.regs[h.regs.ServoStatus] = uint16(StatusRunning)
	h.ctl.desired = true
	h.ctl.torque = 300
	h.tick()

	h.drv.failWrites = true
	h.tick() // torque write fails

	if h.ctl.LinkState() != health.LinkFailed {
		t.Fatalf("write failure must fail the link immediately, got %v", h.ctl.LinkState())
	}
	if h.ctl.desired || h.ctl.observed || h.ctl.torque != 0 {
		t.Fatalf("write failure must clear enable state immediately")
	}
}

func TestReconnect_ReappliesConfigWithStoredLimit(t *testing.T) {
	h := newHarness(t)
	h.store.limit, h.store.hasLimit = -48213, true

	// Rebuild the controller so it loads the persisted limit.
	cfg := config.Config{Serial: config.SerialConfig{Device: "fake"}}
	config.Normalize(&cfg)
	h.ctl = New(cfg, h.drv, h.store, h.bcast)

	h.drv.regs[h.regs.ServoStatus] = uint16(StatusReady)
	h.tickLater()

	if len(h.drv.duals) != 1 || h.drv.duals[0].value != -48213 {
		t.Fatalf("expected stored limit re-applied, duals=%v", h.drv.duals)
	}
	if n := h.drv.countWrites(h.regs.SoftLimitEnable, 1); n != 1 {
		t.Fatalf("expected soft limit enabled, writes=%v", h.drv.writes)
	}

	// Outage and recovery: configuration is re-applied idempotently.
	h.drv.failReads = true
	for i := 0; i < 6; i++ {
		h.tick()
	}
	if h.ctl.LinkState() != health.LinkFailed {
		t.Fatalf("expected failed link, got %v", h.ctl.LinkState())
	}

	h.drv.failReads = false
	h.drv.writes = nil
	h.drv.duals = nil
	h.tickLater() // probe fires and succeeds

	if h.ctl.LinkState() != health.LinkOk {
		t.Fatalf("expected recovery, got %v", h.ctl.LinkState())
	}
	if len(h.drv.duals) != 1 || h.drv.duals[0].value != -48213 {
		t.Fatalf("reconnect must rewrite the limit, duals=%v", h.drv.duals)
	}
}

func TestHoming_RejectedWhileEnabled(t *testing.T) {
	h := newHarness(t)
	h.up(t)
	h.drv.regs[h.regs.ServoStatus] = uint16(StatusRunning)
	h.tick() // observed becomes true

	var reply []byte
	h.ctl.Submit(Command{Kind: CmdStartHoming, Reply: func(p []byte) { reply = p }})
	h.tick()

	if reply == nil || !strings.Contains(string(reply), `"failed"`) {
		t.Fatalf("expected synchronous rejection, got %s", reply)
	}
	if h.ctl.homer.Active() {
		t.Fatalf("rejected start must not change homing state")
	}
}

func TestHoming_FullSequence(t *testing.T) {
	h := newHarness(t)
	h.up(t)

	h.ctl.Submit(Command{Kind: CmdStartHoming})
	h.tick()

	// Start sequence: limits off, speed mode, slow speed, enable.
	want := []writeOp{
		{h.regs.SoftLimitEnable, 0},
		{h.regs.ControlMode, 1},
		{h.regs.TargetSpeed, 50},
		{h.regs.ServoOn, 1},
	}
	if len(h.drv.writes) != len(want) {
		t.Fatalf("start sequence writes = %v", h.drv.writes)
	}
	for i, w := range want {
		if h.drv.writes[i] != w {
			t.Fatalf("start sequence write %d = %v, want %v", i, h.drv.writes[i], w)
		}
	}
	if h.ctl.homer.State() != homing.StateWaitForRunning {
		t.Fatalf("expected WaitForRunning, got %v", h.ctl.homer.State())
	}

	// Drive spins up.
	h.drv.regs[h.regs.ServoStatus] = uint16(StatusRunning)
	h.tick()
	if h.ctl.homer.State() != homing.StateMovingSlow {
		t.Fatalf("expected MovingSlow, got %v", h.ctl.homer.State())
	}

	// Stall at position 48213 with torque 250 (threshold 200).
	h.drv.regs[h.regs.TorqueFeedback] = 250
	h.drv.regs[h.regs.PositionFeedback] = 48213 // low word; high word zero
	h.drv.writes = nil
	h.tick()

	if h.ctl.homer.Active() {
		t.Fatalf("expected idle after finish, got %v", h.ctl.homer.State())
	}
	if len(h.drv.duals) != 1 || h.drv.duals[0] != (dualOp{h.regs.SoftLimitNeg, -48213}) {
		t.Fatalf("expected limit dual write -48213, got %v", h.drv.duals)
	}
	if n := h.drv.countWrites(h.regs.ServoOn, 0); n != 1 {
		t.Fatalf("expected disable in finish sequence, writes=%v", h.drv.writes)
	}
	if n := h.drv.countWrites(h.regs.TargetSpeed, 0); n != 1 {
		t.Fatalf("expected zeroed speed in finish sequence")
	}
	if n := h.drv.countWrites(h.regs.SoftLimitEnable, 1); n != 1 {
		t.Fatalf("expected limits re-enabled")
	}
	if len(h.store.saved) != 1 || h.store.saved[0] != -48213 {
		t.Fatalf("expected limit persisted, saved=%v", h.store.saved)
	}
	if !h.bcast.contains(`"finished"`) {
		t.Fatalf("expected finished notification, payloads=%v", h.bcast.payloads)
	}
}

func TestHoming_StartTimeoutRollsBack(t *testing.T) {
	h := newHarness(t)
	h.up(t)

	h.ctl.Submit(Command{Kind: CmdStartHoming})
	h.tick()
	h.drv.writes = nil

	// Drive never reaches Running.
	h.now = h.now.Add(2500 * time.Millisecond)
	h.ctl.Tick(h.now)

	if h.ctl.homer.Active() {
		t.Fatalf("expected idle after timeout")
	}
	if n := h.drv.countWrites(h.regs.ServoOn, 0); n != 1 {
		t.Fatalf("expected disable in rollback, writes=%v", h.drv.writes)
	}
	if n := h.drv.countWrites(h.regs.ControlMode, 2); n != 1 {
		t.Fatalf("expected torque mode restored, writes=%v", h.drv.writes)
	}
	if !h.bcast.contains(`"failed"`) {
		t.Fatalf("expected failure notification")
	}
}

func TestEStop_FromAnyState(t *testing.T) {
	h := newHarness(t)
	h.up(t)

	// Reach MovingSlow.
	h.ctl.Submit(Command{Kind: CmdStartHoming})
	h.tick()
	h.drv.regs[h.regs.ServoStatus] = uint16(StatusRunning)
	h.tick()
	if h.ctl.homer.State() != homing.StateMovingSlow {
		t.Fatalf("setup: expected MovingSlow, got %v", h.ctl.homer.State())
	}

	h.drv.writes = nil
	h.ctl.EStop()
	h.tick()

	if h.ctl.homer.Active() {
		t.Fatalf("e-stop must reset homing immediately")
	}
	if h.ctl.desired || h.ctl.torque != 0 {
		t.Fatalf("e-stop must clear desired/torque")
	}
	if h.drv.writes[0] != (writeOp{h.regs.ServoOn, 0}) {
		t.Fatalf("e-stop must issue an immediate disable, writes=%v", h.drv.writes)
	}
	// No Done/rollback mode restore runs: the only write before the
	// next telemetry-driven actions is the disable itself.
	if n := h.drv.countWrites(h.regs.ControlMode, 2); n != 0 {
		t.Fatalf("e-stop must skip the homing rollback, writes=%v", h.drv.writes)
	}
	if !h.bcast.contains("emergency stop") {
		t.Fatalf("expected homing failure notification, payloads=%v", h.bcast.payloads)
	}
}

func TestEStop_WhileIdleStillDisables(t *testing.T) {
	h := newHarness(t)
	h.up(t)
	h.drv.regs[h.regs.ServoStatus] = uint16(StatusRunning)
	h.ctl.Submit(Command{Kind: CmdEnable})
	h.tick()

	h.drv.writes = nil
	h.ctl.Submit(Command{Kind: CmdEStop})
	h.tick()

	if n := h.drv.countWrites(h.regs.ServoOn, 0); n == 0 {
		t.Fatalf("expected disable write, writes=%v", h.drv.writes)
	}
	if h.ctl.desired {
		t.Fatalf("desired must be cleared")
	}
}

func TestGetStatus_RepliesDirectly(t *testing.T) {
	h := newHarness(t)
	h.up(t)

	var reply []byte
	h.ctl.Submit(Command{Kind: CmdGetStatus, Reply: func(p []byte) { reply = p }})
	h.tick()

	if reply == nil || !strings.Contains(string(reply), `"type":"status"`) {
		t.Fatalf("expected status reply, got %s", reply)
	}
}

func TestHoming_LinkLossAborts(t *testing.T) {
	h := newHarness(t)
	h.up(t)

	h.ctl.Submit(Command{Kind: CmdStartHoming})
	h.tick()
	h.drv.regs[h.regs.ServoStatus] = uint16(StatusRunning)
	h.tick()

	// Kill the link hard: reads fail until the threshold trips.
	h.drv.failReads = true
	for i := 0; i < 6; i++ {
		h.tick()
	}

	if h.ctl.homer.Active() {
		t.Fatalf("homing must abort on link loss")
	}
	if !h.bcast.contains(`"failed"`) {
		t.Fatalf("expected failure notification")
	}
}
