// internal/writer/device_status_writer_test.go
package writer

import (
	"errors"
	"testing"

	"github.com/tamzrod/lnictl/internal/status"
)

func newTestStatusWriter(t *testing.T, cli *fakeEndpointClient) (*deviceStatusWriter, Plan) {
	t.Helper()

	plan := Plan{
		PortID: "p1",
		Status: &StatusPlan{
			Endpoint:   "status-endpoint",
			UnitID:     1,
			BaseSlot:   2,
			DeviceName: "HFI-01",
		},
	}

	clients := map[string]endpointClient{
		"status-endpoint": cli,
	}

	sw, enabled := NewDeviceStatusWriter(plan, clients)
	if !enabled {
		t.Fatalf("status writer should be enabled")
	}
	return sw, plan
}

func TestDeviceNameWrittenOnFullAssertOnly(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw, plan := newTestStatusWriter(t, cli)

	// ---- first write: FULL ASSERT ----
	first := status.Snapshot{
		Health:    status.HealthLinking,
		LinkState: 4,
	}

	if err := sw.WriteStatus(first); err != nil {
		t.Fatalf("initial full assert failed: %v", err)
	}

	// Expect full block
	if len(cli.lastRegs) != status.SlotsPerPort {
		t.Fatalf(
			"expected full block write (%d regs), got %d",
			status.SlotsPerPort,
			len(cli.lastRegs),
		)
	}
	if cli.lastRegsAddr != plan.Status.BaseSlot*status.SlotsPerPort {
		t.Fatalf("unexpected block addr %d", cli.lastRegsAddr)
	}

	// Verify device name encoding EXACTLY
	expectedNameRegs := status.EncodeName(plan.Status.DeviceName)

	for i := 0; i < status.SlotDeviceNameSlots; i++ {
		slot := status.SlotDeviceNameStart + i
		if cli.lastRegs[slot] != expectedNameRegs[i] {
			t.Fatalf(
				"device name slot %d mismatch: got=%d want=%d",
				slot,
				cli.lastRegs[slot],
				expectedNameRegs[i],
			)
		}
	}

	// ---- second write: INCREMENTAL ONLY ----
	second := first
	second.Health = status.HealthOK

	if err := sw.WriteStatus(second); err != nil {
		t.Fatalf("incremental write failed: %v", err)
	}

	// Incremental update must NOT re-write full block
	if len(cli.lastRegs) != 1 {
		t.Fatalf("expected single-slot write, got %d regs", len(cli.lastRegs))
	}
	if cli.lastRegsAddr != plan.Status.BaseSlot*status.SlotsPerPort+status.SlotHealthCode {
		t.Fatalf("unexpected incremental addr %d", cli.lastRegsAddr)
	}
}

func TestUnchangedSnapshotWritesNothing(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw, _ := newTestStatusWriter(t, cli)

	s := status.Snapshot{Health: status.HealthOK, Speed: 250}
	if err := sw.WriteStatus(s); err != nil {
		t.Fatalf("full assert failed: %v", err)
	}
	if err := sw.WriteStatus(s); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	if len(cli.writes) != 1 {
		t.Fatalf("expected only the full assert, got %d writes", len(cli.writes))
	}
}

func TestSecondsInErrorResetOnRecovery(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw, plan := newTestStatusWriter(t, cli)

	// simulate ERROR
	errSnap := status.Snapshot{
		Health:         status.HealthError,
		LastErrorCode:  63,
		SecondsInError: 3,
	}

	if err := sw.WriteStatus(errSnap); err != nil {
		t.Fatalf("error snapshot write failed: %v", err)
	}

	// simulate recovery of the counter only
	rec := errSnap
	rec.SecondsInError = 0

	if err := sw.WriteStatus(rec); err != nil {
		t.Fatalf("recovery snapshot write failed: %v", err)
	}

	expectedAddr := plan.Status.BaseSlot*status.SlotsPerPort + status.SlotSecondsInError

	if cli.lastRegsAddr != expectedAddr {
		t.Fatalf("unexpected write addr: got=%d want=%d", cli.lastRegsAddr, expectedAddr)
	}

	if len(cli.lastRegs) != 1 {
		t.Fatalf("expected 1 register write, got %d", len(cli.lastRegs))
	}

	if cli.lastRegs[0] != 0 {
		t.Fatalf("seconds_in_error not reset: got=%d want=0", cli.lastRegs[0])
	}
}

func TestFailureForcesFullReassert(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw, _ := newTestStatusWriter(t, cli)

	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthOK}); err != nil {
		t.Fatalf("full assert failed: %v", err)
	}

	cli.fail = errors.New("link reset")
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthError}); err == nil {
		t.Fatalf("expected write error")
	}

	cli.fail = nil
	if err := sw.WriteStatus(status.Snapshot{Health: status.HealthError}); err != nil {
		t.Fatalf("reassert failed: %v", err)
	}
	if len(cli.lastRegs) != status.SlotsPerPort {
		t.Fatalf("expected full block after failure, got %d regs", len(cli.lastRegs))
	}
}

func TestMissingClient(t *testing.T) {
	plan := Plan{Status: &StatusPlan{Endpoint: "nowhere"}}
	sw, _ := NewDeviceStatusWriter(plan, map[string]endpointClient{})

	if err := sw.WriteStatus(status.Snapshot{}); err == nil {
		t.Fatalf("expected missing client error")
	}
}
