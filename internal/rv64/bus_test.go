package rv64

import "testing"

func newTestHart(t *testing.T) (*Hart, *Bus) {
	t.Helper()
	bus := NewBus()
	bus.Map(0, 0x10000, NewMemory("ram", 0x10000))
	return NewHart(bus, WithBootPC(0x1000)), bus
}

func TestBusReadWriteRoundTrip(t *testing.T) {
	_, bus := newTestHart(t)
	if err := bus.Write64(0x1000, 0x1122334455667788); err != nil {
		t.Fatal(err)
	}
	v, err := bus.Read64(0x1000)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0x1122334455667788 {
		t.Fatalf("read64 = %#x, want 0x1122334455667788", v)
	}
}

func TestBusUnmappedAddressFaults(t *testing.T) {
	_, bus := newTestHart(t)
	_, err := bus.Read8(0xdeadbeef)
	tr, ok := asTrap(err)
	if !ok || tr.Cause != CauseLoadAccessFault {
		t.Fatalf("err = %v, want LoadAccessFault trap", err)
	}
}

func TestBusMapOverlapPanics(t *testing.T) {
	bus := NewBus()
	bus.Map(0x1000, 0x1000, NewMemory("a", 0x1000))
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on overlapping Map")
		}
	}()
	bus.Map(0x1800, 0x1000, NewMemory("b", 0x1000))
}

func TestBusReservationClearedByIntervalWrite(t *testing.T) {
	_, bus := newTestHart(t)
	bus.Reserve(0x1000)
	if err := bus.Write8(0x1000, 1); err != nil {
		t.Fatal(err)
	}
	if bus.CheckAndClearReservation(0x1000) {
		t.Fatal("reservation should have been cleared by the intervening write")
	}
}

func TestBusReservationConsumedOnce(t *testing.T) {
	_, bus := newTestHart(t)
	bus.Reserve(0x1000)
	if !bus.CheckAndClearReservation(0x1000) {
		t.Fatal("first check should succeed")
	}
	if bus.CheckAndClearReservation(0x1000) {
		t.Fatal("second check should fail: reservation already consumed")
	}
}

func TestBusReadRange(t *testing.T) {
	_, bus := newTestHart(t)
	if err := bus.LoadBytes(0x1000, []byte{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	got, err := bus.ReadRange(0x1000, 4)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = %d, want %d", i, got[i], want[i])
		}
	}
}
