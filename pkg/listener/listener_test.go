package listener

import (
	"context"
	"testing"
	"time"

	"github.com/dialogiot/foshgw/pkg/ble"
	"github.com/dialogiot/foshgw/pkg/logger"
	"github.com/dialogiot/foshgw/pkg/queue"
	"github.com/dialogiot/foshgw/pkg/sensor"
)

// fakeDevice is a minimal ble.Device used to drive the Listener lifecycle
// without real hardware.
type fakeDevice struct {
	connectErr   error
	getConfigErr error
	subscribeErr error
	startErr     error

	config    ble.DeviceConfig
	handlers  map[string]ble.NotificationHandler
	disconnects int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{config: ble.DesiredConfig(), handlers: make(map[string]ble.NotificationHandler)}
}

func (f *fakeDevice) Connect(ctx context.Context, address sensor.Address) error { return f.connectErr }
func (f *fakeDevice) GetConfig() (ble.DeviceConfig, error)                      { return f.config, f.getConfigErr }
func (f *fakeDevice) SetConfig(cfg ble.DeviceConfig, persist bool) error {
	f.config = cfg
	return nil
}
func (f *fakeDevice) Subscribe(name string, handler ble.NotificationHandler) error {
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.handlers[name] = handler
	return nil
}
func (f *fakeDevice) Start() error { return f.startErr }
func (f *fakeDevice) Disconnect() error {
	f.disconnects++
	return nil
}

type fakeFactory struct{ device *fakeDevice }

func (f *fakeFactory) NewDevice() ble.Device { return f.device }

func testLogger() *logger.Logger { return logger.New(logger.Config{Level: "debug", Format: "text"}) }

func TestListenerRunsAndDecodesNotifications(t *testing.T) {
	device := newFakeDevice()
	factory := &fakeFactory{device: device}
	q := queue.New(queue.DefaultCapacity)

	l := New("80:EA:CA:00:00:01", factory, q, DefaultConfig(), testLogger())
	l.Start(context.Background())

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if l.IsLive() && device.handlers["accelerometer"] != nil {
			break
		}
		time.Sleep(time.Millisecond)
	}
	if !l.IsLive() {
		t.Fatal("listener never became live")
	}

	handler := device.handlers["accelerometer"]
	if handler == nil {
		t.Fatal("accelerometer handler was never subscribed")
	}

	// Valid accelerometer frame: 3-byte shared header, x=1.0g, y=0, z=-2.0g.
	frame := []byte{0, 0, 0, 0x00, 0x08, 0x00, 0x00, 0x00, 0xF0}
	handler(0, frame)

	evt, ok := q.TryReceive(500 * time.Millisecond)
	if !ok {
		t.Fatal("expected a decoded sensor event on the queue")
	}
	if evt.Kind != sensor.Accelerometer {
		t.Fatalf("expected accelerometer event, got %v", evt.Kind)
	}

	l.Terminate(time.Second)
	if l.IsLive() {
		t.Fatal("listener should not be live after Terminate")
	}
	if device.disconnects != 1 {
		t.Fatalf("expected exactly one Disconnect call, got %d", device.disconnects)
	}
}

func TestListenerTerminatesOnConnectFailure(t *testing.T) {
	device := newFakeDevice()
	device.connectErr = errConnectRefused
	factory := &fakeFactory{device: device}
	q := queue.New(queue.DefaultCapacity)

	l := New("80:EA:CA:00:00:02", factory, q, DefaultConfig(), testLogger())
	l.Start(context.Background())

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && l.IsLive() {
		time.Sleep(time.Millisecond)
	}
	if l.IsLive() {
		t.Fatal("listener should have terminated after a connect failure")
	}
}

func TestListenerWatchdogTimeout(t *testing.T) {
	device := newFakeDevice()
	factory := &fakeFactory{device: device}
	q := queue.New(queue.DefaultCapacity)

	cfg := Config{WatchdogTimeout: 20 * time.Millisecond, PersistDeviceEEPROM: true}
	l := New("80:EA:CA:00:00:03", factory, q, cfg, testLogger())
	l.Start(context.Background())

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) && l.IsLive() {
		time.Sleep(5 * time.Millisecond)
	}
	if l.IsLive() {
		t.Fatal("listener should have terminated on watchdog timeout with no readings")
	}
}

var errConnectRefused = &connectError{"connection refused"}

type connectError struct{ msg string }

func (e *connectError) Error() string { return e.msg }
