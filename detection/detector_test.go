//nolint:paralleltest // Test file - registry and cache are package globals
package detection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	err       error
	transport string
	devices   []DeviceInfo
	delay     time.Duration
	calls     int
}

func (f *fakeDetector) Detect(_ context.Context, _ *Options) ([]DeviceInfo, error) {
	f.calls++
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.devices, f.err
}

func (f *fakeDetector) Transport() string {
	return f.transport
}

func withRegistry(t *testing.T, detectors ...Detector) {
	t.Helper()
	saved := registry
	registry = detectors
	ClearDetectionCache()
	t.Cleanup(func() {
		registry = saved
		ClearDetectionCache()
	})
}

func TestDeviceInfo_String(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		device   DeviceInfo
	}{
		{
			name:     "high confidence",
			device:   DeviceInfo{Transport: "spi", Path: "/dev/spidev0.0", Confidence: High},
			expected: "spi device at /dev/spidev0.0 (confidence: high)",
		},
		{
			name:     "low confidence",
			device:   DeviceInfo{Transport: "spi", Path: "/dev/spidev1.1", Confidence: Low},
			expected: "spi device at /dev/spidev1.1 (confidence: low)",
		},
		{
			name:     "unknown confidence",
			device:   DeviceInfo{Transport: "spi", Path: "/dev/spidev0.1", Confidence: Confidence(99)},
			expected: "spi device at /dev/spidev0.1 (confidence: unknown)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.device.String())
		})
	}
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "passive", Passive.String())
	assert.Equal(t, "safe", Safe.String())
	assert.Equal(t, "full", Full.String())
	assert.Equal(t, "mode(7)", Mode(7).String())
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	assert.Equal(t, Safe, opts.Mode)
	assert.True(t, opts.EnableCache)
	assert.Positive(t, opts.Timeout)
}

func TestDetectAll_MergesResults(t *testing.T) {
	a := &fakeDetector{transport: "spi", devices: []DeviceInfo{{Transport: "spi", Path: "/dev/spidev0.0"}}}
	b := &fakeDetector{transport: "sim", err: errors.New("probe failed")}
	withRegistry(t, a, b)

	opts := DefaultOptions()
	opts.EnableCache = false
	devices, err := DetectAll(context.Background(), &opts)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "/dev/spidev0.0", devices[0].Path)
}

func TestDetectAll_NoDevices(t *testing.T) {
	withRegistry(t, &fakeDetector{transport: "spi", err: ErrNoDevicesFound})

	opts := DefaultOptions()
	opts.EnableCache = false
	_, err := DetectAll(context.Background(), &opts)
	require.ErrorIs(t, err, ErrNoDevicesFound)
}

func TestDetectAll_ReturnsDetectorError(t *testing.T) {
	probeErr := errors.New("permission denied")
	withRegistry(t, &fakeDetector{transport: "spi", err: probeErr})

	opts := DefaultOptions()
	opts.EnableCache = false
	_, err := DetectAll(context.Background(), &opts)
	require.ErrorIs(t, err, probeErr)
}

func TestDetectAll_TransportFilter(t *testing.T) {
	withRegistry(t, &fakeDetector{transport: "spi"})

	opts := DefaultOptions()
	opts.Transports = []string{"usb"}
	_, err := DetectAll(context.Background(), &opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no detectors available")
}

func TestDetectAll_Timeout(t *testing.T) {
	withRegistry(t, &fakeDetector{transport: "spi", delay: time.Second})

	opts := DefaultOptions()
	opts.EnableCache = false
	opts.Timeout = 20 * time.Millisecond
	_, err := DetectAll(context.Background(), &opts)
	require.ErrorIs(t, err, ErrDetectionTimeout)
}

func TestDetectAll_CacheByMode(t *testing.T) {
	d := &fakeDetector{transport: "spi", devices: []DeviceInfo{
		{Transport: "spi", Path: "/dev/spidev0.0"},
		{Transport: "spi", Path: "/dev/spidev0.1"},
	}}
	withRegistry(t, d)

	opts := DefaultOptions()
	_, err := DetectAll(context.Background(), &opts)
	require.NoError(t, err)
	_, err = DetectAll(context.Background(), &opts)
	require.NoError(t, err)
	assert.Equal(t, 1, d.calls)

	opts.IgnorePaths = []string{"/dev/spidev0.1"}
	devices, err := DetectAll(context.Background(), &opts)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "/dev/spidev0.0", devices[0].Path)

	opts.Mode = Passive
	_, err = DetectAll(context.Background(), &opts)
	require.NoError(t, err)
	assert.Equal(t, 2, d.calls)
}

func TestDetectAll_ClearsCacheWhenEmpty(t *testing.T) {
	d := &fakeDetector{transport: "spi", devices: []DeviceInfo{{Transport: "spi", Path: "/dev/spidev0.0"}}}
	withRegistry(t, d)

	opts := DefaultOptions()
	_, err := DetectAll(context.Background(), &opts)
	require.NoError(t, err)

	ClearDetectionCacheForTransport("spi")
	d.devices = nil
	_, err = DetectAll(context.Background(), &opts)
	require.ErrorIs(t, err, ErrNoDevicesFound)

	_, found := getCached(cacheKey{transport: "spi", mode: Safe}, time.Minute)
	assert.False(t, found)
}

func TestIsPathIgnored(t *testing.T) {
	tests := []struct {
		name        string
		devicePath  string
		ignorePaths []string
		expected    bool
	}{
		{name: "empty ignore list", devicePath: "/dev/spidev0.0", expected: false},
		{name: "empty device path", devicePath: "", ignorePaths: []string{"/dev/spidev0.0"}, expected: false},
		{name: "exact match", devicePath: "/dev/spidev0.0", ignorePaths: []string{"/dev/spidev0.0"}, expected: true},
		{name: "case folded", devicePath: "/dev/spidev0.0", ignorePaths: []string{"/DEV/SPIDEV0.0"}, expected: true},
		{name: "unclean path", devicePath: "/dev//spidev0.0", ignorePaths: []string{"/dev/./spidev0.0"}, expected: true},
		{name: "no match", devicePath: "/dev/spidev0.1", ignorePaths: []string{"/dev/spidev0.0"}, expected: false},
		{name: "skips empty entries", devicePath: "/dev/spidev0.1", ignorePaths: []string{"", "/dev/spidev0.1"},
			expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsPathIgnored(tt.devicePath, tt.ignorePaths))
		})
	}
}
