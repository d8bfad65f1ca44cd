package acquire

import (
	"testing"

	"github.com/itohio/hydromon/pkg/adc"
	"github.com/itohio/hydromon/pkg/config"
	"github.com/itohio/hydromon/pkg/sensor"
	"github.com/itohio/hydromon/pkg/sonar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDriver(t *testing.T) {
	cfg := config.Default()

	d, err := OpenDriver(cfg)
	require.NoError(t, err)
	assert.IsType(t, &adc.Mock{}, d)

	cfg.ADC.Driver = "spi"
	_, err = OpenDriver(cfg)
	assert.Error(t, err)
}

func TestNewSonar(t *testing.T) {
	cfg := config.Default()
	assert.IsType(t, &sonar.Mock{}, NewSonar(cfg, true))
	assert.IsType(t, &sonar.Serial{}, NewSonar(cfg, false))
}

func TestBuild_MockPipeline(t *testing.T) {
	cfg := config.Default()
	cfg.Mock.Sonar.FrameTime = 0

	d, err := OpenDriver(cfg)
	require.NoError(t, err)
	dev := NewSonar(cfg, true)
	require.NoError(t, dev.Connect())
	defer dev.Close()

	c, err := Build(cfg, d, dev)
	require.NoError(t, err)

	var rep Report
	for i := 0; i < cfg.ADC.Window; i++ {
		rep = c.RunOnce()
		require.NoError(t, rep.Err)
	}

	temp, ok := rep.Set.Temperature()
	require.True(t, ok)
	assert.InDelta(t, 20.2, temp, 2.0)

	level, ok := rep.Set.Get(sensor.WaterLevel)
	require.True(t, ok)
	assert.InDelta(t, 40, level, 10.5)

	ph, ok := rep.Set.Get(sensor.Acidity)
	require.True(t, ok)
	assert.InDelta(t, 6.7, ph, 0.5)
}

func TestBuild_UnknownProfile(t *testing.T) {
	cfg := config.Default()
	cfg.Sensors.PH.Profile = "missing"

	_, err := Build(cfg, adc.NewMock(nil), nil)
	assert.Error(t, err)
}
