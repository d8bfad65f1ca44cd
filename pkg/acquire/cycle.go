package acquire

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/itohio/hydromon/pkg/adc"
	"github.com/itohio/hydromon/pkg/frame"
	"github.com/itohio/hydromon/pkg/sensor"
	"github.com/itohio/hydromon/pkg/sonar"
	"go.uber.org/multierr"
)

// ErrNoSensor is reported for a reading whose sensor is not configured.
var ErrNoSensor = errors.New("acquire: sensor not configured")

// Phase is the state of the acquisition state machine.
type Phase int

const (
	// PhaseIdle is the state before the first cycle and after Run returns.
	PhaseIdle Phase = iota
	// PhaseAcquisition reads every sensor once per period.
	PhaseAcquisition
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAcquisition:
		return "acquisition"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Sensors are the devices read every cycle. A nil entry makes the matching
// reading fail with ErrNoSensor.
type Sensors struct {
	Thermistor *adc.Channel
	TDS        *adc.Channel
	PH         *adc.Channel
	Sonar      sonar.Device
}

// Models holds the calibration of every sensor model.
type Models struct {
	Thermistor sensor.ThermistorParams
	TDS        sensor.TDSParams
	PH         sensor.PHParams
	Level      sensor.WaterLevelParams
}

// Report is the outcome of one cycle. Err combines every per-sensor error
// and is nil when all readings are valid.
type Report struct {
	Set sensor.Set
	Err error
}

// Stats describes the acquisition state.
type Stats struct {
	Phase      string            `json:"phase"`
	Cycles     uint64            `json:"cycles"`
	LastCycle  time.Time         `json:"last_cycle"`
	Failures   map[string]uint64 `json:"failures"`
	LastErrors map[string]string `json:"last_errors"`
	Sonar      frame.Stats       `json:"sonar"`
}

// Cycle reads all sensors in a fixed order (temperature, TDS, pH, water
// level) and publishes the resulting set.
//
// The set being filled is private to the cycle. Readers only ever see the
// last completed set.
type Cycle struct {
	sensors  Sensors
	models   [sensor.NumKinds]sensor.Model
	period   time.Duration
	logEvery int
	now      func() time.Time

	runMu   sync.Mutex
	working sensor.Set
	lastErr [sensor.NumKinds]string

	mu         sync.RWMutex
	published  sensor.Set
	phase      Phase
	cycles     uint64
	failures   [sensor.NumKinds]uint64
	lastErrors [sensor.NumKinds]string

	callbacks []func(sensor.Set)
	cbMu      sync.RWMutex
}

// New creates a cycle. A period of 0 or less selects 100 ms; logEvery of 0
// disables the periodic summary line.
func New(s Sensors, m Models, period time.Duration, logEvery int) *Cycle {
	if period <= 0 {
		period = 100 * time.Millisecond
	}

	c := &Cycle{
		sensors:   s,
		period:    period,
		logEvery:  logEvery,
		now:       time.Now,
		working:   sensor.NewSet(),
		published: sensor.NewSet(),
	}
	c.models[sensor.Temperature] = sensor.Model{Kind: sensor.Temperature, Thermistor: m.Thermistor}
	c.models[sensor.TotalDissolvedSolids] = sensor.Model{Kind: sensor.TotalDissolvedSolids, TDS: m.TDS}
	c.models[sensor.Acidity] = sensor.Model{Kind: sensor.Acidity, PH: m.PH}
	c.models[sensor.WaterLevel] = sensor.Model{Kind: sensor.WaterLevel, Level: m.Level}
	return c
}

// OnUpdate registers a callback invoked with a copy of every published set.
// Callbacks run on the acquisition goroutine and must not block.
func (c *Cycle) OnUpdate(fn func(sensor.Set)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

// Snapshot returns the last published set.
func (c *Cycle) Snapshot() sensor.Set {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.published
}

// Stats returns a copy of the acquisition counters.
func (c *Cycle) Stats() Stats {
	c.mu.RLock()
	st := Stats{
		Phase:      c.phase.String(),
		Cycles:     c.cycles,
		LastCycle:  c.published.At,
		Failures:   make(map[string]uint64, sensor.NumKinds),
		LastErrors: make(map[string]string),
	}
	for _, k := range sensor.Kinds {
		st.Failures[k.String()] = c.failures[k]
		if c.lastErrors[k] != "" {
			st.LastErrors[k.String()] = c.lastErrors[k]
		}
	}
	c.mu.RUnlock()

	if c.sensors.Sonar != nil {
		st.Sonar = c.sensors.Sonar.Stats()
	}
	return st
}

// Phase returns the current state.
func (c *Cycle) Phase() Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase
}

// Run executes a cycle every period until ctx is cancelled. Sensor errors
// never stop the loop.
func (c *Cycle) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.period)
	defer ticker.Stop()
	defer c.setPhase(PhaseIdle)

	for {
		c.RunOnce()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce reads every sensor once and publishes the result.
func (c *Cycle) RunOnce() Report {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	c.setPhase(PhaseAcquisition)

	var errs [sensor.NumKinds]error
	errs[sensor.Temperature] = c.readAnalog(sensor.Temperature, c.sensors.Thermistor)
	errs[sensor.TotalDissolvedSolids] = c.readAnalog(sensor.TotalDissolvedSolids, c.sensors.TDS)
	errs[sensor.Acidity] = c.readAnalog(sensor.Acidity, c.sensors.PH)
	errs[sensor.WaterLevel] = c.readLevel()
	c.working.At = c.now()

	var combined error
	for _, k := range []sensor.Kind{sensor.Temperature, sensor.TotalDissolvedSolids, sensor.Acidity, sensor.WaterLevel} {
		if errs[k] != nil {
			combined = multierr.Append(combined, fmt.Errorf("%s: %w", k, errs[k]))
		}
		c.logTransition(k, errs[k])
	}

	c.mu.Lock()
	c.published = c.working
	c.cycles++
	for k, err := range errs {
		if err != nil {
			c.failures[k]++
			c.lastErrors[k] = err.Error()
		}
	}
	cycles := c.cycles
	set := c.published
	c.mu.Unlock()

	if c.logEvery > 0 && cycles%uint64(c.logEvery) == 0 {
		log.Printf("[acquire] %s", set)
	}

	c.notifyCallbacks(set)

	return Report{Set: set, Err: combined}
}

func (c *Cycle) readAnalog(kind sensor.Kind, ch *adc.Channel) error {
	if ch == nil {
		c.working.Fail(kind)
		return ErrNoSensor
	}

	s, err := ch.Sample()
	if err != nil {
		c.working.Fail(kind)
		return err
	}

	// The working set is passed by value: models see this cycle's
	// temperature but cannot modify the set.
	v, err := c.models[kind].Compute(s.Voltage, c.working)
	if err != nil {
		c.working.Fail(kind)
		return err
	}
	c.working.Put(kind, v)
	return nil
}

func (c *Cycle) readLevel() error {
	if c.sensors.Sonar == nil {
		c.working.Fail(sensor.WaterLevel)
		return ErrNoSensor
	}

	d, err := c.sensors.Sonar.Read()
	if err != nil {
		c.working.Fail(sensor.WaterLevel)
		return err
	}

	v, err := c.models[sensor.WaterLevel].Compute(d, c.working)
	if err != nil {
		c.working.Fail(sensor.WaterLevel)
		return err
	}
	c.working.Put(sensor.WaterLevel, v)
	return nil
}

// logTransition logs a sensor's error only when it differs from the
// previous cycle.
func (c *Cycle) logTransition(kind sensor.Kind, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	prev := c.lastErr[kind]
	c.lastErr[kind] = msg

	switch {
	case msg == prev:
	case msg == "":
		log.Printf("[acquire] %s recovered", kind)
	default:
		log.Printf("[acquire] %s failed: %s", kind, msg)
	}
}

func (c *Cycle) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

func (c *Cycle) notifyCallbacks(set sensor.Set) {
	c.cbMu.RLock()
	callbacks := make([]func(sensor.Set), len(c.callbacks))
	copy(callbacks, c.callbacks)
	c.cbMu.RUnlock()

	for _, fn := range callbacks {
		fn(set)
	}
}
