package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/itohio/hydromon/pkg/acquire"
	"github.com/itohio/hydromon/pkg/config"
	"github.com/itohio/hydromon/pkg/monitor"
	"github.com/itohio/hydromon/pkg/sensor"
	"github.com/itohio/hydromon/pkg/sonar"
)

func main() {
	var (
		configFlag = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag   = flag.Bool("mock", false, "Use simulated ADC and ultrasonic sensor")
		guiFlag    = flag.Bool("gui", false, "Show the dashboard window")
		listenFlag = flag.String("listen", "", "Monitor listen address override (e.g. :8080)")
		portFlag   = flag.String("port", "", "Ultrasonic sensor serial port override (e.g. /dev/ttyUSB0)")
	)
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] hydromon starting")

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("[main] failed to load configuration: %v", err)
	}
	if *mockFlag {
		cfg.ADC.Driver = config.DriverMock
	}
	if *portFlag != "" {
		cfg.Serial.Port = *portFlag
	}
	if *listenFlag != "" {
		cfg.Monitor.Enabled = true
		cfg.Monitor.ListenAddr = *listenFlag
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[main] invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	driver, err := acquire.OpenDriver(cfg)
	if err != nil {
		log.Fatalf("[main] failed to open %s adc: %v", cfg.ADC.Driver, err)
	}
	if c, ok := driver.(io.Closer); ok {
		defer c.Close()
	}

	dev := acquire.NewSonar(cfg, *mockFlag)
	defer dev.Close()

	// The cycle reports the level as missing until the sensor connects.
	go connectWithRetry(ctx, "sonar", dev, 10)

	cycle, err := acquire.Build(cfg, driver, dev)
	if err != nil {
		log.Fatalf("[main] failed to build acquisition cycle: %v", err)
	}

	if cfg.Monitor.Enabled {
		hub := monitor.New(cfg.Monitor.ListenAddr, cycle)
		cycle.OnUpdate(hub.Publish)
		go func() {
			if err := hub.Run(ctx); err != nil {
				log.Printf("[monitor] server exited: %v", err)
				cancel()
			}
		}()
	}

	if !*guiFlag {
		if err := cycle.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("[main] acquisition stopped: %v", err)
		}
		logSummary(cycle)
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		cycle.Run(ctx)
	}()

	runGUI(ctx, cancel, cfg, *configFlag, cycle)

	cancel()
	<-done
	logSummary(cycle)
}

// connectWithRetry attempts to connect with exponential backoff.
// Starts at 1s, doubles each attempt up to 60s, and keeps retrying at the
// maximum interval after maxAttempts.
func connectWithRetry(ctx context.Context, name string, d sonar.Device, maxAttempts int) {
	delay := 1 * time.Second
	maxDelay := 60 * time.Second
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := d.Connect()
		if err == nil {
			log.Printf("[%s] connected (attempt %d)", name, attempt+1)
			return
		}

		attempt++
		if attempt <= maxAttempts {
			log.Printf("[%s] connect attempt %d/%d failed: %v (retry in %v)",
				name, attempt, maxAttempts, err, delay)
		} else {
			log.Printf("[%s] connect attempt %d failed: %v (retry in %v)",
				name, attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay = min(delay*2, maxDelay)
	}
}

func logSummary(c *acquire.Cycle) {
	st := c.Stats()
	log.Printf("[main] %d cycles, last %s", st.Cycles, st.LastCycle.Format(time.RFC3339))
	for _, k := range sensor.Kinds {
		if n := st.Failures[k.String()]; n > 0 {
			log.Printf("[main] %s failed %d times, last: %s", k, n, st.LastErrors[k.String()])
		}
	}
	log.Printf("[main] sonar: %d frames, %d checksum errors, %d timeouts, %d bytes discarded",
		st.Sonar.Frames, st.Sonar.ChecksumErrors, st.Sonar.Timeouts, st.Sonar.DiscardedBytes)
}
