// Command recurdemo drives a recur.Driver against a simulated producer,
// printing each tick's timed result until it reaches its configured tick
// budget.
package main

import (
	goflag "flag"
	"fmt"
	"time"

	"github.com/golang/glog"
	flag "github.com/spf13/pflag"

	"recur"
	"recur/config"
	"recur/internal/future"
)

var (
	configPath = flag.String("config", "", "path to a YAML config file")
	interval   = flag.Int("interval", -1, "override tick_interval_ms")
	maxTicks   = flag.Int("ticks", -1, "override max_ticks")
)

func main() {
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	flag.Parse()
	defer glog.Flush()

	cfg := config.Load(*configPath)
	if *interval >= 0 {
		cfg.TickIntervalMS = *interval
	}
	if *maxTicks > 0 {
		cfg.MaxTicks = *maxTicks
	}
	glog.Infof("recurdemo: loaded config: %+v", cfg)

	latency := time.Duration(cfg.ProducerLatencyMS) * time.Millisecond
	tickInterval := time.Duration(cfg.TickIntervalMS) * time.Millisecond

	producer := func(n int) future.Promise[int] {
		return future.Deferred(simulatedLatency(latency, n), n*n)
	}

	done := make(chan struct{})
	listener := func(n int, r recur.TimedResult[int]) recur.Delay {
		v, err := r.Value()
		if err != nil {
			glog.Warningf("recurdemo: tick %d failed after %s: %v", n, r.Duration(), err)
		} else {
			fmt.Printf("tick %d: value=%d duration=%s\n", n, v, r.Duration())
		}
		if n+1 >= cfg.MaxTicks {
			close(done)
			return recur.Halt()
		}
		return recur.After(tickInterval)
	}

	d := recur.NewDefault(producer, listener)
	d.OnStart(future.Of(func() error {
		glog.Info("recurdemo: started")
		return nil
	}))
	d.OnStop(future.Of(func() error {
		glog.Info("recurdemo: stopped")
		return nil
	}))

	if err := d.Start().Run(); err != nil {
		glog.Fatalf("recurdemo: start failed: %v", err)
	}

	<-done
	if err := d.Stop().Run(); err != nil {
		glog.Fatalf("recurdemo: stop failed: %v", err)
	}
}

// simulatedLatency varies the base latency a little per invocation, so the
// demo's output visibly jitters instead of ticking with metronome
// regularity.
func simulatedLatency(base time.Duration, n int) time.Duration {
	jitter := time.Duration(n%3) * (base / 4)
	return base + jitter
}
