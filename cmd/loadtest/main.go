package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Togather-Foundation/datastudy/internal/loadtest"
)

func main() {
	var (
		baseURL   = flag.String("url", "http://localhost:5001", "Base URL of the server to test")
		token     = flag.String("token", os.Getenv("LOADTEST_TOKEN"), "Bearer token for /data requests (see: server token)")
		profile   = flag.String("profile", "light", "Load profile: light, medium, heavy, stress")
		rps       = flag.Int("rps", 0, "Custom requests per second (overrides profile)")
		duration  = flag.Duration("duration", 0, "Custom test duration (overrides profile)")
		readRatio = flag.Float64("read-ratio", 0, "Read share 0.0-1.0 (overrides profile)")
		noRamp    = flag.Bool("no-ramp", false, "Start at full rate")
	)
	flag.Parse()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "Warning: no -token given, /data requests will be rejected with 401")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tester := loadtest.NewLoadTester(*baseURL, *token)

	cfg, ok := loadtest.LoadProfiles[loadtest.LoadProfile(*profile)]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown profile %q\n", *profile)
		os.Exit(1)
	}
	if *rps > 0 {
		cfg.RequestsPerSecond = *rps
	}
	if *duration > 0 {
		cfg.Duration = *duration
	}
	if *readRatio > 0 {
		cfg.ReadWriteRatio = *readRatio
	}
	if *noRamp {
		cfg.RampUpTime = 0
	}

	fmt.Printf("Running load profile %s at %d req/s for %s\n", *profile, cfg.RequestsPerSecond, cfg.Duration)

	stats, err := tester.RunCustom(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(stats.Report())
}
