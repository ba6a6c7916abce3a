// Command check-runtime verifies the inference runtime endpoints are
// reachable and reports which device tier a run would use.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kelvinpraises/vidrune/internal/config"
	"github.com/kelvinpraises/vidrune/internal/vision"
)

func main() {
	cfg := config.Load()

	fmt.Println("Checking inference runtimes")
	fmt.Println("===========================")
	fmt.Printf("Caption endpoint: %s\n", cfg.CaptionEndpoint)
	fmt.Printf("Speech endpoint:  %s\n", cfg.SpeechEndpoint)
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	caps, err := vision.NewRuntimeClient(cfg.CaptionEndpoint).Probe(ctx)
	if err != nil {
		fmt.Printf("Caption runtime: unreachable (%v)\n", err)
		fmt.Println("Runs will fail until the runtime is up.")
		return
	}

	fmt.Printf("Caption runtime: up, devices=%v fp16=%v\n", caps.Devices, caps.FP16)
	if caps.Accelerated() {
		fmt.Println("Device tier: accelerated (gpu, fp16)")
	} else {
		fmt.Println("Device tier: cpu (fp32)")
	}
}
