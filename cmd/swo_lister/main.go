package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/RallySmith/logic2-ext-armdebug/internal/common"
	"github.com/RallySmith/logic2-ext-armdebug/internal/config"
	"github.com/RallySmith/logic2-ext-armdebug/internal/lister"
	"github.com/RallySmith/logic2-ext-armdebug/internal/pipeline"
)

func main() {
	cfgPath := flag.String("config", "", "TOML file describing the capture and its views")
	capturePath := flag.String("capture", "", "Capture file (raw, gzip or zstd)")
	style := flag.String("style", "all", "Decode style: all, port, console, instrumentation")
	port := flag.Int("port", 0, "Absolute stimulus port (page * 32 + port)")
	tpiu := flag.Bool("tpiu", false, "Capture is TPIU formatted")
	stream := flag.Int("stream", 1, "TPIU stream carrying ITM, 0 bypasses the deformatter")
	offset := flag.Int("offset", 0, "Bytes of the first TPIU frame missing from the capture")
	waitSync := flag.Bool("wait_sync", false, "Drop bytes until the first ITM sync packet")
	prescale := flag.Uint("ts_prescale", 0, "Local timestamp prescaler: 1, 4, 16 or 64")
	format := flag.String("format", "text", "Output format: text or msgpack")
	logLevel := flag.String("log_level", "info", "Log level: debug, info, warn, error")
	dumpFrames := flag.Bool("dump_frames", false, "Print the de-framed TPIU streams")
	stats := flag.Bool("stats", false, "Print decode counters for each view")
	testWaits := flag.Int("test_waits", 0, "Text output returns a wait for the first N records of each view")

	flag.Parse()

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	file := config.Default()
	if *cfgPath != "" {
		var err error
		if file, err = config.Load(*cfgPath); err != nil {
			fmt.Fprintf(os.Stderr, "SWO Lister : Error: %v\n", err)
			os.Exit(1)
		}
	}

	if set["capture"] || file.Capture == "" {
		file.Capture = *capturePath
	}
	if set["format"] || *cfgPath == "" {
		f, err := config.ParseFormat(*format)
		if err != nil {
			fmt.Fprintf(os.Stderr, "SWO Lister : Error: %v\n", err)
			os.Exit(1)
		}
		file.Format = f
	}
	if set["log_level"] || *cfgPath == "" {
		lvl, err := common.ParseSeverity(*logLevel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "SWO Lister : Error: %v\n", err)
			os.Exit(1)
		}
		file.LogLevel = lvl
	}
	if set["dump_frames"] {
		file.DumpFrames = *dumpFrames
	}

	if file.Capture == "" {
		fmt.Fprintln(os.Stderr, "SWO Lister : Error: Missing capture file on -capture option")
		os.Exit(1)
	}

	if len(file.Views) == 0 {
		st, err := pipeline.ParseStyle(*style)
		if err != nil {
			fmt.Fprintf(os.Stderr, "SWO Lister : Error: %v\n", err)
			os.Exit(1)
		}
		if *stream < 0 || *stream > 0x7F || *offset < 0 || *offset > 0xF {
			fmt.Fprintln(os.Stderr, "SWO Lister : Error: -stream must be 0..127 and -offset 0..15")
			os.Exit(1)
		}
		file.Views = []pipeline.Config{{
			Name:        st.String(),
			Style:       st,
			Port:        *port,
			TPIU:        *tpiu,
			StreamID:    uint8(*stream),
			Offset:      uint8(*offset),
			WaitForSync: *waitSync,
			TSPrescale:  uint32(*prescale),
		}}
	}

	logger := common.NewLogger(os.Stderr, file.LogLevel, "swo_lister")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := lister.Config{
		CapturePath:  file.Capture,
		Views:        file.Views,
		Format:       file.Format,
		DumpFrames:   file.DumpFrames,
		Stats:        *stats,
		TestWaits:    *testWaits,
		Logger:       logger,
		OutputWriter: os.Stdout,
	}

	if err := lister.Run(ctx, cfg); err != nil {
		logger.Error().Err(err).Msg("lister failed")
		stop()
		os.Exit(1)
	}
}
