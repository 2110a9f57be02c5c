package lister

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/RallySmith/logic2-ext-armdebug/internal/capture"
	"github.com/RallySmith/logic2-ext-armdebug/internal/common"
	"github.com/RallySmith/logic2-ext-armdebug/internal/config"
	"github.com/RallySmith/logic2-ext-armdebug/internal/demux"
	"github.com/RallySmith/logic2-ext-armdebug/internal/interfaces"
	"github.com/RallySmith/logic2-ext-armdebug/internal/ocsd"
	"github.com/RallySmith/logic2-ext-armdebug/internal/pipeline"
	"github.com/RallySmith/logic2-ext-armdebug/internal/printers"
)

// blockSize is the number of capture bytes passed per TraceDataIn call.
const blockSize = 4096

// Config holds the command line and file settings of one lister run.
type Config struct {
	CapturePath string
	Capture     *capture.Capture // preloaded capture, CapturePath is ignored when set
	Views       []pipeline.Config
	Format      config.Format
	DumpFrames  bool // print the de-framed streams of TPIU views first
	Stats       bool // print per view record counts after the records
	TestWaits   int  // text printers return a wait for this many records
	Logger      zerolog.Logger

	OutputWriter io.Writer
}

// Options controls the record output of each view.
type Options struct {
	Format    config.Format
	Stats     bool // text output ends with the record counts of the printer
	TestWaits int
}

// ViewResult is the output and counters of one view.
type ViewResult struct {
	View  pipeline.Config
	Stats pipeline.Stats
	Waits int // wait responses acknowledged
	Out   bytes.Buffer
}

// Run decodes every view over the capture and writes the output of each view
// in configuration order.
func Run(ctx context.Context, cfg Config) error {
	w := cfg.OutputWriter
	if w == nil {
		w = os.Stdout
	}
	log := cfg.Logger

	if len(cfg.Views) == 0 {
		return fmt.Errorf("no views configured")
	}

	capt := cfg.Capture
	if capt == nil {
		var err error
		if capt, err = capture.Load(cfg.CapturePath); err != nil {
			return err
		}
	}
	log.Info().
		Str("capture", capt.Path).
		Stringer("encoding", capt.Encoding).
		Int("bytes", len(capt.Data)).
		Int("views", len(cfg.Views)).
		Msg("capture loaded")

	text := cfg.Format != config.FormatMsgpack
	if text {
		fmt.Fprintln(w, "SWO Trace Lister")
		fmt.Fprintln(w, "----------------")
		fmt.Fprintf(w, "Using %s as trace source (%d bytes)\n\n", displayName(capt), len(capt.Data))
	}

	if cfg.DumpFrames && text {
		for _, v := range cfg.Views {
			if v.Deframed() {
				if err := dumpFrames(w, v, capt.Data, log); err != nil {
					return err
				}
				break
			}
		}
	}

	opts := Options{Format: cfg.Format, Stats: cfg.Stats, TestWaits: cfg.TestWaits}
	results, err := RunViews(ctx, capt.Data, cfg.Views, opts, log)
	if err != nil {
		return err
	}

	for _, res := range results {
		if text {
			fmt.Fprintf(w, "View %s: style %s; port %d; tpiu %t; stream %d\n",
				res.View.Name, res.View.Style, res.View.Port, res.View.Deframed(), res.View.StreamID)
		}
		if _, err := res.Out.WriteTo(w); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		if text && cfg.Stats {
			printStats(w, res)
		}
		if text {
			fmt.Fprintln(w)
		}
	}
	return nil
}

// RunViews decodes each view on its own goroutine. The capture data is shared
// read only.
func RunViews(ctx context.Context, data []byte, views []pipeline.Config, opts Options, log zerolog.Logger) ([]*ViewResult, error) {
	results := make([]*ViewResult, len(views))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.NumCPU())
	for i, v := range views {
		res := &ViewResult{View: v}
		results[i] = res
		eg.Go(func() error {
			return runView(ctx, data, res, opts, log)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func runView(ctx context.Context, data []byte, res *ViewResult, opts Options, log zerolog.Logger) error {
	dec, err := pipeline.NewDecoder(res.View, log)
	if err != nil {
		return fmt.Errorf("view %s: %w", res.View.Name, err)
	}

	var sink interfaces.RecordIn[pipeline.Record]
	var tp *printers.TextPrinter
	if opts.Format == config.FormatMsgpack {
		sink = printers.NewMsgpackPrinter(&res.Out, log)
	} else {
		tp = printers.NewTextPrinter(&res.Out)
		tp.SetTestWaits(opts.TestWaits)
		if opts.Stats {
			tp.SetCollectStats()
		}
		sink = tp
	}
	dec.AttachRecordOut(sink)

	// records of a waiting byte are already printed, so an acknowledged wait resumes at the next byte
	ackWait := func(resp ocsd.DatapathResp) {
		if ocsd.DataRespIsWait(resp) && tp != nil && tp.NeedAckWait() {
			tp.AckWait()
			res.Waits++
			dec.TraceDataIn(ocsd.OpFlush, 0, nil)
		}
	}

	for off := 0; off < len(data); {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(off+blockSize, len(data))
		n, resp := dec.TraceDataIn(ocsd.OpData, ocsd.TrcIndex(off), data[off:end])
		if ocsd.DataRespIsFatal(resp) {
			return viewError(res.View.Name, off+int(n), resp)
		}
		ackWait(resp)
		off += int(n)
	}
	_, resp := dec.TraceDataIn(ocsd.OpEOT, 0, nil)
	if ocsd.DataRespIsFatal(resp) {
		return viewError(res.View.Name, len(data), resp)
	}
	ackWait(resp)
	if tp != nil && opts.Stats {
		tp.PrintStats()
	}

	res.Stats = dec.Stats()
	log.Info().
		Str("view", res.View.Name).
		Uint64("records", res.Stats.Records).
		Uint64("packets", res.Stats.Parser.Packets).
		Uint64("bad_packets", res.Stats.Parser.BadPackets).
		Uint64("frames", res.Stats.Deformatter.Frames).
		Int("waits", res.Waits).
		Msg("view decoded")
	return nil
}

func viewError(name string, idx int, resp ocsd.DatapathResp) error {
	err := common.NewErrorWithIdxMsg(ocsd.ErrSevError, ocsd.ErrFail, ocsd.TrcIndex(idx),
		fmt.Sprintf("output stopped: %s", common.DataRespStr(resp)))
	return fmt.Errorf("view %s: %w", name, err)
}

// dumpFrames prints every stream recovered from the TPIU frames of v.
func dumpFrames(w io.Writer, v pipeline.Config, data []byte, log zerolog.Logger) error {
	dfmt, err := demux.NewFrameDeformatter(demux.Config{StreamID: v.StreamID, Offset: v.Offset, AllStreams: true}, log)
	if err != nil {
		return err
	}
	rp := printers.NewRawFramePrinter(w)
	var out []demux.Byte
	for i, b := range data {
		out = dfmt.Feed(b, ocsd.TrcIndex(i), out[:0])
		rp.BytesIn(out)
	}
	rp.Flush()

	st := dfmt.Stats()
	fmt.Fprintf(w, "Frames %d; FSYNC %d; HSYNC %d; bytes out %d\n\n", st.Frames, st.FrameSyncs, st.HalfSyncs, st.BytesOut)
	return nil
}

// printStats prints the stage counters. Record counts come from the text printer.
func printStats(w io.Writer, res *ViewResult) {
	st := res.Stats
	if res.View.Deframed() {
		df := st.Deformatter
		fmt.Fprintf(w, "Frames %d; FSYNC %d; HSYNC %d; reserved IDs %d; dropped bytes %d\n",
			df.Frames, df.FrameSyncs, df.HalfSyncs, df.ReservedIDs, df.BytesDropped)
	}
	fmt.Fprintf(w, "Packets %d; bad packets %d; not sync bytes %d; truncated %d\n",
		st.Parser.Packets, st.Parser.BadPackets, st.Parser.NotSyncBytes, st.Parser.Truncated)
	fmt.Fprintf(w, "Page %d; local TS %d; global TS %d\n", st.Page, st.LocalTS, st.GlobalTS)
	switch res.View.Style {
	case pipeline.StyleConsole:
		fmt.Fprintf(w, "Text spans %d; non-text %d\n", st.ConsoleSpans, st.NonText)
	case pipeline.StyleInstrumentation:
		sq := st.Sequencer
		fmt.Fprintf(w, "Valid %d; mismatch %d; short %d; partial %d; orphan %d; gaps %d\n",
			sq.Valid, sq.Mismatch, sq.Short, sq.Partial, sq.Orphan, sq.Gaps)
	}
}

func displayName(c *capture.Capture) string {
	if c.Path == "" {
		return "<memory>"
	}
	return c.Path
}
