// Command uflsim-engine runs the discrete-time neural-network/mechanical-
// lung simulator spec.md describes: parse CLI flags and a run script,
// build the network, wire whichever output/control transports were
// requested, and step the simulation to completion.
package main

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/gorilla/websocket"

	"github.com/uflsim/engine/internal/config"
	"github.com/uflsim/engine/internal/control"
	"github.com/uflsim/engine/internal/engerr"
	"github.com/uflsim/engine/internal/netdesc"
	"github.com/uflsim/engine/internal/network"
	"github.com/uflsim/engine/internal/output"
	"github.com/uflsim/engine/internal/sim"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an engerr.Kind to spec.md §6's exit code surface: 0
// normal or user-intent shutdown, 1 for every failure kind (configuration
// error or operational failure).
func exitCode(err error) int {
	if err == nil || engerr.KindOf(err) == engerr.UserIntent {
		return 0
	}
	return 1
}

func run(argv []string) error {
	args, err := config.Parse(argv)
	if err != nil {
		return engerr.Config("main.Parse", err)
	}
	if args.ConfigFile != "" {
		if err := config.ApplyConfigFile(args, args.Explicit()); err != nil {
			return err
		}
	}
	if args.Script == "" {
		return engerr.Config("main.run", fmt.Errorf("--script is required"))
	}

	scriptFile, err := os.Open(args.Script)
	if err != nil {
		return engerr.Config("main.run", err)
	}
	rs, err := config.ParseRunScript(bufio.NewReader(scriptFile))
	scriptFile.Close()
	if err != nil {
		return err
	}

	desc, err := netdesc.Load(rs.DescriptionFile)
	if err != nil {
		return err
	}

	graph, err := network.Build(desc)
	if err != nil {
		return err
	}

	if args.Condi {
		if err := dumpConnectivity(args, graph); err != nil {
			return err
		}
	}

	r := sim.NewRun(desc, graph).WithNoNoise(args.NoNoise)

	if err := r.OpenAfferents(); err != nil {
		return err
	}

	if rs.PlotEnabled {
		r.WithPlotChannels(toPlotChannelSpecs(rs.PlotChannels))
	}
	if len(rs.SpikeChannels) > 0 {
		cellCh, fiberCh := toSpikeChannelMaps(rs.SpikeChannels)
		r.WithSpikeChannels(cellCh, fiberCh)
	}
	if rs.AnalogEnabled {
		r.WithAnalogPool(rs.AnalogPop, 0, rs.AnalogScale, rs.AnalogDecay)
	}

	closers, err := wireOutputs(args, rs, r)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	if args.Socket {
		conn, err := dialViewer(args)
		if err != nil {
			return engerr.Config("main.run", err)
		}
		defer conn.Close()
		r.ControlSource = control.NewWSControlSource(conn)
		if rs.PlotEnabled {
			r.PlotSink = output.NewWSPlotSink(conn, toChannelSpecs(rs.PlotChannels))
		}
	} else {
		r.ControlSource = control.NewReaderControlSource(os.Stdin)
	}

	nsteps := desc.Global.NSteps
	if err := r.RunToCompletion(nsteps); err != nil {
		return err
	}

	if trace, ok := r.EventSink.(*output.AnalogTrace); ok {
		insertMarkers(trace, args, rs, desc.Global.DtMs)
	}

	return nil
}

type closer interface{ Close() error }

// dumpConnectivity writes the pre-run convergence/divergence diagnostic
// spec.md §6's --condi flag requests to <output>/condi.csv.
func dumpConnectivity(args *config.Args, graph *network.Graph) error {
	f, err := os.Create(filepath.Join(args.Output, "condi.csv"))
	if err != nil {
		return engerr.Config("main.dumpConnectivity", err)
	}
	defer f.Close()
	stats := network.ConnectivityStats(graph)
	if err := output.WriteConnectivityCSV(f, stats); err != nil {
		return engerr.Config("main.dumpConnectivity", err)
	}
	return nil
}

// dialViewer opens the single websocket connection --socket mode shares
// between the control channel and the plot stream (SPEC_FULL.md §4.G),
// to the viewer named by --host/--port.
func dialViewer(args *config.Args) (*websocket.Conn, error) {
	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("%s:%d", args.Host, args.Port), Path: "/"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	return conn, err
}

// wireOutputs constructs whichever of the event table, plot stream, and
// archive spec.md §4.F enumerates the CLI/run-script combination asked
// for, attaching them to r's PlotSink/EventSink.
func wireOutputs(args *config.Args, rs *config.RunScript, r *sim.Run) ([]closer, error) {
	var closers []closer
	var eventSinks []sim.EventSink

	if args.BDT && rs.SaveSpikeTable {
		path := filepath.Join(args.Output, rs.SpikeTableFile)
		f, err := os.Create(path)
		if err != nil {
			return nil, engerr.Config("main.wireOutputs", err)
		}
		closers = append(closers, f)
		subTick := output.DetectSubTickMs(rs.SpikeTableFile)
		eventSinks = append(eventSinks, output.NewEventTable(f, r.Desc.Global.DtMs, subTick))
	}

	if (args.SMR && rs.SaveSpikeArch) || (args.Wave && rs.SaveWaveArch) {
		path := filepath.Join(args.Output, "archive.bin")
		f, err := os.Create(path)
		if err != nil {
			return nil, engerr.Config("main.wireOutputs", err)
		}
		closers = append(closers, f)
		names := archiveChannelNames(rs)
		arch, err := output.NewArchive(f, names)
		if err != nil {
			return nil, engerr.Config("main.wireOutputs", err)
		}
		eventSinks = append(eventSinks, arch)
	}

	if len(eventSinks) > 0 {
		var sink sim.EventSink = output.NewFanoutEventSink(eventSinks...)
		if rs.AnalogEnabled {
			sink = output.NewAnalogTrace(sink, 0)
		}
		r.EventSink = sink
	}

	// Socket-mode plot streaming is wired separately in run() once the
	// viewer connection is dialed; --file and the plain-file fallback only
	// apply when no socket is in play.
	if rs.PlotEnabled && !args.Socket {
		channels := toChannelSpecs(rs.PlotChannels)
		if args.File {
			r.PlotSink = output.NewNumberedFileSink(args.Output, "plot", channels)
		} else {
			f, err := os.Create(filepath.Join(args.Output, "plot.out"))
			if err != nil {
				return nil, engerr.Config("main.wireOutputs", err)
			}
			closers = append(closers, f)
			r.PlotSink = output.NewPlotBlockWriter(f, channels, false)
		}
	}

	return closers, nil
}

func archiveChannelNames(rs *config.RunScript) []string {
	names := make([]string, 0, len(rs.SpikeChannels))
	for _, sc := range rs.SpikeChannels {
		kind := "C"
		if sc.IsFiber {
			kind = "F"
		}
		names = append(names, fmt.Sprintf("%s%d.%d", kind, sc.Pop, sc.Cell))
	}
	return names
}

func toPlotChannelSpecs(pcs []config.PlotChannel) []sim.PlotChannelSpec {
	out := make([]sim.PlotChannelSpec, len(pcs))
	for i, pc := range pcs {
		scale := pc.Scale
		if scale == 0 {
			scale = 1
		}
		out[i] = sim.PlotChannelSpec{Pop: pc.Pop, Cell: pc.Cell, Variable: pc.Variable, Scale: scale}
	}
	return out
}

func toChannelSpecs(pcs []config.PlotChannel) []output.ChannelSpec {
	out := make([]output.ChannelSpec, len(pcs))
	for i, pc := range pcs {
		out[i] = output.ChannelSpec{Pop: pc.Pop, Cell: pc.Cell, Variable: pc.Variable, Type: pc.Type, Label: pc.Label}
	}
	return out
}

// toSpikeChannelMaps translates the run script's 1-based "C|F pop,cell"
// lines into the (population, cell) -> channel maps sim.Run consumes.
// Cell and fiber keys go into separate maps. Cell keys carry the 1-based
// population number as is, matching internal/sim's popIdx+1 lookup for
// cells; fiber keys carry it negated, matching the -(popIdx+1) lookup for
// fibers, since sc.Pop is already 1-based.
func toSpikeChannelMaps(scs []config.SpikeChannel) (cell, fiber map[network.SlotKey]int) {
	cell = make(map[network.SlotKey]int)
	fiber = make(map[network.SlotKey]int)
	for i, sc := range scs {
		if sc.IsFiber {
			fiber[network.SlotKey{Pop: -sc.Pop, Cell: sc.Cell}] = i
		} else {
			cell[network.SlotKey{Pop: sc.Pop, Cell: sc.Cell}] = i
		}
	}
	return cell, fiber
}

// insertMarkers runs the post-run pass spec.md §4.F describes over the
// analog trace recorded during the run and appends the resulting
// inspiratory/expiratory markers to the event table.
func insertMarkers(trace *output.AnalogTrace, args *config.Args, rs *config.RunScript, dtMs float64) {
	const (
		markerHalfWidth = 3
		riseSlope       = 50.0
		fallSlope       = -50.0
	)
	events := output.InsertMarkers(trace.Samples(), markerHalfWidth, riseSlope, fallSlope)
	if len(events) == 0 || !args.BDT {
		return
	}
	path := filepath.Join(args.Output, rs.SpikeTableFile)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	et := output.NewAppendingEventTable(f, dtMs, output.DetectSubTickMs(rs.SpikeTableFile))
	for _, m := range events {
		et.EmitMarker(m)
	}
	et.Flush()
}
