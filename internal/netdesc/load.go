package netdesc

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/uflsim/engine/internal/engerr"
)

// Load reads a network-description file from path.
func Load(path string) (*Description, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, engerr.Config("netdesc.Load", err)
	}
	return LoadBuffer(b)
}

// LoadBuffer parses a network description delivered as an in-memory byte
// buffer (spec.md §4.A: "Both may arrive from files or from an in-memory
// byte buffer delivered over the control channel").
func LoadBuffer(b []byte) (*Description, error) {
	r := bufio.NewReader(bytes.NewReader(b))
	d := &Description{}
	d.Synapses = append(d.Synapses, SynapseType{}) // index 0 reserved

	var curCellPop *CellPopulation
	var curFiberPop *FiberPopulation

	for {
		line, err := r.ReadString('\n')
		header := strings.TrimSpace(line)
		if strings.HasPrefix(header, "[") && strings.HasSuffix(header, "]") {
			kind, idx := parseHeader(header)
			switch kind {
			case "global":
				if rerr := ReadRecordBlock(r, &d.Global); rerr != nil {
					return nil, rerr
				}
				curCellPop, curFiberPop = nil, nil
			case "synapse":
				st := SynapseType{Index: idx}
				if rerr := ReadRecordBlock(r, &st); rerr != nil {
					return nil, rerr
				}
				for len(d.Synapses) <= idx {
					d.Synapses = append(d.Synapses, SynapseType{})
				}
				d.Synapses[idx] = st
				curCellPop, curFiberPop = nil, nil
			case "cellpop":
				cp := CellPopulation{Index: idx}
				if rerr := ReadRecordBlock(r, &cp); rerr != nil {
					return nil, rerr
				}
				d.CellPops = append(d.CellPops, cp)
				curCellPop = &d.CellPops[len(d.CellPops)-1]
				curFiberPop = nil
			case "fiberpop":
				fp := FiberPopulation{Index: idx}
				if rerr := ReadRecordBlock(r, &fp); rerr != nil {
					return nil, rerr
				}
				fp.Calibration = AfferentCalibration{Gain: fp.CalGain, Offset: fp.CalOffset}
				d.FiberPops = append(d.FiberPops, fp)
				curFiberPop = &d.FiberPops[len(d.FiberPops)-1]
				curCellPop = nil
			case "target":
				tr := TargetRecord{}
				if rerr := ReadRecordBlock(r, &tr); rerr != nil {
					return nil, rerr
				}
				switch {
				case curCellPop != nil:
					curCellPop.Targets = append(curCellPop.Targets, tr)
				case curFiberPop != nil:
					curFiberPop.Targets = append(curFiberPop.Targets, tr)
				default:
					return nil, engerr.Config("netdesc.LoadBuffer", fmt.Errorf("[target] block with no preceding population"))
				}
			case "valuepoint":
				if curFiberPop == nil {
					return nil, engerr.Config("netdesc.LoadBuffer", fmt.Errorf("[valuepoint] block with no preceding fiber population"))
				}
				vp := ValueProbPoint{}
				var raw struct {
					Value float64 `field:"value" type:"float"`
					Prob  float64 `field:"prob" type:"float"`
				}
				if rerr := ReadRecordBlock(r, &raw); rerr != nil {
					return nil, rerr
				}
				vp.Value, vp.Prob = raw.Value, raw.Prob
				curFiberPop.ValueTable = append(curFiberPop.ValueTable, vp)
			case "lung":
				if rerr := ReadRecordBlock(r, &d.Lung); rerr != nil {
					return nil, rerr
				}
				curCellPop, curFiberPop = nil, nil
			default:
				// unknown block kind: skip its lines up to the next blank
				// line, tolerated per spec.md §4.A forward-compatibility.
				for {
					l2, e2 := r.ReadString('\n')
					if strings.TrimSpace(l2) == "" {
						break
					}
					if e2 == io.EOF {
						break
					}
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, engerr.Config("netdesc.LoadBuffer", err)
		}
	}
	return d, nil
}

func parseHeader(h string) (kind string, idx int) {
	inner := strings.TrimSuffix(strings.TrimPrefix(h, "["), "]")
	fields := strings.Fields(inner)
	if len(fields) == 0 {
		return "", 0
	}
	kind = fields[0]
	if len(fields) > 1 {
		idx, _ = strconv.Atoi(fields[1])
	}
	return kind, idx
}

