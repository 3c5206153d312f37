package sim

// Plot channel variable codes (spec.md §6 "Plot channel variable codes").
const (
	varVm          = 1
	varGK          = 2
	varTheta       = 3
	varFiringRate  = 4
	varStdFiber    = -17
	varAfferentEvt = -18
	varAfferentSig = -19
	varAfferentBoth = -20
	varAfferentInst = -21
	varAfferentBin  = -22
)

// Lung-field plot variables, −1..−16 (spec.md §6); only the fields the lung
// subsystem actually tracks are wired, the remainder report 0.
const (
	varLungVolume             = -1
	varLungFlow               = -2
	varLungPtp                = -3
	varLungPdi                = -4
	varLungPab                = -5
	varLungPrc                = -6
	varLungVdi                = -7
	varLungVab                = -8
	varLungVdiRate            = -9
	varLungVabRate            = -10
	varLungPhrenic            = -11
	varLungAbdominal          = -12
	varLungLaryngealConstrict = -13
	varLungLaryngealDilate    = -14
)

// plotEmission is phase 5: resolve each subscribed plot channel's value and
// spike flag for the tick just finished and hand the tick's sample vector
// to the sink, which is responsible for 100-tick block buffering (spec.md
// §4.E phase 5, §4.F "Plot blocks").
func (r *Run) plotEmission() {
	if r.PlotSink == nil || len(r.plotChannels) == 0 {
		return
	}
	samples := make([]PlotSample, len(r.plotChannels))
	for i, ch := range r.plotChannels {
		v, spike := r.resolvePlotChannel(ch)
		samples[i] = PlotSample{Value: v * scaleOrOne(ch.Scale), Spike: spike}
	}
	r.PlotSink.EmitTick(r.Tick, samples)
}

func scaleOrOne(s float64) float64 {
	if s == 0 {
		return 1
	}
	return s
}

func (r *Run) resolvePlotChannel(ch PlotChannelSpec) (float64, bool) {
	switch {
	case ch.Variable >= 1:
		return r.resolveCellVariable(ch)
	case ch.Variable <= -17:
		return r.resolveFiberVariable(ch)
	default:
		return r.resolveLungVariable(ch.Variable), false
	}
}

func (r *Run) resolveCellVariable(ch PlotChannelSpec) (float64, bool) {
	if ch.Pop < 1 || ch.Pop > len(r.Graph.CellPops) {
		return 0, false
	}
	cp := &r.Graph.CellPops[ch.Pop-1]
	if ch.Cell < 0 || ch.Cell >= len(cp.Cells) {
		return 0, false
	}
	cell := &cp.Cells[ch.Cell]
	switch ch.Variable {
	case varVm:
		return cell.Vm, cell.SpikeFlag
	case varGK:
		return cell.GK, cell.SpikeFlag
	case varTheta:
		return cell.Theta, cell.SpikeFlag
	case varFiringRate:
		return cp.FiringRateHz(firingRateWindowTicks, r.Desc.Global.DtMs), cell.SpikeFlag
	default:
		return 0, cell.SpikeFlag
	}
}

func (r *Run) resolveFiberVariable(ch PlotChannelSpec) (float64, bool) {
	if ch.Pop < 1 || ch.Pop > len(r.Graph.FiberPops) {
		return 0, false
	}
	fp := &r.Graph.FiberPops[ch.Pop-1]
	if ch.Cell < 0 || ch.Cell >= len(fp.Fibers) {
		return 0, false
	}
	fiber := &fp.Fibers[ch.Cell]
	switch ch.Variable {
	case varStdFiber, varAfferentEvt:
		if fiber.EventFlag {
			return 1, true
		}
		return 0, false
	case varAfferentSig:
		return fiber.Sample, fiber.EventFlag
	case varAfferentBoth:
		return fiber.Sample, fiber.EventFlag
	case varAfferentInst:
		return fiber.Sample - fiber.PrevSample, fiber.EventFlag
	case varAfferentBin:
		return fiber.Sample, fiber.EventFlag
	default:
		return 0, fiber.EventFlag
	}
}

func (r *Run) resolveLungVariable(variable int) float64 {
	st := r.lastLungState
	switch variable {
	case varLungVolume:
		return st.VolumeL
	case varLungFlow:
		return st.TrachealFlow
	case varLungPtp:
		return st.Ptp
	case varLungPdi:
		return st.Pdi
	case varLungPab:
		return st.Pab
	case varLungPrc:
		return st.Prc
	case varLungVdi:
		return st.Vdi
	case varLungVab:
		return st.Vab
	case varLungVdiRate:
		return st.VdiT
	case varLungVabRate:
		return st.VabT
	case varLungPhrenic:
		return st.Phrenic
	case varLungAbdominal:
		return st.Abdominal
	case varLungLaryngealConstrict:
		return st.LaryngealConstrict
	case varLungLaryngealDilate:
		return st.LaryngealDilate
	default:
		return 0
	}
}
