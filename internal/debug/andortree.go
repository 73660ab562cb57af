package debug

// HAStatus0 is one hart's contribution to the AND/OR tree: the status
// bits {halted, running, resumeack, havereset, unavailable, selected}
// (spec §4.6 "Level 0 computes 10 bits per neighborhood from
// hastatus0"). The remaining bits beyond these six are reserved for the
// original encoding's extra fields and always read zero here.
type HAStatus0 struct {
	Halted      bool
	Running     bool
	ResumeAck   bool
	HaveReset   bool
	Unavailable bool
	Selected    bool
}

// Level0 is the per-neighborhood AND/OR reduction over up to 16 harts'
// HAStatus0 (spec §4.6 "Level 0 computes 10 bits per neighborhood").
type Level0 struct {
	AnySelected                    bool
	AnyHalted, AllHalted           bool
	AnyRunning, AllRunning         bool
	AnyResumeAck, AllResumeAck     bool
	AnyHaveReset, AllHaveReset     bool
	AnyUnavailable, AllUnavailable bool
}

// ReduceLevel0 computes the level-0 reduction over the selected harts
// of one neighborhood. all* bits are zeroed if no hart is selected
// (spec §4.6 "all* bits are zeroed if no hart is selected in the
// shire" — the same rule applies one level down, at the neighborhood).
func ReduceLevel0(harts []HAStatus0) Level0 {
	var r Level0
	r.AllHalted, r.AllRunning, r.AllResumeAck, r.AllHaveReset, r.AllUnavailable = true, true, true, true, true
	anySelected := false
	for _, h := range harts {
		if !h.Selected {
			continue
		}
		anySelected = true
		r.AnyHalted = r.AnyHalted || h.Halted
		r.AllHalted = r.AllHalted && h.Halted
		r.AnyRunning = r.AnyRunning || h.Running
		r.AllRunning = r.AllRunning && h.Running
		r.AnyResumeAck = r.AnyResumeAck || h.ResumeAck
		r.AllResumeAck = r.AllResumeAck && h.ResumeAck
		r.AnyHaveReset = r.AnyHaveReset || h.HaveReset
		r.AllHaveReset = r.AllHaveReset && h.HaveReset
		r.AnyUnavailable = r.AnyUnavailable || h.Unavailable
		r.AllUnavailable = r.AllUnavailable && h.Unavailable
	}
	r.AnySelected = anySelected
	if !anySelected {
		r.AllHalted, r.AllRunning, r.AllResumeAck, r.AllHaveReset, r.AllUnavailable = false, false, false, false, false
	}
	return r
}

// HigherLevel is the shared shape of Level1 (per-shire, over
// neighborhoods) and Level2 (per-chip, over shires): spec §4.6 "Level 1
// ANDs/ORs four level-0 results per shire ... Level 2 does the same
// across shires".
type HigherLevel = Level0

// ReduceHigherLevel ANDs/ORs a set of lower-level results, zeroing the
// all* bits if none of the lower levels had any hart selected (spec
// §4.6 "all* bits are zeroed if no hart is selected in the shire").
func ReduceHigherLevel(lower []Level0) HigherLevel {
	var r HigherLevel
	r.AllHalted, r.AllRunning, r.AllResumeAck, r.AllHaveReset, r.AllUnavailable = true, true, true, true, true
	anySelected := false
	for _, l := range lower {
		if l.AnySelected {
			anySelected = true
		}
		r.AnyHalted = r.AnyHalted || l.AnyHalted
		r.AllHalted = r.AllHalted && l.AllHalted
		r.AnyRunning = r.AnyRunning || l.AnyRunning
		r.AllRunning = r.AllRunning && l.AllRunning
		r.AnyResumeAck = r.AnyResumeAck || l.AnyResumeAck
		r.AllResumeAck = r.AllResumeAck && l.AllResumeAck
		r.AnyHaveReset = r.AnyHaveReset || l.AnyHaveReset
		r.AllHaveReset = r.AllHaveReset && l.AllHaveReset
		r.AnyUnavailable = r.AnyUnavailable || l.AnyUnavailable
		r.AllUnavailable = r.AllUnavailable && l.AllUnavailable
	}
	r.AnySelected = anySelected
	if !anySelected {
		r.AllHalted, r.AllRunning, r.AllResumeAck, r.AllHaveReset, r.AllUnavailable = false, false, false, false, false
	}
	return r
}
