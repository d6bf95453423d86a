package server

import "fmt"

// resyncPolicy watches the ratio of corrected inputs to total inputs for a
// session. A client whose moves keep landing outside the kinematic budget is
// diverging (clock skew, packet loss, or tampering); once the ratio trips,
// the session resends an authoritative snapshot instead of correcting every
// frame piecemeal.

type resyncSignal struct {
	Corrections uint64
	TotalInputs uint64
	Identities  []string
}

type resyncPolicy struct {
	totalInputs uint64
	corrections uint64
	pending     bool
	identities  []string
}

const correctionThresholdPerTenThousand = 1000
const resyncMinimumSample = 20
const resyncIdentityLimit = 8

func newResyncPolicy() *resyncPolicy {
	return &resyncPolicy{identities: make([]string, 0, resyncIdentityLimit)}
}

func (p *resyncPolicy) noteEvent() {
	if p == nil {
		return
	}
	if p.totalInputs == ^uint64(0) {
		p.totalInputs = p.totalInputs / 2
		p.corrections = p.corrections / 2
	}
	p.totalInputs++
}

func (p *resyncPolicy) noteCorrection(identity string) {
	if p == nil {
		return
	}
	p.corrections++
	if len(p.identities) < resyncIdentityLimit {
		p.identities = append(p.identities, identity)
	}
	p.evaluate()
}

func (p *resyncPolicy) evaluate() {
	if p == nil || p.pending || p.corrections == 0 {
		return
	}
	total := p.totalInputs
	if total < resyncMinimumSample {
		return
	}
	if p.corrections*10000 >= total*correctionThresholdPerTenThousand {
		p.pending = true
	}
}

func (p *resyncPolicy) consume() (resyncSignal, bool) {
	if p == nil || !p.pending {
		return resyncSignal{}, false
	}
	signal := resyncSignal{
		Corrections: p.corrections,
		TotalInputs: p.totalInputs,
		Identities:  append([]string(nil), p.identities...),
	}
	p.pending = false
	p.totalInputs = 0
	p.corrections = 0
	if len(p.identities) > 0 {
		p.identities = p.identities[:0]
	}
	return signal, true
}

func (s resyncSignal) summary() string {
	if s.Corrections == 0 && s.TotalInputs == 0 {
		return ""
	}
	return fmt.Sprintf("corrections=%d total_inputs=%d identities=%v", s.Corrections, s.TotalInputs, s.Identities)
}
