// Copyright 2026 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package acdc

import (
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Channels returns the sorted list of decoded channel indices.
func (wfs Waveforms) Channels() []int {
	chs := make([]int, 0, len(wfs))
	for ch := range wfs {
		chs = append(chs, ch)
	}
	sort.Ints(chs)
	return chs
}

// ChanStats holds summary statistics of one channel waveform.
type ChanStats struct {
	Channel int
	Mean    float64
	StdDev  float64
	Min     uint16
	Max     uint16
}

// Stats computes per-channel statistics, ordered by channel index.
func (wfs Waveforms) Stats() []ChanStats {
	var (
		chs = wfs.Channels()
		o   = make([]ChanStats, 0, len(chs))
	)
	for _, ch := range chs {
		wf := wfs[ch]
		if len(wf) == 0 {
			o = append(o, ChanStats{Channel: ch})
			continue
		}
		xs := make([]float64, len(wf))
		st := ChanStats{Channel: ch, Min: wf[0], Max: wf[0]}
		for i, v := range wf {
			xs[i] = float64(v)
			if v < st.Min {
				st.Min = v
			}
			if v > st.Max {
				st.Max = v
			}
		}
		st.Mean, st.StdDev = stat.MeanStdDev(xs, nil)
		o = append(o, st)
	}
	return o
}

// Matrix returns the waveforms as a (channels x samples) matrix.
// Missing samples are left at zero.
func (wfs Waveforms) Matrix() *mat.Dense {
	m := mat.NewDense(NumChannels, NumSamples, nil)
	for ch, wf := range wfs {
		if ch < 0 || ch >= NumChannels {
			continue
		}
		for i, v := range wf {
			if i >= NumSamples {
				break
			}
			m.Set(ch, i, float64(v))
		}
	}
	return m
}
