package chip

import "github.com/emusim/spiflashsim/spibus"

// lineSync carries one external line into the chip clock domain. Two
// capture stages must agree before a level is trusted, so a raw line change
// becomes visible two chip cycles after it is captured and metastable
// values never reach the downstream logic.
type lineSync struct {
	stage1 bool
	stage2 bool
	prev   bool
}

func (s *lineSync) capture(raw bool) {
	s.prev = s.stage2
	s.stage2 = s.stage1
	s.stage1 = raw
}

// level returns the synchronized line level.
func (s *lineSync) level() bool {
	return s.stage2
}

// rose reports a low-to-high change of the synchronized level this cycle.
func (s *lineSync) rose() bool {
	return s.stage2 && !s.prev
}

// fell reports a high-to-low change of the synchronized level this cycle.
func (s *lineSync) fell() bool {
	return !s.stage2 && s.prev
}

// settled reports that all stages agree, i.e. no change is still
// propagating through the synchronizer.
func (s *lineSync) settled() bool {
	return s.stage1 == s.stage2 && s.stage2 == s.prev
}

// strobes is the per-cycle output of the sampler: edge-qualified events in
// the chip clock domain.
type strobes struct {
	csAsserted   bool
	csDeasserted bool
	csLevel      bool
	sckRose      bool
	sckFell      bool
	mosi         bool
}

// sampler synchronizes the three master-driven SPI lines. The external
// clock may be arbitrarily slower than the chip clock; as long as it is
// slower, no edge is missed.
type sampler struct {
	cs   lineSync
	sck  lineSync
	mosi lineSync
}

// capture latches the raw line levels and derives this cycle's strobes.
// All three lines pass through synchronizers of equal depth, so the MOSI
// level reported with an SCK edge is the level that accompanied that edge
// on the wire.
func (s *sampler) capture(raw spibus.Levels) strobes {
	s.cs.capture(raw.CS)
	s.sck.capture(raw.SCK)
	s.mosi.capture(raw.MOSI)

	return strobes{
		csAsserted:   s.cs.rose(),
		csDeasserted: s.cs.fell(),
		csLevel:      s.cs.level(),
		sckRose:      s.sck.rose(),
		sckFell:      s.sck.fell(),
		mosi:         s.mosi.level(),
	}
}

// settled reports that no line change is still propagating.
func (s *sampler) settled() bool {
	return s.cs.settled() && s.sck.settled() && s.mosi.settled()
}
