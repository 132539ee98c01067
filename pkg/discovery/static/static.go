package static

import (
    "github.com/amirimatin/clusterdash/pkg/discovery"
)

type staticSeeds []string

func (s staticSeeds) Seeds() []string { return append([]string(nil), s...) }

// New returns a Discovery that always returns the given seeds.
func New(seeds ...string) discovery.Discovery { return staticSeeds(discovery.Normalize(seeds)) }

// FromCSV is New over a comma-separated list such as a --seeds flag value.
func FromCSV(csv string) discovery.Discovery { return New(discovery.SplitCSV(csv)...) }
