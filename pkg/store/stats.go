package store

import (
	"gonum.org/v1/gonum/stat"

	"github.com/gilchrisn/graph-codec-bench/pkg/codec"
)

// Stats summarises how well a store compresses its graph.
type Stats struct {
	Nodes            int     `json:"nodes" yaml:"nodes"`
	Arcs             int64   `json:"arcs" yaml:"arcs"`
	GraphBits        uint64  `json:"graph_bits" yaml:"graph_bits"`
	BitsPerLink      float64 `json:"bits_per_link" yaml:"bits_per_link"`
	BitsPerNode      float64 `json:"bits_per_node" yaml:"bits_per_node"`
	BitsPerNodeStdev float64 `json:"bits_per_node_stddev" yaml:"bits_per_node_stddev"`
	MeanOutdegree    float64 `json:"mean_outdegree" yaml:"mean_outdegree"`
	OutdegreeStdev   float64 `json:"outdegree_stddev" yaml:"outdegree_stddev"`
	MaxOutdegree     int     `json:"max_outdegree" yaml:"max_outdegree"`

	ReferencedFraction  float64 `json:"referenced_fraction" yaml:"referenced_fraction"`
	MeanChainDepth      float64 `json:"mean_chain_depth" yaml:"mean_chain_depth"`
	MaxChainDepth       int     `json:"max_chain_depth" yaml:"max_chain_depth"`
	CopiedArcFraction   float64 `json:"copied_arc_fraction" yaml:"copied_arc_fraction"`
	IntervalArcFraction float64 `json:"interval_arc_fraction" yaml:"interval_arc_fraction"`
	ResidualArcFraction float64 `json:"residual_arc_fraction" yaml:"residual_arc_fraction"`
	Partitions          int     `json:"partitions" yaml:"partitions"`
	CompressionFlags    string  `json:"compression_flags" yaml:"compression_flags"`
	WindowSize          int     `json:"window_size" yaml:"window_size"`
	MaxRefCount         int     `json:"max_ref_count" yaml:"max_ref_count"`
	MinIntervalSize     int     `json:"min_interval_size" yaml:"min_interval_size"`
	ZetaK               int     `json:"zeta_k" yaml:"zeta_k"`
}

// ComputeStats decodes every record of s once and aggregates the results.
func ComputeStats(s *Store) (*Stats, error) {
	h := s.header
	st := &Stats{
		Nodes:            h.Nodes,
		Arcs:             h.Arcs,
		GraphBits:        h.GraphBits,
		Partitions:       h.Partitions,
		CompressionFlags: h.Params.Codes.CompressionFlags(),
		WindowSize:       h.Params.WindowSize,
		MaxRefCount:      h.Params.MaxRefCount,
		MinIntervalSize:  h.Params.MinIntervalSize,
		ZetaK:            h.Params.ZetaK,
	}
	if h.Nodes == 0 {
		return st, nil
	}

	degrees := make([]float64, 0, h.Nodes)
	nodeBits := make([]float64, 0, h.Nodes)
	depths := make([]float64, 0, h.Nodes)
	depth := make([]int, h.Nodes)
	var referenced, copied, inIntervals, residuals int64

	err := s.records(func(rec codec.Record, succ []int) bool {
		degrees = append(degrees, float64(rec.Outdegree))
		nodeBits = append(nodeBits, float64(s.recordBits(rec.Node)))
		st.MaxOutdegree = max(st.MaxOutdegree, rec.Outdegree)

		if rec.Reference > 0 {
			referenced++
			depth[rec.Node] = depth[rec.Node-rec.Reference] + 1
		}
		depths = append(depths, float64(depth[rec.Node]))
		st.MaxChainDepth = max(st.MaxChainDepth, depth[rec.Node])

		copied += int64(rec.Copied)
		for _, iv := range rec.Intervals {
			inIntervals += int64(iv.Length)
		}
		residuals += int64(len(rec.Residuals))
		return true
	})
	if err != nil {
		return nil, err
	}

	st.MeanOutdegree, st.OutdegreeStdev = meanStdDev(degrees)
	st.BitsPerNode, st.BitsPerNodeStdev = meanStdDev(nodeBits)
	st.MeanChainDepth = stat.Mean(depths, nil)
	st.ReferencedFraction = float64(referenced) / float64(h.Nodes)
	if h.Arcs > 0 {
		arcs := float64(h.Arcs)
		st.BitsPerLink = float64(h.GraphBits) / arcs
		st.CopiedArcFraction = float64(copied) / arcs
		st.IntervalArcFraction = float64(inIntervals) / arcs
		st.ResidualArcFraction = float64(residuals) / arcs
	}
	return st, nil
}

// meanStdDev is stat.MeanStdDev with a zero deviation for fewer than two
// samples, where the unbiased estimate is undefined.
func meanStdDev(x []float64) (float64, float64) {
	if len(x) < 2 {
		return stat.Mean(x, nil), 0
	}
	return stat.MeanStdDev(x, nil)
}
