package codec

import (
	"fmt"
	"math"
	"slices"

	"github.com/gilchrisn/graph-codec-bench/pkg/bitio"
)

// Interval is a run of Length consecutive node IDs starting at Start.
type Interval struct {
	Start  int
	Length int
}

// Record is the encoded form of one node's successor list.
type Record struct {
	Node      int
	Outdegree int
	Reference int // 0 for direct encoding, otherwise the backward distance
	Copied    int // successors taken from the referenced list

	// Blocks alternate copy and skip runs over the referenced list, starting
	// with a copy run that may be empty. The final run is not stored: it is a
	// copy run when len(Blocks) is even.
	Blocks    []int
	Intervals []Interval
	Residuals []int
}

// ZigZag maps v relative to base onto the non-negative integers.
func ZigZag(base, v int) uint64 {
	if v >= base {
		return 2 * uint64(v-base)
	}
	return 2*uint64(base-v) - 1
}

// UnZigZag inverts ZigZag.
func UnZigZag(base int, z uint64) int {
	if z%2 == 0 {
		return base + int(z/2)
	}
	return base - int((z+1)/2)
}

// BuildRecord computes the record for node with sorted successors succ. When
// ref > 0, refSucc must be the successor list of node-ref.
func BuildRecord(node int, succ []int, ref int, refSucc []int, p Parameters) Record {
	rec := Record{Node: node, Outdegree: len(succ)}
	if len(succ) == 0 {
		return rec
	}

	extra := succ
	if ref > 0 {
		rec.Reference = ref
		rec.Blocks, extra = copyBlocks(succ, refSucc)
		rec.Copied = len(succ) - len(extra)
	}

	rec.Intervals, rec.Residuals = extractIntervals(extra, p.MinIntervalSize)
	return rec
}

// copyBlocks walks refSucc against succ and returns the run lengths of copied
// and skipped entries along with the successors not covered by the copy.
func copyBlocks(succ, refSucc []int) ([]int, []int) {
	var blocks []int
	extra := make([]int, 0, len(succ))

	i, run := 0, 0
	copying := true
	for _, v := range refSucc {
		for i < len(succ) && succ[i] < v {
			extra = append(extra, succ[i])
			i++
		}
		present := i < len(succ) && succ[i] == v
		if present {
			i++
		}
		if present != copying {
			blocks = append(blocks, run)
			copying = present
			run = 0
		}
		run++
	}
	extra = append(extra, succ[i:]...)

	// the trailing run is implied by the parity of the block count
	return blocks, extra
}

// extractIntervals splits sorted values into maximal runs of at least minLen
// consecutive IDs and the remaining residuals.
func extractIntervals(values []int, minLen int) ([]Interval, []int) {
	if minLen == 0 {
		return nil, slices.Clone(values)
	}

	var intervals []Interval
	residuals := make([]int, 0, len(values))
	for i := 0; i < len(values); {
		j := i + 1
		for j < len(values) && values[j] == values[j-1]+1 {
			j++
		}
		if j-i >= minLen {
			intervals = append(intervals, Interval{Start: values[i], Length: j - i})
		} else {
			residuals = append(residuals, values[i:j]...)
		}
		i = j
	}
	return intervals, residuals
}

// codeSink is satisfied by *bitio.Writer and by the cost counter.
type codeSink interface {
	WriteCode(c bitio.Code, v uint64) (int, error)
}

type costCounter struct {
	bits int
}

func (c *costCounter) WriteCode(code bitio.Code, v uint64) (int, error) {
	n := bitio.CodeLength(code, v)
	if n < 0 {
		return 0, fmt.Errorf("%w: %d with %s", bitio.ErrValueOutOfRange, v, code)
	}
	c.bits += n
	return n, nil
}

// Cost returns the exact number of bits WriteRecord would emit, or
// math.MaxInt when some field cannot be represented with the selected codes.
func (rec Record) Cost(p Parameters) int {
	var c costCounter
	if err := writeRecord(&c, rec, p); err != nil {
		return math.MaxInt
	}
	return c.bits
}

// WriteRecord serializes rec to w.
func WriteRecord(w *bitio.Writer, rec Record, p Parameters) error {
	return writeRecord(w, rec, p)
}

func writeRecord(w codeSink, rec Record, p Parameters) error {
	if _, err := w.WriteCode(p.Code(p.Codes.Outdegree), uint64(rec.Outdegree)); err != nil {
		return fmt.Errorf("outdegree: %w", err)
	}
	if rec.Outdegree == 0 {
		return nil
	}

	if p.WindowSize > 0 {
		if _, err := w.WriteCode(p.Code(p.Codes.Reference), uint64(rec.Reference)); err != nil {
			return fmt.Errorf("reference: %w", err)
		}
	}

	if rec.Reference > 0 {
		if _, err := w.WriteCode(p.Code(p.Codes.BlockCount), uint64(len(rec.Blocks))); err != nil {
			return fmt.Errorf("block count: %w", err)
		}
		blockCode := p.Code(p.Codes.Blocks)
		for i, b := range rec.Blocks {
			v := uint64(b)
			if i > 0 {
				v--
			}
			if _, err := w.WriteCode(blockCode, v); err != nil {
				return fmt.Errorf("copy block %d: %w", i, err)
			}
		}
	}

	if p.MinIntervalSize > 0 && rec.Outdegree > rec.Copied {
		intervalCode := p.Code(p.Codes.Intervals)
		if _, err := w.WriteCode(intervalCode, uint64(len(rec.Intervals))); err != nil {
			return fmt.Errorf("interval count: %w", err)
		}
		prev := 0
		for i, iv := range rec.Intervals {
			var left uint64
			if i == 0 {
				left = ZigZag(rec.Node, iv.Start)
			} else {
				left = uint64(iv.Start - prev - 1)
			}
			if _, err := w.WriteCode(intervalCode, left); err != nil {
				return fmt.Errorf("interval %d start: %w", i, err)
			}
			if _, err := w.WriteCode(intervalCode, uint64(iv.Length-p.MinIntervalSize)); err != nil {
				return fmt.Errorf("interval %d length: %w", i, err)
			}
			prev = iv.Start + iv.Length
		}
	}

	residualCode := p.Code(p.Codes.Residuals)
	for i, v := range rec.Residuals {
		var gap uint64
		if i == 0 {
			gap = ZigZag(rec.Node, v)
		} else {
			gap = uint64(v - rec.Residuals[i-1] - 1)
		}
		if _, err := w.WriteCode(residualCode, gap); err != nil {
			return fmt.Errorf("residual %d: %w", i, err)
		}
	}

	return nil
}

// ReferenceFunc returns the already decoded successor list of node-ref.
type ReferenceFunc func(ref int) ([]int, error)

// ReadRecord decodes the record of node from r and expands it into a sorted
// successor list. numNodes bounds every decoded ID.
func ReadRecord(r *bitio.Reader, node, numNodes int, p Parameters, refs ReferenceFunc) (Record, []int, error) {
	start := r.Position()
	rec := Record{Node: node}
	bad := func(format string, args ...any) error {
		return &bitio.MalformedStreamError{Offset: start, Code: "record", Reason: fmt.Sprintf("node %d: ", node) + fmt.Sprintf(format, args...)}
	}

	d, err := r.ReadCode(p.Code(p.Codes.Outdegree))
	if err != nil {
		return rec, nil, fmt.Errorf("node %d outdegree: %w", node, err)
	}
	if d > uint64(numNodes) {
		return rec, nil, bad("outdegree %d exceeds %d nodes", d, numNodes)
	}
	rec.Outdegree = int(d)
	if rec.Outdegree == 0 {
		return rec, []int{}, nil
	}

	if p.WindowSize > 0 {
		ref, err := r.ReadCode(p.Code(p.Codes.Reference))
		if err != nil {
			return rec, nil, fmt.Errorf("node %d reference: %w", node, err)
		}
		if ref > uint64(p.WindowSize) || ref > uint64(node) {
			return rec, nil, bad("reference %d outside window", ref)
		}
		rec.Reference = int(ref)
	}

	var copied []int
	if rec.Reference > 0 {
		refSucc, err := refs(rec.Reference)
		if err != nil {
			return rec, nil, fmt.Errorf("node %d reference %d: %w", node, rec.Reference, err)
		}
		count, err := r.ReadCode(p.Code(p.Codes.BlockCount))
		if err != nil {
			return rec, nil, fmt.Errorf("node %d block count: %w", node, err)
		}
		if count > uint64(len(refSucc)) {
			return rec, nil, bad("%d copy blocks for a list of %d", count, len(refSucc))
		}
		rec.Blocks = make([]int, count)
		blockCode := p.Code(p.Codes.Blocks)
		pos := 0
		for i := range rec.Blocks {
			b, err := r.ReadCode(blockCode)
			if err != nil {
				return rec, nil, fmt.Errorf("node %d copy block %d: %w", node, i, err)
			}
			if i > 0 {
				b++
			}
			if b > uint64(len(refSucc)-pos) {
				return rec, nil, bad("copy blocks overrun referenced list")
			}
			rec.Blocks[i] = int(b)
			pos += int(b)
		}
		copied = CopiedSuccessors(rec, refSucc)
		if len(copied) > rec.Outdegree {
			return rec, nil, bad("copied %d successors, outdegree is %d", len(copied), rec.Outdegree)
		}
		rec.Copied = len(copied)
	}

	extra := rec.Outdegree - rec.Copied
	if p.MinIntervalSize > 0 && extra > 0 {
		intervalCode := p.Code(p.Codes.Intervals)
		count, err := r.ReadCode(intervalCode)
		if err != nil {
			return rec, nil, fmt.Errorf("node %d interval count: %w", node, err)
		}
		if count > uint64(extra) || int(count)*p.MinIntervalSize > extra {
			return rec, nil, bad("%d intervals for %d values", count, extra)
		}
		rec.Intervals = make([]Interval, count)
		prev := 0
		for i := range rec.Intervals {
			left, err := r.ReadCode(intervalCode)
			if err != nil {
				return rec, nil, fmt.Errorf("node %d interval %d start: %w", node, i, err)
			}
			length, err := r.ReadCode(intervalCode)
			if err != nil {
				return rec, nil, fmt.Errorf("node %d interval %d length: %w", node, i, err)
			}
			var startID int
			if i == 0 {
				startID = UnZigZag(node, left)
			} else {
				startID = prev + 1 + int(left)
			}
			n := int(length) + p.MinIntervalSize
			if length > uint64(extra) || n > extra {
				return rec, nil, bad("interval length %d exceeds %d values", n, extra)
			}
			if startID < 0 || startID+n > numNodes {
				return rec, nil, bad("interval [%d,%d) outside node range", startID, startID+n)
			}
			rec.Intervals[i] = Interval{Start: startID, Length: n}
			extra -= n
			prev = startID + n
		}
	}

	rec.Residuals = make([]int, extra)
	residualCode := p.Code(p.Codes.Residuals)
	for i := range rec.Residuals {
		gap, err := r.ReadCode(residualCode)
		if err != nil {
			return rec, nil, fmt.Errorf("node %d residual %d: %w", node, i, err)
		}
		var v int
		if i == 0 {
			v = UnZigZag(node, gap)
		} else {
			if gap >= uint64(numNodes) {
				return rec, nil, bad("residual gap %d out of range", gap)
			}
			v = rec.Residuals[i-1] + 1 + int(gap)
		}
		if v < 0 || v >= numNodes {
			return rec, nil, bad("residual %d outside node range", v)
		}
		rec.Residuals[i] = v
	}

	succ, err := Expand(rec, copied)
	if err != nil {
		return rec, nil, bad("%v", err)
	}
	return rec, succ, nil
}

// Expand merges the copied list, the intervals and the residuals of rec into
// the sorted successor list. copied must already be filtered by the blocks.
func Expand(rec Record, copied []int) ([]int, error) {
	succ := make([]int, 0, rec.Outdegree)
	succ = append(succ, copied...)
	for _, iv := range rec.Intervals {
		for v := iv.Start; v < iv.Start+iv.Length; v++ {
			succ = append(succ, v)
		}
	}
	succ = append(succ, rec.Residuals...)
	if len(succ) != rec.Outdegree {
		return nil, fmt.Errorf("expanded %d successors, outdegree is %d", len(succ), rec.Outdegree)
	}

	slices.Sort(succ)
	for i := 1; i < len(succ); i++ {
		if succ[i] == succ[i-1] {
			return nil, fmt.Errorf("duplicate successor %d", succ[i])
		}
	}
	return succ, nil
}

// CopiedSuccessors applies the copy blocks of rec to refSucc. The blocks must
// not overrun refSucc.
func CopiedSuccessors(rec Record, refSucc []int) []int {
	var copied []int
	pos := 0
	for i, b := range rec.Blocks {
		if i%2 == 0 {
			copied = append(copied, refSucc[pos:pos+b]...)
		}
		pos += b
	}
	if len(rec.Blocks)%2 == 0 {
		copied = append(copied, refSucc[pos:]...)
	}
	return copied
}
