package codec

import (
	"context"
	"errors"
	"fmt"

	"github.com/gilchrisn/graph-codec-bench/pkg/bitio"
	"github.com/gilchrisn/graph-codec-bench/pkg/graph"
)

// checkEvery is the number of nodes encoded between context checks.
const checkEvery = 4096

// EncodeRange appends the records of nodes [lo, hi) to w. References never
// leave the range. It returns each node's bit offset relative to w.Len() at
// the time of the call.
func EncodeRange(ctx context.Context, g *graph.Graph, lo, hi int, p Parameters, w *bitio.Writer) ([]uint64, error) {
	base := w.Len()
	offsets := make([]uint64, 0, hi-lo)
	resolver := NewResolver(p, lo, hi)

	for node := lo; node < hi; node++ {
		if (node-lo)%checkEvery == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		rec, err := resolver.Resolve(g, node)
		if err != nil {
			return nil, err
		}
		if rec.Reference > 0 && node-rec.Reference < lo {
			return nil, &EncodingError{Node: node, Reason: "reference crosses partition start"}
		}

		offsets = append(offsets, w.Len()-base)
		if err := WriteRecord(w, rec, p); err != nil {
			// the chosen codes cannot represent this record
			if errors.Is(err, bitio.ErrValueOutOfRange) {
				return nil, fmt.Errorf("%w: node %d: %w", ErrInvalidParameters, node, err)
			}
			return nil, &EncodingError{Node: node, Reason: "writing record", Err: err}
		}
	}

	return offsets, nil
}
