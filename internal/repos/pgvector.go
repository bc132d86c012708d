package repos

import (
	"strconv"
	"strings"
)

// vectorLiteral renders a float32 slice as a pgvector text input, e.g.
// "[0.1,0.2,0.3]", bound as a query parameter and cast with ::vector at the
// call site. Grounded on original_source/pgvector_utils.py, which does the
// same string-building instead of relying on a driver-level vector type.
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
