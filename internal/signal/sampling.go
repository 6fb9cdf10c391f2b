package signal

// Sample bounds per-column work regardless of row count: the head and tail
// are always inspected and the middle is covered with an even stride, so
// repeated runs over the same values sample identically.
func Sample(values []string, cap int) []string {
	if cap <= 0 || len(values) <= cap {
		out := make([]string, len(values))
		copy(out, values)
		return out
	}

	edge := cap / 3
	middleQuota := cap - 2*edge

	out := make([]string, 0, cap)
	out = append(out, values[:edge]...)

	middle := values[edge : len(values)-edge]
	step := len(middle) / middleQuota
	if step < 1 {
		step = 1
	}
	for i := 0; i < len(middle) && len(out) < edge+middleQuota; i += step {
		out = append(out, middle[i])
	}

	out = append(out, values[len(values)-edge:]...)
	return out
}
