package shared

func Pow2RoundUp(x int) int {
	if x <= 1 {
		return 1
	}
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	x++
	return x
}

func Log2RoundDown(x int) int {
	var result int
	for x > 1 {
		x >>= 1
		result++
	}
	return result
}

// ClampBucket converts a model prediction into a slot in [0, n).
// The comparison happens in float space so huge predictions never overflow int.
func ClampBucket(prediction float64, n int) int {
	if !(prediction > 0) {
		return 0
	}
	if prediction >= float64(n) {
		return n - 1
	}
	return min(int(prediction), n-1)
}
