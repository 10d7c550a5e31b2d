package math

type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

func Min[T Integer](a, b T) T {
	if a < b {
		return a
	}
	return b
}

func DivRoundUp[T Integer](a, b T) T {
	if a%b == 0 {
		return a / b
	}
	return a/b + 1
}

// RoundDown rounds `a` down to a multiple of `b`.
func RoundDown[T Integer](a, b T) T {
	return a - a%b
}
