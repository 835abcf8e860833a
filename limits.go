package rowpager

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// NormalizeLimitMax clamps limit into [1, maxLimit]. A non-positive limit
// yields DefaultLimit, a non-positive maxLimit yields MaxLimit.
func NormalizeLimitMax(limit int, maxLimit int) int {
	ret, _ := clampLimit(limit, DefaultLimit, maxLimit)
	return ret
}

// NormalizeLimit is NormalizeLimitMax with MaxLimit.
func NormalizeLimit(limit int) int {
	return NormalizeLimitMax(limit, MaxLimit)
}

// clampLimit returns the effective page size. defaultLimit replaces a
// non-positive limit and is itself capped by maxLimit. The boolean reports
// whether a positive limit had to be lowered.
func clampLimit(limit, defaultLimit, maxLimit int) (int, bool) {
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}

	if limit <= 0 {
		if defaultLimit <= 0 {
			defaultLimit = DefaultLimit
		}
		return min(defaultLimit, maxLimit), false
	}

	if limit > maxLimit {
		return maxLimit, true
	}

	return limit, false
}
