package pagination

import "strconv"

const (
	// DefaultLimit is the page size used when none (or an invalid one) is given.
	DefaultLimit = 50

	// MaxLimit is the largest page size ever returned.
	MaxLimit = 100
)

// Result is one output window over a full result set.
type Result[T any] struct {
	Data    []T  `json:"data"`
	Total   int  `json:"total"`
	HasMore bool `json:"hasMore"`
}

// Normalize applies the offset and limit defaults and clamps the limit to [1, MaxLimit].
func Normalize(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return offset, limit
}

// ParseWindow parses raw query values. Absent or non-numeric values fall back to defaults.
func ParseWindow(offsetStr, limitStr string) (int, int) {
	offset, err := strconv.Atoi(offsetStr)
	if err != nil {
		offset = 0
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		limit = DefaultLimit
	}
	return Normalize(offset, limit)
}

// Window returns full[offset:offset+limit] with totals. Out-of-range windows
// are empty, never an error. The returned Data never aliases spare capacity of full.
func Window[T any](full []T, offset, limit int) Result[T] {
	offset, limit = Normalize(offset, limit)
	total := len(full)

	if offset >= total {
		return Result[T]{Data: []T{}, Total: total}
	}

	// offset < total here, so offset+limit cannot overflow.
	end := min(offset+limit, total)
	data := make([]T, 0, end-offset)
	data = append(data, full[offset:end]...)

	return Result[T]{
		Data:    data,
		Total:   total,
		HasMore: offset+limit < total,
	}
}
