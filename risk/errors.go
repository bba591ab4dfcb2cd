package risk

import "errors"

var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrQuantityExceedsPosition = errors.New("close quantity exceeds open position")
	ErrNoQuote                 = errors.New("no quote available")
	ErrNoPosition              = errors.New("no open position")
)
