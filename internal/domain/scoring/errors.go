package scoring

import "errors"

// ErrMalformedGuess reports a guess that cannot be read as a number.
var ErrMalformedGuess = errors.New("malformed guess")
