package txbuilder

import (
	"errors"

	"shieldtx/internal/codec"
	"shieldtx/internal/encryption"
	"shieldtx/internal/note"
	"shieldtx/internal/solver"
)

var (
	ErrTokenMismatch     = errors.New("output token does not match transaction token")
	ErrTooManyOutputs    = errors.New("too many outputs specified")
	ErrNoBalance         = errors.New("no wallet balance for token")
	ErrDuplicateWithdraw = errors.New("withdraw may only be called once per transaction")
	ErrMissingSharedKey  = errors.New("shared symmetric key is not defined")
	ErrTreeNumber        = errors.New("spending tree number does not fit in uint16")
)

// ErrorClass maps a build error to a short label for metrics.
func ErrorClass(err error) string {
	var ibe *solver.InsufficientBalanceError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTokenMismatch):
		return "token_mismatch"
	case errors.Is(err, ErrTooManyOutputs):
		return "too_many_outputs"
	case errors.Is(err, ErrNoBalance):
		return "no_balance"
	case errors.As(err, &ibe):
		switch ibe.Reason {
		case solver.Fragmented:
			return "fragmented"
		case solver.InputLimit:
			return "input_limit"
		}
		return "insufficient_balance"
	case errors.Is(err, ErrDuplicateWithdraw):
		return "duplicate_withdraw"
	case errors.Is(err, note.ErrInvalidNote):
		return "invalid_note"
	case errors.Is(err, ErrMissingSharedKey):
		return "missing_shared_key"
	case errors.Is(err, encryption.ErrDecryption):
		return "decryption"
	case errors.Is(err, codec.ErrEncoding):
		return "encoding"
	default:
		return "error"
	}
}
