package wyvern

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// MaxErrorLength bounds contract error text shown to a user.
const MaxErrorLength = 120

var (
	// ErrValidation matches every ValidationError.
	ErrValidation = errors.New("validation error")

	// ErrDeclined matches every DeclinedError.
	ErrDeclined = errors.New("declined")

	// ErrSettlement matches every SettlementError.
	ErrSettlement = errors.New("settlement error")

	// ErrHashMismatch matches every HashMismatchError.
	ErrHashMismatch = errors.New("hash mismatch")
)

// ValidationError reports invalid order parameters or a precondition that
// failed before anything was sent.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// DeclinedError reports a signature or transaction the wallet refused.
type DeclinedError struct {
	Message string
	Err     error
}

func (e *DeclinedError) Error() string {
	return e.Message
}

func (e *DeclinedError) Unwrap() error { return e.Err }

func (e *DeclinedError) Is(target error) bool {
	return target == ErrDeclined
}

// SettlementError reports a failed match, gas estimate or transaction.
type SettlementError struct {
	Message string
	Err     error
}

func (e *SettlementError) Error() string {
	return e.Message
}

func (e *SettlementError) Unwrap() error { return e.Err }

func (e *SettlementError) Is(target error) bool {
	return target == ErrSettlement
}

// HashMismatchError is returned when the exchange hashes an order
// differently than the client did.
type HashMismatchError struct {
	Local  common.Hash
	Remote common.Hash
}

func (e *HashMismatchError) Error() string {
	return "Order couldn't be validated by the exchange due to a hash mismatch. Make sure your wallet is on the right network!"
}

func (e *HashMismatchError) Is(target error) bool {
	return target == ErrHashMismatch
}

func validationError(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// asValidation turns a parameter error from a helper package into a
// ValidationError, leaving typed errors alone.
func asValidation(err error) error {
	if err == nil {
		return nil
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return err
	}
	return &ValidationError{Message: err.Error()}
}

// truncate cuts s to MaxErrorLength characters.
func truncate(s string) string {
	r := []rune(s)
	if len(r) <= MaxErrorLength {
		return s
	}
	return string(r[:MaxErrorLength])
}
