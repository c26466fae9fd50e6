package models

// TransferResult is the outcome of a transfer request once validation ran.
type TransferResult int

// The zero value is not a valid result; it accompanies a non-nil error.
const (
	_ TransferResult = iota
	Success
	CardNumberError
	SameAccountError
	CardNotExistsError
	InvalidAmountError
	NotEnoughMoneyError
)

var transferResultNames = map[TransferResult]string{
	Success:             "SUCCESS",
	CardNumberError:     "CARD_NUMBER_ERROR",
	SameAccountError:    "SAME_ACCOUNT_ERROR",
	CardNotExistsError:  "CARD_NOT_EXISTS_ERROR",
	InvalidAmountError:  "INVALID_AMOUNT_ERROR",
	NotEnoughMoneyError: "NOT_ENOUGH_MONEY_ERROR",
}

func (r TransferResult) String() string {
	if s, ok := transferResultNames[r]; ok {
		return s
	}
	return "UNKNOWN"
}

// MarshalText lets the HTTP API encode results by name.
func (r TransferResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
