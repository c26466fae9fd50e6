package cardgen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"
)

var (
	// ErrInvalidRange is returned when the account id range is empty.
	ErrInvalidRange = errors.New("invalid account id range")
	// ErrGeneration is returned when no check digit makes the number valid.
	ErrGeneration = errors.New("no valid check digit")
)

// Generate builds a card number from the bank prefix and an account id drawn
// uniformly from [minAccountID, maxAccountID], followed by a Luhn check digit.
func Generate(prefix, minAccountID, maxAccountID int64) (string, error) {
	return GenerateFrom(rand.Reader, prefix, minAccountID, maxAccountID)
}

// GenerateFrom is Generate with an explicit randomness source.
func GenerateFrom(r io.Reader, prefix, minAccountID, maxAccountID int64) (string, error) {
	if minAccountID > maxAccountID {
		return "", fmt.Errorf("%w: min %d > max %d", ErrInvalidRange, minAccountID, maxAccountID)
	}

	// span = max - min + 1，用 big.Int 避免极端区间溢出
	span := new(big.Int).Sub(big.NewInt(maxAccountID), big.NewInt(minAccountID))
	span.Add(span, big.NewInt(1))
	n, err := rand.Int(r, span)
	if err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	accountID := n.Add(n, big.NewInt(minAccountID))

	body := strconv.FormatInt(prefix, 10) + accountID.String()
	cd, ok := CheckDigit(body)
	if !ok {
		return "", fmt.Errorf("%w: body %s", ErrGeneration, body)
	}
	return body + string(cd), nil
}

// CheckDigit returns the smallest digit d such that body+d passes Validate.
func CheckDigit(body string) (byte, bool) {
	for d := byte('0'); d <= '9'; d++ {
		if Validate(body + string(d)) {
			return d, true
		}
	}
	return 0, false
}

// Validate reports whether candidate passes the Luhn checksum. Positions are
// counted from the left starting at 1 and every odd position is doubled.
// Empty or non-numeric input is never valid.
func Validate(candidate string) bool {
	if candidate == "" || !IsDigits(candidate) {
		return false
	}
	sum := 0
	for i := 0; i < len(candidate); i++ {
		d := int(candidate[i] - '0')
		if i%2 == 0 {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
	}
	return sum%10 == 0
}

// RandomDigits returns count random decimal digits, e.g. for PINs.
func RandomDigits(count int) (string, error) {
	return randomDigits(rand.Reader, count)
}

// randomDigits 使用拒绝采样避免模偏差：仅接受 < 250 的字节，再对 10 取模。
func randomDigits(r io.Reader, count int) (string, error) {
	if count <= 0 {
		return "", nil
	}
	const threshold = 250 // 256 - (256 % 10)
	var sb strings.Builder
	sb.Grow(count)
	buf := make([]byte, 64)
	for sb.Len() < count {
		n, err := r.Read(buf)
		if err != nil {
			return "", err
		}
		for i := 0; i < n && sb.Len() < count; i++ {
			b := buf[i]
			if b < threshold {
				sb.WriteByte('0' + (b % 10))
			}
		}
	}
	return sb.String(), nil
}

func IsDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// LastN / MaskPAN are shared with the issuer and tools.
func LastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func MaskPAN(pan string) string {
	cleaned := NormalizePAN(pan)
	n := len(cleaned)
	if n == 0 {
		return ""
	}
	if n <= 4 {
		return strings.Repeat("*", n)
	}
	if n < 10 {
		return strings.Repeat("*", n-4) + cleaned[n-4:]
	}
	return cleaned[:6] + strings.Repeat("*", n-10) + cleaned[n-4:]
}

// NormalizePAN strips spaces, tabs and dashes from user input.
func NormalizePAN(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-':
			return -1
		default:
			return r
		}
	}, s)
}
