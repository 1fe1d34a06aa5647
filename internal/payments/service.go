// Package payments simulates gateway processing for non-cash tenders.
// It validates tender details and mints transaction ids; it never talks
// to a real gateway.
package payments

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"github.com/greenbasket/greenbasket-backend/pkg/enums"
	pkgerrors "github.com/greenbasket/greenbasket-backend/pkg/errors"
)

const txnSuffixCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CardDetails carries the fields a card form collects.
type CardDetails struct {
	Number         string
	Expiry         string // MM/YY
	CVV            string
	CardholderName string
}

// Result is the simulated gateway response.
type Result struct {
	TransactionID string              `json:"transaction_id"`
	Method        enums.PaymentMethod `json:"method"`
	Amount        decimal.Decimal     `json:"amount"`
	Status        enums.PaymentStatus `json:"status"`
	ProcessedAt   time.Time           `json:"processed_at"`
}

// ValidateCard checks the number, expiry and CVV a card form collected.
func ValidateCard(details CardDetails) error {
	number := strings.ReplaceAll(details.Number, " ", "")
	if len(number) != 16 || !allDigits(number) {
		return pkgerrors.New(pkgerrors.CodeValidation, "card number must be 16 digits")
	}
	if err := validateExpiry(details.Expiry); err != nil {
		return err
	}
	if len(details.CVV) != 3 || !allDigits(details.CVV) {
		return pkgerrors.New(pkgerrors.CodeValidation, "cvv must be 3 digits")
	}
	return nil
}

// ValidatePayPalEmail checks the shape of a PayPal account email.
func ValidatePayPalEmail(email string) error {
	parts := strings.Split(email, "@")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid paypal email")
	}
	return nil
}

// ValidateGPayPhone checks the phone number linked to a GPay account.
// Formatting characters are ignored.
func ValidateGPayPhone(phone string) error {
	digits := 0
	for _, r := range phone {
		if unicode.IsDigit(r) {
			digits++
		}
	}
	if digits < 10 {
		return pkgerrors.New(pkgerrors.CodeValidation, "phone number must have at least 10 digits")
	}
	return nil
}

// ProcessCard simulates a card charge.
func ProcessCard(details CardDetails, amount decimal.Decimal) (*Result, error) {
	if err := ValidateCard(details); err != nil {
		return nil, err
	}
	return simulate(enums.PaymentMethodCard, amount)
}

// ProcessPayPal simulates a PayPal charge.
func ProcessPayPal(email string, amount decimal.Decimal) (*Result, error) {
	if err := ValidatePayPalEmail(email); err != nil {
		return nil, err
	}
	return simulate(enums.PaymentMethodPayPal, amount)
}

// ProcessGPay simulates a GPay charge.
func ProcessGPay(phone string, amount decimal.Decimal) (*Result, error) {
	if err := ValidateGPayPhone(phone); err != nil {
		return nil, err
	}
	return simulate(enums.PaymentMethodGPay, amount)
}

// ProcessNetBanking simulates a bank transfer.
func ProcessNetBanking(bankName, accountNumber string, amount decimal.Decimal) (*Result, error) {
	if strings.TrimSpace(bankName) == "" || strings.TrimSpace(accountNumber) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bank name and account number required")
	}
	if len(accountNumber) < 8 || !allDigits(accountNumber) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid account number")
	}
	return simulate(enums.PaymentMethodNetBanking, amount)
}

func simulate(method enums.PaymentMethod, amount decimal.Decimal) (*Result, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	id, err := generateTransactionID(time.Now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate transaction id")
	}
	return &Result{
		TransactionID: id,
		Method:        method,
		Amount:        amount,
		Status:        enums.PaymentStatusPaid,
		ProcessedAt:   time.Now().UTC(),
	}, nil
}

// generateTransactionID returns TXN<timestamp><6 random chars>.
func generateTransactionID(now time.Time) (string, error) {
	var b strings.Builder
	b.WriteString("TXN")
	b.WriteString(now.UTC().Format("20060102150405"))
	max := big.NewInt(int64(len(txnSuffixCharset)))
	for i := 0; i < 6; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(txnSuffixCharset[n.Int64()])
	}
	return b.String(), nil
}

func validateExpiry(expiry string) error {
	invalid := pkgerrors.New(pkgerrors.CodeValidation, "expiry date format should be MM/YY")
	if len(expiry) != 5 || expiry[2] != '/' {
		return invalid
	}
	month, err := strconv.Atoi(expiry[:2])
	if err != nil {
		return invalid
	}
	year, err := strconv.Atoi(expiry[3:])
	if err != nil {
		return invalid
	}
	if month < 1 || month > 12 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid expiry month")
	}
	if time.Date(2000+year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC).Before(time.Now().UTC()) {
		return pkgerrors.New(pkgerrors.CodeValidation, "card expired")
	}
	return nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
