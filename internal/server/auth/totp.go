package auth

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/skip2/go-qrcode"
)

const (
	totpSecretBytes = 20
	totpDigits      = 6
	totpPeriod      = 30
)

var base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

// TOTP implements RFC 6238 codes (SHA-1, 6 digits, 30 s steps) with a
// symmetric acceptance window of skew steps.
type TOTP struct {
	issuer string
	skew   int
	now    func() time.Time
}

func NewTOTP(issuer string, skew int, now func() time.Time) *TOTP {
	if now == nil {
		now = time.Now
	}
	return &TOTP{issuer: issuer, skew: skew, now: now}
}

// GenerateSecret returns a fresh base32 secret without padding.
func (t *TOTP) GenerateSecret() (string, error) {
	raw, err := common.GenerateRandByteArray(totpSecretBytes)
	if err != nil {
		return "", err
	}
	return base32NoPad.EncodeToString(raw), nil
}

// ProvisioningURI builds the otpauth:// URI authenticator apps import.
func (t *TOTP) ProvisioningURI(secret, account string) string {
	label := url.PathEscape(t.issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", t.issuer)
	v.Set("algorithm", "SHA1")
	v.Set("digits", strconv.Itoa(totpDigits))
	v.Set("period", strconv.Itoa(totpPeriod))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// Code returns the code for secret at the given instant.
func (t *TOTP) Code(secret string, at time.Time) (string, error) {
	key, err := decodeSecret(secret)
	if err != nil {
		return "", err
	}
	return hotp(key, at.Unix()/totpPeriod), nil
}

// Verify reports whether code is valid for secret now, within the skew window.
func (t *TOTP) Verify(secret, code string) bool {
	code = strings.TrimSpace(code)
	if len(code) != totpDigits || strings.Trim(code, "0123456789") != "" {
		return false
	}
	key, err := decodeSecret(secret)
	if err != nil || len(key) == 0 {
		return false
	}

	base := t.now().Unix() / totpPeriod
	for step := -t.skew; step <= t.skew; step++ {
		counter := base + int64(step)
		if counter < 0 {
			continue
		}
		if subtle.ConstantTimeCompare([]byte(hotp(key, counter)), []byte(code)) == 1 {
			return true
		}
	}
	return false
}

func decodeSecret(secret string) ([]byte, error) {
	s := strings.ToUpper(strings.TrimRight(strings.ReplaceAll(secret, " ", ""), "="))
	key, err := base32NoPad.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode totp secret: %w", err)
	}
	return key, nil
}

func hotp(key []byte, counter int64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (uint32(sum[offset])&0x7f)<<24 |
		uint32(sum[offset+1])<<16 |
		uint32(sum[offset+2])<<8 |
		uint32(sum[offset+3])

	return fmt.Sprintf("%0*d", totpDigits, bin%1_000_000)
}

// QRCodePNG renders content as a size x size PNG.
func QRCodePNG(content string, size int) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, size)
}
