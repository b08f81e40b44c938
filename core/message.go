package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MessageVersion is the only accepted challenge message format version
const MessageVersion = "1"

const headerSuffix = " wants you to sign in with your Ethereum account:"

// Message is a structured EIP-4361 challenge. The wallet signs the exact
// text produced by String, so encoding must stay byte-for-byte stable.
type Message struct {
	Domain         string
	Address        string
	Statement      string
	URI            string
	Version        string
	ChainID        int
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime time.Time // Zero when the challenge carries no expiration
}

// String serializes the message into its canonical text layout
func (m *Message) String() string {
	var b strings.Builder

	b.WriteString(m.Domain)
	b.WriteString(headerSuffix)
	b.WriteString("\n")
	b.WriteString(m.Address)
	b.WriteString("\n\n")

	if m.Statement != "" {
		b.WriteString(m.Statement)
		b.WriteString("\n\n")
	}

	b.WriteString("URI: ")
	b.WriteString(m.URI)
	b.WriteString("\nVersion: ")
	b.WriteString(m.Version)
	b.WriteString("\nChain ID: ")
	b.WriteString(strconv.Itoa(m.ChainID))
	b.WriteString("\nNonce: ")
	b.WriteString(m.Nonce)
	b.WriteString("\nIssued At: ")
	b.WriteString(m.IssuedAt.UTC().Format(time.RFC3339))

	if !m.ExpirationTime.IsZero() {
		b.WriteString("\nExpiration Time: ")
		b.WriteString(m.ExpirationTime.UTC().Format(time.RFC3339))
	}

	return b.String()
}

// IsExpired reports whether the message carries an expiration time that
// has passed
func (m *Message) IsExpired(now time.Time) bool {
	return !m.ExpirationTime.IsZero() && now.After(m.ExpirationTime)
}

// ParseMessage parses canonical challenge text back into a Message. Any
// structural deviation fails with ErrMalformedMessage.
func ParseMessage(raw string) (*Message, error) {
	lines := strings.Split(raw, "\n")
	if len(lines) < 8 {
		return nil, fmt.Errorf("too few lines: %w", ErrMalformedMessage)
	}

	domain, ok := strings.CutSuffix(lines[0], headerSuffix)
	if !ok || domain == "" {
		return nil, fmt.Errorf("bad header line: %w", ErrMalformedMessage)
	}

	address := lines[1]
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("bad address line: %w", ErrMalformedMessage)
	}

	if lines[2] != "" {
		return nil, fmt.Errorf("missing separator after address: %w", ErrMalformedMessage)
	}

	msg := &Message{
		Domain:  domain,
		Address: address,
	}

	// The statement block is optional: either the field section starts
	// right away, or a one-line statement followed by a blank line does.
	rest := lines[3:]
	if !strings.HasPrefix(rest[0], "URI: ") {
		if len(rest) < 2 || rest[0] == "" || rest[1] != "" {
			return nil, fmt.Errorf("bad statement block: %w", ErrMalformedMessage)
		}
		msg.Statement = rest[0]
		rest = rest[2:]
	}

	if len(rest) < 5 {
		return nil, fmt.Errorf("missing fields: %w", ErrMalformedMessage)
	}

	uri, err := fieldValue(rest[0], "URI")
	if err != nil {
		return nil, err
	}
	msg.URI = uri

	version, err := fieldValue(rest[1], "Version")
	if err != nil {
		return nil, err
	}
	if version != MessageVersion {
		return nil, fmt.Errorf("unsupported version %q: %w", version, ErrMalformedMessage)
	}
	msg.Version = version

	chainID, err := fieldValue(rest[2], "Chain ID")
	if err != nil {
		return nil, err
	}
	msg.ChainID, err = strconv.Atoi(chainID)
	if err != nil {
		return nil, fmt.Errorf("bad chain id %q: %w", chainID, ErrMalformedMessage)
	}

	msg.Nonce, err = fieldValue(rest[3], "Nonce")
	if err != nil {
		return nil, err
	}

	issuedAt, err := fieldValue(rest[4], "Issued At")
	if err != nil {
		return nil, err
	}
	msg.IssuedAt, err = time.Parse(time.RFC3339, issuedAt)
	if err != nil {
		return nil, fmt.Errorf("bad issued-at timestamp: %w", ErrMalformedMessage)
	}

	rest = rest[5:]
	if len(rest) > 0 {
		expiration, err := fieldValue(rest[0], "Expiration Time")
		if err != nil {
			return nil, err
		}
		msg.ExpirationTime, err = time.Parse(time.RFC3339, expiration)
		if err != nil {
			return nil, fmt.Errorf("bad expiration timestamp: %w", ErrMalformedMessage)
		}
		rest = rest[1:]
	}

	if len(rest) > 0 {
		return nil, fmt.Errorf("trailing content: %w", ErrMalformedMessage)
	}

	return msg, nil
}

func fieldValue(line, name string) (string, error) {
	value, ok := strings.CutPrefix(line, name+": ")
	if !ok || value == "" {
		return "", fmt.Errorf("missing %s field: %w", strings.ToLower(name), ErrMalformedMessage)
	}
	return value, nil
}
