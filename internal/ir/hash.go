package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Domain prefixes for digests. The version suffix allows the algorithm to
// change without colliding with stored values.
const (
	DomainChangeEvent = "tessera/change-event/v1"
	DomainRecord      = "tessera/record/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + NFC(data)). The separator
// keeps the domain/data boundary unambiguous. Data is NFC normalized so
// canonically equivalent strings share a digest.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(norm.NFC.Bytes(data))
	return hex.EncodeToString(h.Sum(nil))
}

// EventID computes the identifier of a change event. It is stable for a
// given model, record id, operation and commit sequence.
func EventID(model, recordID, op string, seq int64) (string, error) {
	obj := IRObject{
		"model": IRString(model),
		"id":    IRString(recordID),
		"op":    IRString(op),
		"seq":   IRInt(seq),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainChangeEvent, canonical), nil
}

// RecordDigest computes a content digest over a record's model name and
// field values. Two records with equal fields share a digest.
func RecordDigest(model string, fields IRObject) (string, error) {
	obj := IRObject{
		"model":  IRString(model),
		"fields": fields,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("RecordDigest: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRecord, canonical), nil
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEventID(model, recordID, op string, seq int64) string {
	id, err := EventID(model, recordID, op, seq)
	if err != nil {
		panic(err)
	}
	return id
}

// MustRecordDigest is like RecordDigest but panics on error.
func MustRecordDigest(model string, fields IRObject) string {
	d, err := RecordDigest(model, fields)
	if err != nil {
		panic(err)
	}
	return d
}
