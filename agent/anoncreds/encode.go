package anoncreds

import (
	"crypto/sha256"
	"math/big"
	"strconv"
	"strings"

	"github.com/findy-network/findy-cxs/agent/cxserr"
)

// Encode encodes the raw attribute value like Indy does: 32 bit integers stay
// as they are, other values are the SHA-256 of the raw string as a decimal
// number.
func Encode(raw string) string {
	if i, err := strconv.ParseInt(raw, 10, 32); err == nil {
		return strconv.FormatInt(i, 10)
	}
	h := sha256.Sum256([]byte(raw))
	return new(big.Int).SetBytes(h[:]).String()
}

const (
	PredicateGE = ">="
	PredicateGT = ">"
	PredicateLE = "<="
	PredicateLT = "<"
)

func checkPType(pType string) error {
	switch pType {
	case PredicateGE, PredicateGT, PredicateLE, PredicateLT:
		return nil
	}
	return cxserr.New(cxserr.InvalidParam, "predicate type '%s' not supported", pType)
}

// Satisfies tells if the raw value satisfies the predicate.
func Satisfies(raw, pType string, pValue int64) (bool, error) {
	if err := checkPType(pType); err != nil {
		return false, err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return false, nil
	}
	switch pType {
	case PredicateGE:
		return v >= pValue, nil
	case PredicateGT:
		return v > pValue, nil
	case PredicateLE:
		return v <= pValue, nil
	default:
		return v < pValue, nil
	}
}
