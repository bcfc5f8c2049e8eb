package features

import (
	"errors"

	"fjacquet/autocat/internal/models"
	"fjacquet/autocat/internal/pipelineerror"
)

// AccountEncoderName identifies the account encoder in errors and artifacts.
const AccountEncoderName = "account"

// Vector is an encoded transaction:
// [text n-gram weights..., scaled amount, account code].
type Vector []float64

// Encoder converts transactions into Vectors with the fitted text
// vectorizer, account encoder and amount scaler. It holds no mutable state.
type Encoder struct {
	vectorizer *TfidfVectorizer
	accounts   *LabelEncoder
	amounts    *StandardScaler
	size       int
}

// NewEncoder assembles an encoder from fitted components.
func NewEncoder(vectorizer *TfidfVectorizer, accounts *LabelEncoder, amounts *StandardScaler) (*Encoder, error) {
	if vectorizer == nil || accounts == nil || amounts == nil {
		return nil, errors.New("encoder requires a vectorizer, an account encoder and an amount scaler")
	}
	if !vectorizer.Fitted() {
		return nil, errors.New("encoder requires a fitted vectorizer")
	}
	return &Encoder{
		vectorizer: vectorizer,
		accounts:   accounts,
		amounts:    amounts,
		size:       vectorizer.NumFeatures() + 2,
	}, nil
}

// NumFeatures is the fixed length of every encoded vector.
func (e *Encoder) NumFeatures() int {
	return e.size
}

// Vectorizer exposes the fitted text vectorizer.
func (e *Encoder) Vectorizer() *TfidfVectorizer {
	return e.vectorizer
}

// Accounts exposes the fitted account encoder.
func (e *Encoder) Accounts() *LabelEncoder {
	return e.accounts
}

// Amounts exposes the fitted amount scaler.
func (e *Encoder) Amounts() *StandardScaler {
	return e.amounts
}

// Encode builds the feature vector of tx. An account not seen at training
// time yields an UnknownCategoricalValueError.
func (e *Encoder) Encode(tx models.Transaction) (Vector, error) {
	text, err := e.vectorizer.Transform(tx.CombinedText())
	if err != nil {
		return nil, err
	}

	code, err := e.accounts.Encode(tx.AccountID)
	if err != nil {
		return nil, err
	}

	vec := make(Vector, 0, e.size)
	vec = append(vec, text...)
	vec = append(vec, e.amounts.Transform(tx.Amount.InexactFloat64()))
	vec = append(vec, float64(code))

	if len(vec) != e.size {
		return nil, &pipelineerror.FeatureMismatchError{Expected: e.size, Got: len(vec)}
	}
	return vec, nil
}

// EncodeAll encodes a batch, failing on the first error.
func (e *Encoder) EncodeAll(txs []models.Transaction) ([]Vector, error) {
	out := make([]Vector, len(txs))
	for i, tx := range txs {
		v, err := e.Encode(tx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
