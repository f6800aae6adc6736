package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"

	"ledger/internal/core"
)

// Encode serializes transactions to the slot format: a JSON array of
// {id, name, amount, type, category, date}.
func Encode(txs []core.Transaction) ([]byte, error) {
	if txs == nil {
		txs = []core.Transaction{}
	}
	b, err := json.Marshal(txs)
	if err != nil {
		return nil, fmt.Errorf("encode transactions: %w", err)
	}
	return b, nil
}

// Decode parses the slot format. Empty input or a JSON null decode to an
// empty list; anything else that is not an array of transactions is
// reported as ErrCorruptState. Records repeating an earlier id keep their
// data and get fresh ids above the largest one; renumbered counts them.
func Decode(data []byte) (txs []core.Transaction, renumbered int, err error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []core.Transaction{}, 0, nil
	}

	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if txs == nil {
		txs = []core.Transaction{}
	}

	var maxID int64
	for _, tx := range txs {
		maxID = max(maxID, tx.ID)
	}
	seen := make(map[int64]struct{}, len(txs))
	for i := range txs {
		if _, dup := seen[txs[i].ID]; dup {
			maxID++
			txs[i].ID = maxID
			renumbered++
		}
		seen[txs[i].ID] = struct{}{}
	}
	return txs, renumbered, nil
}
