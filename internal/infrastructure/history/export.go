package history

import (
	"context"
	"encoding/json"
	"io"

	"github.com/doeshing/sentry-go/internal/ports"
)

// Export writes every decision record as JSONL, newest first.
func Export(ctx context.Context, store ports.DecisionStore, w io.Writer) (int, error) {
	records, err := store.Records(ctx, 0)
	if err != nil {
		return 0, err
	}
	encoder := json.NewEncoder(w)
	for _, rec := range records {
		if err := encoder.Encode(rec); err != nil {
			return 0, err
		}
	}
	return len(records), nil
}
