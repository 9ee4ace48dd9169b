package sheets

import (
	"context"

	"duorico/internal/core"
)

// Ports for outbound mirror adapters.
type (
	// TransactionWriter appends one transaction to the mirror sheet. Appending
	// a transaction id that is already mirrored replaces the old row.
	TransactionWriter interface {
		Append(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}

	// TransactionRemover clears mirrored rows by transaction id. Unknown ids
	// are not an error.
	TransactionRemover interface {
		Remove(ctx context.Context, transactionIDs []string) error
	}
)
