package param

import "context"

// Fetcher resolves secrets and settings by path from a parameter store.
type Fetcher interface {
	Fetch(context.Context, string) (string, error)
	FetchAll(context.Context, string) ([]string, error)
}
