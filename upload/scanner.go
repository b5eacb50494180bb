package upload

import "context"

// ScanResult is a malware scanner verdict.
type ScanResult struct {
	Infected bool   `json:"infected"`
	Threat   string `json:"threat,omitempty"`
}

// Scanner inspects file contents for malware.
type Scanner interface {
	Scan(ctx context.Context, name string, data []byte) (ScanResult, error)
}

// ScannerFunc adapts a function to Scanner.
type ScannerFunc func(ctx context.Context, name string, data []byte) (ScanResult, error)

func (f ScannerFunc) Scan(ctx context.Context, name string, data []byte) (ScanResult, error) {
	return f(ctx, name, data)
}
