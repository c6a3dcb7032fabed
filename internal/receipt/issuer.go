package receipt

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// WriteURLExpiry is how long an issued upload URL stays valid. Callers cannot
// override it.
const WriteURLExpiry = 5 * time.Minute

// DefaultUploadPrefix namespaces every uploaded object
const DefaultUploadPrefix = "Receipts/"

// Presigner mints a time-limited write URL for one object
type Presigner interface {
	PresignPut(ctx context.Context, objectName, contentType string, expiry time.Duration) (string, error)
}

// CredentialIssuer hands out short-lived upload URLs for receipt files
type CredentialIssuer struct {
	presigner Presigner
	prefix    string
}

// NewCredentialIssuer creates a CredentialIssuer that places objects under prefix
func NewCredentialIssuer(presigner Presigner, prefix string) *CredentialIssuer {
	return &CredentialIssuer{
		presigner: presigner,
		prefix:    prefix,
	}
}

// IssueWriteCredential returns a URL permitting one PUT of objectName with
// contentType. Nothing is written to the store until the caller uses it.
func (i *CredentialIssuer) IssueWriteCredential(ctx context.Context, objectName, contentType string) (string, error) {
	objectName = strings.TrimSpace(objectName)
	if objectName == "" {
		return "", fmt.Errorf("%w: fileName is required", ErrBadRequest)
	}
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return "", fmt.Errorf("%w: fileType is required", ErrBadRequest)
	}

	url, err := i.presigner.PresignPut(ctx, i.prefix+objectName, contentType, WriteURLExpiry)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCredential, err)
	}
	return url, nil
}
