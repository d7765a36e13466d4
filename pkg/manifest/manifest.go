// Package manifest builds the hashed export manifest for one incident's
// evidence package. The manifest is the artifact handed to legal tooling: a
// verifier that trusts the three sub-hashes can re-derive the package hash
// without re-reading the underlying collections.
package manifest

import (
	"fmt"
	"sort"
	"time"

	"github.com/lucid-vigil/warden/pkg/canonical"
	"github.com/lucid-vigil/warden/pkg/evidence"
)

// Manifest is a point-in-time, hashed snapshot of one incident's evidence,
// custody chain and command audits.
type Manifest struct {
	ParentID      string `json:"parentId"`
	IncidentID    string `json:"incidentId"`
	ExportedBy    string `json:"exportedBy"`
	GeneratedAt   string `json:"generatedAt"`
	RecordCount   int    `json:"recordCount"`
	CustodyCount  int    `json:"custodyCount"`
	AuditCount    int    `json:"auditCount"`
	RecordsSHA256 string `json:"recordsSha256"`
	CustodySHA256 string `json:"custodySha256"`
	AuditsSHA256  string `json:"auditsSha256"`
	PackageSHA256 string `json:"packageSha256"`
}

// Build snapshots the three collections for an incident into a manifest.
// Each collection is normalized into chronological order before hashing, so
// the caller may pass documents in any order and still get byte-identical
// hashes. A zero generatedAt defaults to the current UTC time; verifiers
// re-building a manifest must pass the original generation time.
func Build(parentID, incidentID, exportedBy string, records, custody, audits []map[string]interface{}, generatedAt time.Time) (Manifest, error) {
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}

	recordsHash, err := collectionHash(records)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest: records: %w", err)
	}
	custodyHash, err := collectionHash(custody)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest: custody: %w", err)
	}
	auditsHash, err := collectionHash(audits)
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest: audits: %w", err)
	}

	generated := generatedAt.UTC().Format(time.RFC3339)

	// The package hash covers identity plus the three sub-hashes, never the
	// raw content directly.
	packageHash, err := canonical.HashHex(map[string]interface{}{
		"parent_id":      parentID,
		"incident_id":    incidentID,
		"exported_by":    exportedBy,
		"generated_at":   generated,
		"records_sha256": recordsHash,
		"custody_sha256": custodyHash,
		"audits_sha256":  auditsHash,
	})
	if err != nil {
		return Manifest{}, fmt.Errorf("manifest: package hash: %w", err)
	}

	return Manifest{
		ParentID:      parentID,
		IncidentID:    incidentID,
		ExportedBy:    exportedBy,
		GeneratedAt:   generated,
		RecordCount:   len(records),
		CustodyCount:  len(custody),
		AuditCount:    len(audits),
		RecordsSHA256: recordsHash,
		CustodySHA256: custodyHash,
		AuditsSHA256:  auditsHash,
		PackageSHA256: packageHash,
	}, nil
}

// collectionHash sorts a copy of the documents chronologically and hashes
// the ordered collection. Documents without a parsable timestamp sort
// earliest; ties keep their relative input order.
func collectionHash(docs []map[string]interface{}) (string, error) {
	ordered := make([]interface{}, len(docs))
	idx := make([]int, len(docs))
	for i := range docs {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return evidence.DocTimestamp(docs[idx[a]]) < evidence.DocTimestamp(docs[idx[b]])
	})
	for i, j := range idx {
		ordered[i] = docs[j]
	}
	return canonical.HashHex(ordered)
}
