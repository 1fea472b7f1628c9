// Package ingest implements the inbound ingest surface (§6.1): synchronous
// upload validation and webhook payload normalization. It never touches the
// Store or the pipeline directly — both modes resolve to a validated
// (bucket, objectName, size, contentType) tuple that the caller hands to
// the orchestrator.
package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/clinictrack/emgcore/internal/emgerrors"
)

const stage = "ingest"

// Accepted event-type values for the webhook-triggered mode (§6.1).
var acceptedEventTypes = map[string]bool{
	"ObjectCreated:Post":       true,
	"storage-object-uploaded":  true,
	"storage-object-created":   true,
	"INSERT_storage.objects":   true,
}

// Limits bounds the synchronous-upload and webhook validation gates.
type Limits struct {
	MaxUploadBytes int64
	Bucket         string
	RequiredExt    string // ".c3d"
}

// DefaultLimits returns the §6.5 defaults (50 MiB cap, ".c3d" extension).
func DefaultLimits() Limits {
	return Limits{MaxUploadBytes: 50 * 1024 * 1024, Bucket: "emg-uploads", RequiredExt: ".c3d"}
}

// ValidateUpload checks a synchronous upload's file name and byte size
// against the configured limits (§6.1 "Synchronous upload").
func ValidateUpload(lim Limits, fileName string, size int64) error {
	if size <= 0 {
		return emgerrors.Validation(stage, "uploaded file is empty")
	}
	if lim.MaxUploadBytes > 0 && size > lim.MaxUploadBytes {
		return emgerrors.Validation(stage, fmt.Sprintf("uploaded file size %d exceeds limit %d", size, lim.MaxUploadBytes))
	}
	ext := lim.RequiredExt
	if ext == "" {
		ext = ".c3d"
	}
	if !strings.EqualFold(filepath.Ext(fileName), ext) {
		return emgerrors.Validation(stage, fmt.Sprintf("unsupported file extension %q, expected %q", filepath.Ext(fileName), ext))
	}
	return nil
}

// NormalizedEvent is the shape both webhook payload variants reduce to
// (§6.1 "the normalizer extracts").
type NormalizedEvent struct {
	EventType   string
	Bucket      string
	ObjectName  string
	ObjectSize  int64
	ContentType string
	Timestamp   string
}

// ValidateWebhookEvent runs the ordered validation gates over a normalized
// event: event type, extension, bucket, then size (§6.1 "in order").
func ValidateWebhookEvent(lim Limits, ev NormalizedEvent) error {
	if !acceptedEventTypes[ev.EventType] {
		return emgerrors.Validation(stage, fmt.Sprintf("unrecognized event type %q", ev.EventType))
	}
	ext := lim.RequiredExt
	if ext == "" {
		ext = ".c3d"
	}
	if !strings.EqualFold(filepath.Ext(ev.ObjectName), ext) {
		return emgerrors.Validation(stage, fmt.Sprintf("object %q does not have extension %q", ev.ObjectName, ext))
	}
	if lim.Bucket != "" && ev.Bucket != lim.Bucket {
		return emgerrors.Validation(stage, fmt.Sprintf("object in bucket %q, expected %q", ev.Bucket, lim.Bucket))
	}
	if ev.ObjectSize <= 0 {
		return emgerrors.Validation(stage, "object size must be positive")
	}
	if lim.MaxUploadBytes > 0 && ev.ObjectSize > lim.MaxUploadBytes {
		return emgerrors.Validation(stage, fmt.Sprintf("object size %d exceeds limit %d", ev.ObjectSize, lim.MaxUploadBytes))
	}
	return nil
}

// VerifySignature checks an HMAC-SHA256 signature over the raw webhook body
// using secret, comparing in constant time (§6.1 "Optional HMAC-SHA256
// signature verification"). An empty secret means signature verification is
// disabled for the deployment; callers should skip calling this in that case.
func VerifySignature(secret string, body []byte, signatureHex string) error {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	got, err := hex.DecodeString(strings.TrimSpace(signatureHex))
	if err != nil {
		return emgerrors.Signature(stage, "malformed signature encoding")
	}
	if !hmac.Equal(expected, got) {
		return emgerrors.Signature(stage, "signature does not match payload")
	}
	return nil
}
