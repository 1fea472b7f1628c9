package ingest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinictrack/emgcore/internal/emgerrors"
)

func TestValidateUpload_RejectsWrongExtension(t *testing.T) {
	err := ValidateUpload(DefaultLimits(), "session.txt", 1024)
	require.Error(t, err)
	assert.Equal(t, emgerrors.KindValidation, emgerrors.KindOf(err))
}

func TestValidateUpload_RejectsOversize(t *testing.T) {
	lim := DefaultLimits()
	lim.MaxUploadBytes = 100
	err := ValidateUpload(lim, "session.c3d", 200)
	require.Error(t, err)
}

func TestValidateUpload_RejectsEmpty(t *testing.T) {
	err := ValidateUpload(DefaultLimits(), "session.c3d", 0)
	require.Error(t, err)
}

func TestValidateUpload_AcceptsWellFormed(t *testing.T) {
	err := ValidateUpload(DefaultLimits(), "session.C3D", 2048)
	assert.NoError(t, err)
}

func TestValidateWebhookEvent_GatesRunInOrder(t *testing.T) {
	lim := DefaultLimits()

	_, err := NormalizeWebhookPayload([]byte(`{"eventType":"bogus","bucket":"emg-uploads","objectName":"a.c3d","objectSize":10}`))
	require.NoError(t, err)
	// The event fails every gate; the event-type gate must be the one reported.
	ev := NormalizedEvent{EventType: "bogus", Bucket: "other-bucket", ObjectName: "a.txt", ObjectSize: 0}
	err = ValidateWebhookEvent(lim, ev)
	require.Error(t, err)
	assert.Equal(t, emgerrors.KindValidation, emgerrors.KindOf(err))
	assert.Contains(t, err.Error(), "unrecognized event type")
}

func TestValidateWebhookEvent_AcceptsLegacyShape(t *testing.T) {
	ev, err := NormalizeWebhookPayload([]byte(`{
		"eventType":"ObjectCreated:Post",
		"bucket":"emg-uploads",
		"objectName":"session-42.c3d",
		"objectSize":4096,
		"contentType":"application/octet-stream",
		"timestamp":"2026-07-01T00:00:00Z"
	}`))
	require.NoError(t, err)
	require.NoError(t, ValidateWebhookEvent(DefaultLimits(), ev))
	assert.Equal(t, "session-42.c3d", ev.ObjectName)
}

func TestValidateWebhookEvent_AcceptsDatabaseTriggerShape(t *testing.T) {
	ev, err := NormalizeWebhookPayload([]byte(`{
		"type":"INSERT",
		"table":"objects",
		"schema":"storage",
		"record":{
			"id":"abc",
			"name":"session-7.c3d",
			"bucket_id":"emg-uploads",
			"metadata":{"size":8192,"mimetype":"application/octet-stream"},
			"created_at":"2026-07-01T00:00:00Z"
		}
	}`))
	require.NoError(t, err)
	require.NoError(t, ValidateWebhookEvent(DefaultLimits(), ev))
	assert.Equal(t, "INSERT_storage.objects", ev.EventType)
	assert.Equal(t, int64(8192), ev.ObjectSize)
}

func TestValidateWebhookEvent_RejectsWrongBucket(t *testing.T) {
	ev := NormalizedEvent{EventType: "ObjectCreated:Post", Bucket: "other-bucket", ObjectName: "a.c3d", ObjectSize: 10}
	err := ValidateWebhookEvent(DefaultLimits(), ev)
	require.Error(t, err)
}

func TestNormalizeWebhookPayload_RejectsMalformedJSON(t *testing.T) {
	_, err := NormalizeWebhookPayload([]byte(`not json`))
	require.Error(t, err)
}

func TestNormalizeWebhookPayload_RejectsMissingLegacyFields(t *testing.T) {
	_, err := NormalizeWebhookPayload([]byte(`{"eventType":"ObjectCreated:Post"}`))
	require.Error(t, err)
}

func TestVerifySignature_AcceptsValidMAC(t *testing.T) {
	secret := "shared-secret"
	body := []byte(`{"eventType":"ObjectCreated:Post"}`)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	assert.NoError(t, VerifySignature(secret, body, sig))
}

func TestVerifySignature_RejectsMismatch(t *testing.T) {
	err := VerifySignature("shared-secret", []byte(`{}`), hex.EncodeToString([]byte("wrong")))
	require.Error(t, err)
	assert.Equal(t, emgerrors.KindSignature, emgerrors.KindOf(err))
}

func TestVerifySignature_RejectsMalformedEncoding(t *testing.T) {
	err := VerifySignature("shared-secret", []byte(`{}`), "not-hex!!")
	require.Error(t, err)
}
