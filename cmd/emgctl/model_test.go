package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/clinictrack/emgcore/pkg/models"
)

func TestLastErrorText_NilIsEmptyString(t *testing.T) {
	assert.Equal(t, "", lastErrorText(models.Session{}))
}

func TestLastErrorText_FormatsKindAndMessage(t *testing.T) {
	s := models.Session{ProcessingErrorMessage: &models.ProcessingError{Kind: "file_corruption", Message: "bad header"}}
	assert.Equal(t, "[file_corruption] bad header", lastErrorText(s))
}

func TestElapsedSince_ZeroTimeIsDash(t *testing.T) {
	assert.Equal(t, "-", elapsedSince(time.Time{}))
}

func TestElapsedSince_NonZeroProducesDuration(t *testing.T) {
	got := elapsedSince(time.Now().Add(-90 * time.Second))
	assert.Contains(t, got, "1m3")
}

func TestRowsFor_OneRowPerSession(t *testing.T) {
	sessions := []models.Session{
		{Code: "P001S001", Status: models.SessionCompleted, UpdatedAt: time.Now()},
		{Code: "P001S002", Status: models.SessionFailed, UpdatedAt: time.Now(),
			ProcessingErrorMessage: &models.ProcessingError{Kind: "processing_failure", Message: "timeout"}},
	}
	rows := rowsFor(sessions)
	assert.Len(t, rows, 2)
	assert.Equal(t, "P001S001", rows[0][0])
	assert.Equal(t, "completed", rows[0][1])
	assert.Equal(t, "[processing_failure] timeout", rows[1][3])
}
