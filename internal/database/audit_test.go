package database

import (
	"context"
	"encoding/json"
	"serwer-gabinetu/internal/models"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestAppendAndListAccessLogs(t *testing.T) {
	ownerID := createTestUser(t, "audit_owner")
	patientID := createTestPatient(t, ownerID)
	share := createTestShareRow(t, CreateShareParams{
		OwnerID: ownerID, ShareType: models.ShareTypePatient, PatientID: &patientID,
	})

	ip := "10.0.0.5"
	agent := "test-agent"
	resourceType := "patient"
	resourceID := patientID.String()

	err := testStore.AppendAccessLog(context.Background(), AppendAccessLogParams{
		ShareID:   share.ID,
		Action:    models.ActionAccessGranted,
		ClientIP:  &ip,
		UserAgent: &agent,
	})
	require.NoError(t, err)

	err = testStore.AppendAccessLog(context.Background(), AppendAccessLogParams{
		ShareID:      share.ID,
		Action:       models.ActionDataModified,
		ResourceType: &resourceType,
		ResourceID:   &resourceID,
		OldData:      json.RawMessage(`{"phone":"600100200"}`),
		NewData:      json.RawMessage(`{"phone":"700300400"}`),
	})
	require.NoError(t, err)

	logs, err := testStore.ListAccessLogs(context.Background(), share.ID, 100, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	// Insertion order is preserved.
	require.Equal(t, models.ActionAccessGranted, logs[0].Action)
	require.Equal(t, ip, *logs[0].ClientIP)
	require.Equal(t, agent, *logs[0].UserAgent)
	require.NotZero(t, logs[0].CreatedAt)

	require.Equal(t, models.ActionDataModified, logs[1].Action)
	require.Equal(t, "patient", *logs[1].ResourceType)
	require.Equal(t, resourceID, *logs[1].ResourceID)
	require.JSONEq(t, `{"phone":"600100200"}`, string(logs[1].OldData))
	require.JSONEq(t, `{"phone":"700300400"}`, string(logs[1].NewData))
	require.Greater(t, logs[1].ID, logs[0].ID)
}

func TestListAccessLogs_Pagination(t *testing.T) {
	ownerID := createTestUser(t, "audit_pages")
	patientID := createTestPatient(t, ownerID)
	share := createTestShareRow(t, CreateShareParams{
		OwnerID: ownerID, ShareType: models.ShareTypePatient, PatientID: &patientID,
	})

	for i := 0; i < 5; i++ {
		err := testStore.AppendAccessLog(context.Background(), AppendAccessLogParams{
			ShareID: share.ID,
			Action:  models.ActionAccessDenied,
		})
		require.NoError(t, err)
	}

	page, err := testStore.ListAccessLogs(context.Background(), share.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)

	tail, err := testStore.ListAccessLogs(context.Background(), share.ID, 100, 4)
	require.NoError(t, err)
	require.Len(t, tail, 1)
}

func TestListAccessLogs_EmptyIsNotNil(t *testing.T) {
	logs, err := testStore.ListAccessLogs(context.Background(), uuid.New(), 100, 0)
	require.NoError(t, err)
	require.NotNil(t, logs)
	require.Len(t, logs, 0)
}
