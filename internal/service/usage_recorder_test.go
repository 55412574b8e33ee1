package service_test

import (
	"context"
	"testing"

	"shortlink/internal/domain"
	"shortlink/internal/repository"
	"shortlink/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestUsageRecorder_Record(t *testing.T) {
	repo := repository.NewMemoryRepository()
	recorder := service.NewUsageRecorder(repo, domain.NewMockClock(baseTime), nil)

	require.NoError(t, recorder.Record(context.Background(), 7, "1.2.3.4", strPtr("curl/8.0")))
	require.NoError(t, recorder.Record(context.Background(), 7, "5.6.7.8", nil))

	usages := repo.Usages()
	require.Len(t, usages, 2)

	assert.Equal(t, int64(7), usages[0].URLID)
	assert.Equal(t, "1.2.3.4", usages[0].IP)
	assert.Equal(t, "curl/8.0", *usages[0].UserAgent)
	assert.Equal(t, baseTime, usages[0].Timestamp)

	assert.Nil(t, usages[1].UserAgent)
}

func TestUsageRecorder_Record_UnknownURLIsAccepted(t *testing.T) {
	repo := repository.NewMemoryRepository()
	recorder := service.NewUsageRecorder(repo, domain.NewMockClock(baseTime), nil)

	err := recorder.Record(context.Background(), 424242, "1.2.3.4", nil)
	assert.NoError(t, err)
	assert.Len(t, repo.Usages(), 1)
}

func TestUsageRecorder_Record_StorageError(t *testing.T) {
	repo := new(MockRepository)
	repo.On("AppendUsage", mock.Anything, mock.MatchedBy(func(u *domain.UsageRecord) bool {
		return u.URLID == 1 && u.IP == "1.2.3.4" && u.Timestamp.Equal(baseTime)
	})).Return(errBackend)

	recorder := service.NewUsageRecorder(repo, domain.NewMockClock(baseTime), nil)

	err := recorder.Record(context.Background(), 1, "1.2.3.4", nil)
	assert.ErrorIs(t, err, domain.ErrStorageFailure)
	repo.AssertExpectations(t)
}
