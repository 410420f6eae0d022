package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-grade-engine/internal/models"
)

func TestConfigurationRepositoryListByKeys(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewConfigurationRepository(db)
	keys := models.DefaultKeysFor("2024-2025")
	rows := sqlmock.NewRows([]string{"key", "value", "type", "description", "updated_by", "updated_at"}).
		AddRow(keys.MonthlyExamCount, "3", "NUMBER", nil, "admin", time.Now()).
		AddRow(keys.MonthlyWeight, "40", "NUMBER", nil, "admin", time.Now())
	mock.ExpectQuery("SELECT key, value").
		WithArgs(keys.MonthlyExamCount, keys.MonthlyWeight, keys.SemesterWeight).
		WillReturnRows(rows)

	result, err := repo.ListByKeys(context.Background(), keys.All())
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "3", result[0].Value)
	assert.Equal(t, models.ConfigurationTypeNumber, result[1].Type)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigurationRepositoryListByKeysEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	result, err := NewConfigurationRepository(db).ListByKeys(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, result)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "$1,$2,$3", placeholders(3))
	assert.Equal(t, "$5,$6", placeholdersFrom(5, 2))
}
