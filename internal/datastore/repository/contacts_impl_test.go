package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petpulse/petpulse-go/internal/datastore/entities"
)

func TestContactRepository_ListActive(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContactRepository(db)
	ctx := t.Context()

	contacts := []*entities.EmergencyContact{
		{ID: "c1", Name: "Alex", ContactType: "neighbor", Priority: 2, IsActive: true},
		{ID: "c2", Name: "Sam", ContactType: "family", Priority: 1, IsActive: true},
		{ID: "c3", Name: "Vet Clinic", ContactType: "vet", Priority: 3, IsActive: false},
	}
	for _, c := range contacts {
		require.NoError(t, repo.CreateContact(ctx, c))
	}

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)
	// Priority ascending: Sam (1) before Alex (2), inactive vet excluded.
	assert.Equal(t, "c2", active[0].ID)
	assert.Equal(t, "c1", active[1].ID)
}

func TestContactRepository_GetContact(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContactRepository(db)
	ctx := t.Context()

	require.NoError(t, repo.CreateContact(ctx, &entities.EmergencyContact{
		ID:       "c1",
		Name:     "Alex",
		Phone:    "+15550100",
		Email:    "alex@example.com",
		IsActive: true,
	}))

	got, err := repo.GetContact(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Alex", got.Name)
	assert.Equal(t, "+15550100", got.Phone)

	_, err = repo.GetContact(ctx, "ghost")
	require.ErrorIs(t, err, ErrContactNotFound)
}

func TestContactRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewContactRepository(db)
	ctx := t.Context()

	require.NoError(t, repo.CreateContact(ctx, &entities.EmergencyContact{ID: "c1", Name: "Alex", Priority: 5, IsActive: false}))
	require.NoError(t, repo.CreateContact(ctx, &entities.EmergencyContact{ID: "c2", Name: "Sam", Priority: 1, IsActive: true}))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "c2", all[0].ID)
}
