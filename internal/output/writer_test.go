package output

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/courthouse-harvester/internal/harvest"
	"github.com/JakeFAU/courthouse-harvester/internal/hash/sha256"
	"github.com/JakeFAU/courthouse-harvester/internal/storage/memory"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error) {
	args := m.Called(ctx, path, contentType, data)
	return args.String(0), args.Error(1)
}

func TestEncodeIndentsWithoutEscaping(t *testing.T) {
	t.Parallel()

	data, err := Encode(harvest.Dataset{Mode: harvest.ModeListing, Records: []harvest.CanonicalRecord{
		{City: "Kitchener & Waterloo", Address: "85 Frederick Street, Kitchener <N2H 0A7>"},
	}})
	require.NoError(t, err)
	require.Equal(t, "[\n"+
		"  {\n"+
		"    \"city\": \"Kitchener & Waterloo\",\n"+
		"    \"address\": \"85 Frederick Street, Kitchener <N2H 0A7>\"\n"+
		"  }\n"+
		"]\n", string(data))
}

func TestEncodeEmptyDataset(t *testing.T) {
	t.Parallel()

	data, err := Encode(harvest.Dataset{Mode: harvest.ModeDetail})
	require.NoError(t, err)
	require.Equal(t, "[]\n", string(data))
}

func TestWriterStoresAndHashes(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	w := New(store, sha256.New(), nil)

	artifact, err := w.Write(context.Background(), "courthouses.json", harvest.Dataset{Mode: harvest.ModeListing})
	require.NoError(t, err)
	require.Equal(t, "memory://courthouses.json", artifact.URI)
	require.Equal(t, 3, artifact.Size)
	require.Zero(t, artifact.Records)

	stored, contentType, ok := store.Object("courthouses.json")
	require.True(t, ok)
	require.Equal(t, "[]\n", string(stored))
	require.Equal(t, "application/json", contentType)

	want, err := sha256.New().Hash(stored)
	require.NoError(t, err)
	require.Equal(t, want, artifact.SHA256)
}

func TestWriterStoreFailure(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	store.On("PutObject", mock.Anything, "out.json", "application/json", mock.Anything).
		Return("", errors.New("bucket missing"))

	_, err := New(store, sha256.New(), nil).Write(context.Background(), "out.json", harvest.Dataset{})
	require.ErrorContains(t, err, "store artifact out.json: bucket missing")
	store.AssertExpectations(t)
}
