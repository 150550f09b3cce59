package s3

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/researchgo/blobstore"
)

// fakeDDB keeps committed versions in memory and enforces the
// attribute_not_exists condition.
type fakeDDB struct {
	items map[uint64]string // version -> manifest name
	fail  bool
}

func (f *fakeDDB) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	var version uint64
	_, _ = fmt.Sscanf(params.Item["version"].(*types.AttributeValueMemberN).Value, "%d", &version)
	if f.fail {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if _, exists := f.items[version]; exists {
		return nil, &types.ConditionalCheckFailedException{}
	}
	if f.items == nil {
		f.items = make(map[uint64]string)
	}
	f.items[version] = params.Item["manifest_name"].(*types.AttributeValueMemberS).Value
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDB) Query(_ context.Context, _ *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	var max uint64
	for v := range f.items {
		if v > max {
			max = v
		}
	}
	if max == 0 {
		return &dynamodb.QueryOutput{}, nil
	}
	return &dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{{
			"version":       &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", max)},
			"manifest_name": &types.AttributeValueMemberS{Value: f.items[max]},
		}},
	}, nil
}

func TestDDBCommitStoreCurrent(t *testing.T) {
	ctx := context.Background()
	ddb := &fakeDDB{}
	store := NewDDBCommitStore(nil, ddb, "research-commits", "s3://bucket/research")

	// No commit yet.
	_, err := store.Open(ctx, CurrentName)
	require.ErrorIs(t, err, blobstore.ErrNotFound)

	// First commit.
	require.NoError(t, store.Put(ctx, CurrentName, []byte("MANIFEST-000001")))

	blob, err := store.Open(ctx, CurrentName)
	require.NoError(t, err)
	data := make([]byte, blob.Size())
	_, err = blob.ReadAt(data, 0)
	require.NoError(t, err)
	assert.Equal(t, "MANIFEST-000001", string(data))

	// Second commit advances the version.
	require.NoError(t, store.Put(ctx, CurrentName, []byte("MANIFEST-000002")))
	assert.Equal(t, "MANIFEST-000002", ddb.items[2])
}

func TestDDBCommitStoreConflict(t *testing.T) {
	ctx := context.Background()
	ddb := &fakeDDB{fail: true}
	store := NewDDBCommitStore(nil, ddb, "research-commits", "s3://bucket/research")

	err := store.Put(ctx, CurrentName, []byte("MANIFEST-000001"))
	require.ErrorIs(t, err, ErrConcurrentModification)
}
