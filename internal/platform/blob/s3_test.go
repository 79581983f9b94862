package blob

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	mod     time.Time
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for key, data := range f.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{
				Key:          aws.String(key),
				Size:         aws.Int64(int64(len(data))),
				LastModified: aws.Time(f.mod),
			})
		}
	}
	return out, nil
}

func TestS3StorePrefixesKeys(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}, mod: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	store := NewS3StoreWithClient(fake, "bucket", "/stockbook/")

	require.NoError(t, store.Put(ctx, "imports/org/a.csv", strings.NewReader("abc"), ""))
	require.Contains(t, fake.objects, "stockbook/imports/org/a.csv")

	rc, err := store.Get(ctx, "imports/org/a.csv")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	require.Equal(t, "abc", string(data))

	objs, err := store.List(ctx, "imports/")
	require.NoError(t, err)
	require.Equal(t, []Object{{Key: "imports/org/a.csv", Size: 3, ModTime: fake.mod}}, objs)

	require.NoError(t, store.Delete(ctx, "imports/org/a.csv"))
	_, err = store.Get(ctx, "imports/org/a.csv")
	require.ErrorIs(t, err, ErrNotFound)
}
