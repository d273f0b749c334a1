package storage

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/mautops/membership-gin/internal/apperror"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngData = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 32)...)
	pdfData = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")
)

func upload(name string, data []byte) Upload {
	return Upload{Filename: name, Size: int64(len(data)), Reader: bytes.NewReader(data)}
}

func TestLocalFileStore_Save(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewLocalFileStoreWithFs(fs, 0)
	ctx := context.Background()

	ref, err := store.Save(ctx, FieldProfilePhoto, upload("me.PNG", pngData))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "photos/profilePhoto-"))
	assert.True(t, strings.HasSuffix(ref, ".png"))

	stored, err := afero.ReadFile(fs, ref)
	require.NoError(t, err)
	assert.Equal(t, pngData, stored)

	ref, err = store.Save(ctx, FieldCVDocument, upload("cv.pdf", pdfData))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "documents/cvDocument-"))

	require.NoError(t, store.Delete(ctx, ref))
	exists, _ := afero.Exists(fs, ref)
	assert.False(t, exists)
	assert.NoError(t, store.Delete(ctx, "documents/missing.pdf"))
	assert.Error(t, store.Delete(ctx, "../etc/passwd"))
}

func TestLocalFileStore_RejectsOversize(t *testing.T) {
	store := NewLocalFileStoreWithFs(afero.NewMemMapFs(), 16)

	_, err := store.Save(context.Background(), FieldNICCopy, upload("nic.pdf", pdfData))
	require.Error(t, err)
	var uploadErr *apperror.UploadError
	require.ErrorAs(t, err, &uploadErr)
	assert.Equal(t, FieldNICCopy, uploadErr.Field)
	assert.Equal(t, "16 bytes", uploadErr.Limit)

	// 声明的大小不可信时以实际读取为准
	u := upload("nic.pdf", pdfData)
	u.Size = 1
	_, err = store.Save(context.Background(), FieldNICCopy, u)
	assert.True(t, apperror.Is(err, apperror.KindUpload))
}

func TestLocalFileStore_RejectsType(t *testing.T) {
	store := NewLocalFileStoreWithFs(afero.NewMemMapFs(), 0)
	ctx := context.Background()

	_, err := store.Save(ctx, FieldCVDocument, upload("cv.exe", pdfData))
	assert.True(t, apperror.Is(err, apperror.KindUpload))

	// 扩展名与内容不符
	_, err = store.Save(ctx, FieldProfilePhoto, upload("me.png", []byte("just some plain text")))
	assert.True(t, apperror.Is(err, apperror.KindUpload))

	_, err = store.Save(ctx, FieldProfilePhoto, upload("me.png", nil))
	assert.True(t, apperror.Is(err, apperror.KindUpload))
}

type fakeObjectClient struct {
	puts    []*s3.PutObjectInput
	deletes []*s3.DeleteObjectInput
}

func (f *fakeObjectClient) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, params)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeObjectClient) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, params)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3FileStore(t *testing.T) {
	client := &fakeObjectClient{}
	store := NewS3FileStoreWithClient(client, "membership-uploads", 0)
	ctx := context.Background()

	ref, err := store.Save(ctx, FieldDegreeCertificates, upload("degree.pdf", pdfData))
	require.NoError(t, err)
	require.Len(t, client.puts, 1)
	assert.Equal(t, "membership-uploads", *client.puts[0].Bucket)
	assert.Equal(t, ref, *client.puts[0].Key)
	assert.Equal(t, "application/pdf", *client.puts[0].ContentType)

	_, err = store.Save(ctx, FieldDegreeCertificates, upload("degree.txt", []byte("x")))
	assert.True(t, apperror.Is(err, apperror.KindUpload))
	assert.Len(t, client.puts, 1)

	require.NoError(t, store.Delete(ctx, ref))
	assert.Len(t, client.deletes, 1)
}
