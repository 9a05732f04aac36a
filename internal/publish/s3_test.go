package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	key         string
	bucket      string
	contentType string
	body        []byte
	err         error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.key = aws.ToString(in.Key)
	f.bucket = aws.ToString(in.Bucket)
	f.contentType = aws.ToString(in.ContentType)
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestUpload(t *testing.T) {
	file := filepath.Join(t.TempDir(), "acme_base_dados_01_09_2026.xlsx")
	require.NoError(t, os.WriteFile(file, []byte("PK"), 0o600))

	fp := &fakePutter{}
	key, err := NewWithClient(fp, "reports", "vision-one/2026-09").Upload(context.Background(), file)
	require.NoError(t, err)

	assert.Equal(t, "vision-one/2026-09/acme_base_dados_01_09_2026.xlsx", key)
	assert.Equal(t, "reports", fp.bucket)
	assert.Equal(t, xlsxType, fp.contentType)
	assert.Equal(t, []byte("PK"), fp.body)
}

func TestUploadErrors(t *testing.T) {
	_, err := NewWithClient(&fakePutter{}, "b", "").Upload(context.Background(), "/does/not/exist.pdf")
	assert.Error(t, err)

	file := filepath.Join(t.TempDir(), "summary.pdf")
	require.NoError(t, os.WriteFile(file, []byte("%PDF"), 0o600))
	_, err = NewWithClient(&fakePutter{err: errors.New("denied")}, "b", "").Upload(context.Background(), file)
	assert.ErrorContains(t, err, "denied")
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", contentType("summary.pdf"))
	assert.Equal(t, "application/octet-stream", contentType("blob"))
}
