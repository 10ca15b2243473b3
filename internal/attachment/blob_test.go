package attachment

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "staging/2026/01/a.pdf", want: "staging/2026/01/a.pdf"},
		{raw: "staging//x/../a.pdf", want: "staging/a.pdf"},
		{raw: "staging\\a.pdf", want: "staging/a.pdf"},
		{raw: "", wantErr: true},
		{raw: "../etc/passwd", wantErr: true},
		{raw: "/abs/path", wantErr: true},
		{raw: ".", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := cleanKey(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidRef) {
					t.Fatalf("expected ErrInvalidRef, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("cleanKey(%q) = %q, %v", tt.raw, got, err)
			}
		})
	}
}

func TestFSStoreDeleteMissingIsNoop(t *testing.T) {
	store := NewMemStore()
	if err := store.Delete(context.Background(), "staging/none.pdf"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

type fakeS3 struct {
	objects map[string][]byte
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(body))}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3StoreRoundTrip(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	store := newS3Store(fake, "billing", "/attachments/")
	ctx := context.Background()

	ref, err := store.Save(ctx, "staging/2026/01/p.pdf", strings.NewReader("pdf-bytes"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok := fake.objects["billing/attachments/staging/2026/01/p.pdf"]; !ok {
		t.Fatalf("object stored under unexpected key: %v", fake.objects)
	}

	rc, err := store.Read(ctx, ref)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "pdf-bytes" {
		t.Fatalf("unexpected body %q", body)
	}

	if err := store.Delete(ctx, ref); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Read(ctx, ref); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
